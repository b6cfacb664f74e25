package playback

import (
	"container/heap"
	"slices"
	"time"
)

// ------------------------------------------------------------------------------
// Held keys + release queue
// ------------------------------------------------------------------------------

type pendingRelease struct {
	at   time.Time
	code KeyCode
	gen  uint64
}

// releaseHeap orders pending releases by deadline.
type releaseHeap []pendingRelease

func (h releaseHeap) Len() int           { return len(h) }
func (h releaseHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h releaseHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *releaseHeap) Push(x any)        { *h = append(*h, x.(pendingRelease)) }
func (h *releaseHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type heldKey struct {
	key   string
	index int
	gen   uint64
}

// keyTracker records which physical keys are down and when each must come up.
//
// A key released early (stuck-key prevention, pause, stop) leaves a stale heap entry behind;
// entries are matched to the held key by generation and stale ones are discarded lazily.
//
// Owned by the engine loop.
type keyTracker struct {
	held    map[KeyCode]heldKey
	pending releaseHeap
	gen     uint64
}

func newKeyTracker() *keyTracker {
	return &keyTracker{held: make(map[KeyCode]heldKey)}
}

func (t *keyTracker) isHeld(code KeyCode) bool {
	_, ok := t.held[code]
	return ok
}

func (t *keyTracker) len() int { return len(t.held) }

// pressed records code as down (for event index) until releaseAt.
func (t *keyTracker) pressed(code KeyCode, key string, index int, releaseAt time.Time) {
	t.gen++
	t.held[code] = heldKey{key: key, index: index, gen: t.gen}
	heap.Push(&t.pending, pendingRelease{at: releaseAt, code: code, gen: t.gen})
}

// released forgets code. Its pending heap entry becomes stale.
func (t *keyTracker) released(code KeyCode) {
	delete(t.held, code)
}

func (t *keyTracker) live(p pendingRelease) bool {
	h, ok := t.held[p.code]
	return ok && h.gen == p.gen
}

func (t *keyTracker) dropStale() {
	for t.pending.Len() > 0 && !t.live(t.pending[0]) {
		heap.Pop(&t.pending)
	}
}

// next returns the earliest live release deadline.
func (t *keyTracker) next() (time.Time, bool) {
	t.dropStale()
	if t.pending.Len() == 0 {
		return time.Time{}, false
	}
	return t.pending[0].at, true
}

// due pops every live release with a deadline at or before now, earliest first.
// The caller is expected to call released for each code once the sink has been told.
func (t *keyTracker) due(now time.Time) []KeyCode {
	var out []KeyCode
	for {
		t.dropStale()
		if t.pending.Len() == 0 || t.pending[0].at.After(now) {
			return out
		}
		p := heap.Pop(&t.pending).(pendingRelease)
		out = append(out, p.code)
	}
}

// codes returns every held key in ascending order.
func (t *keyTracker) codes() []KeyCode {
	out := make([]KeyCode, 0, len(t.held))
	for code := range t.held {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

// names returns the logical ids of the held keys, ordered by physical code.
func (t *keyTracker) names() []string {
	if len(t.held) == 0 {
		return nil
	}
	out := make([]string, 0, len(t.held))
	for _, code := range t.codes() {
		out = append(out, t.held[code].key)
	}
	return out
}

// origin returns the logical id and event index code was pressed for.
func (t *keyTracker) origin(code KeyCode) (string, int) {
	h := t.held[code]
	return h.key, h.index
}

func (t *keyTracker) reset() {
	clear(t.held)
	t.pending = t.pending[:0]
}
