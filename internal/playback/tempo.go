package playback

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Easing maps ramp progress p in [0,1] to interpolation weight in [0,1].
// Implementations must be monotonic non-decreasing with e(0)=0 and e(1)=1 so a ramp never
// overshoots its target.
type Easing func(p float64) float64

// Linear is the default ramp shape.
func Linear(p float64) float64 { return p }

// SmoothStep eases in and out (3p² - 2p³).
func SmoothStep(p float64) float64 { return p * p * (3 - 2*p) }

// ParseEasing resolves a configured easing name.
func ParseEasing(name string) (Easing, error) {
	switch strings.ToLower(name) {
	case "", "linear":
		return Linear, nil
	case "smoothstep", "smooth":
		return SmoothStep, nil
	default:
		return nil, fmt.Errorf("unknown easing %q (must be linear or smoothstep)", name)
	}
}

// Ramp is an in-flight transition of the speed factor.
type Ramp struct {
	From      float64
	To        float64
	StartedAt time.Time
	Duration  time.Duration
}

// End is the instant the ramp reaches To.
func (r Ramp) End() time.Time { return r.StartedAt.Add(r.Duration) }

// Tempo owns the speed factor and executes ramped transitions between speeds.
//
// Speed before a ramp's StartedAt is From; after its End it is To. Tempo is not safe for
// concurrent use; the engine loop is its only owner.
type Tempo struct {
	target float64
	ramp   *Ramp
	easing Easing
}

// NewTempo creates a controller at a flat initial speed.
func NewTempo(initial float64, easing Easing) *Tempo {
	if easing == nil {
		easing = Linear
	}
	return &Tempo{target: initial, easing: easing}
}

// Target returns the speed the controller is heading to (or sitting at).
func (t *Tempo) Target() float64 { return t.target }

// Ramp returns the active ramp, if any.
func (t *Tempo) Ramp() (Ramp, bool) {
	if t.ramp == nil {
		return Ramp{}, false
	}
	return *t.ramp, true
}

// Ramping reports whether a ramp is still in flight at now.
func (t *Tempo) Ramping(now time.Time) bool {
	return t.ramp != nil && now.Before(t.ramp.End())
}

// Speed returns the instantaneous speed factor at now.
func (t *Tempo) Speed(now time.Time) float64 {
	if t.ramp == nil {
		return t.target
	}
	return t.speedOn(*t.ramp, now)
}

func (t *Tempo) speedOn(r Ramp, at time.Time) float64 {
	if r.Duration <= 0 || !at.Before(r.End()) {
		return r.To
	}
	if !at.After(r.StartedAt) {
		return r.From
	}
	p := float64(at.Sub(r.StartedAt)) / float64(r.Duration)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return r.From + (r.To-r.From)*t.easing(p)
}

// Instant sets the speed immediately, discarding any ramp.
func (t *Tempo) Instant(to float64) {
	t.target = to
	t.ramp = nil
}

// SetTarget starts a ramp towards to over d, beginning at the speed currently computed for now
// (not the previous target), so a change issued mid-ramp never jumps.
func (t *Tempo) SetTarget(now time.Time, to float64, d time.Duration) {
	t.RampFrom(now, t.Speed(now), to, d)
}

// RampFrom installs an explicit ramp from -> to starting at start.
func (t *Tempo) RampFrom(start time.Time, from, to float64, d time.Duration) {
	t.target = to
	if d <= 0 || from == to {
		t.ramp = nil
		return
	}
	t.ramp = &Ramp{From: from, To: to, StartedAt: start, Duration: d}
}

// Settle drops a finished ramp. Speed is unaffected.
func (t *Tempo) Settle(now time.Time) {
	if t.ramp != nil && !now.Before(t.ramp.End()) {
		t.ramp = nil
	}
}

// Advance returns the nominal time consumed between real instants a and b: the integral of
// speed over [a, b]. Segments inside a ramp use Simpson's rule, which is exact for the linear
// and smoothstep shapes.
func (t *Tempo) Advance(a, b time.Time) time.Duration {
	if !b.After(a) {
		return 0
	}
	if t.ramp == nil {
		return scale(b.Sub(a), t.target)
	}

	r := *t.ramp
	end := r.End()
	var total float64

	// Before the ramp starts: From.
	if a.Before(r.StartedAt) {
		segEnd := minTime(b, r.StartedAt)
		total += float64(segEnd.Sub(a)) * r.From
	}

	// Inside the ramp.
	x := maxTime(a, r.StartedAt)
	y := minTime(b, end)
	if y.After(x) {
		mid := x.Add(y.Sub(x) / 2)
		f := t.speedOn(r, x) + 4*t.speedOn(r, mid) + t.speedOn(r, y)
		total += float64(y.Sub(x)) * f / 6
	}

	// After the ramp: To.
	if b.After(end) {
		segStart := maxTime(a, end)
		total += float64(b.Sub(segStart)) * r.To
	}

	return time.Duration(math.Round(total))
}

// scale converts a real duration at a constant speed into nominal time.
func scale(d time.Duration, speed float64) time.Duration {
	return time.Duration(math.Round(float64(d) * speed))
}

// realFor converts a nominal distance into the real time it takes at speed, rounding up so a
// timer never fires before the distance is covered.
func realFor(nominal time.Duration, speed float64) time.Duration {
	if nominal <= 0 {
		return 0
	}
	if speed <= 0 {
		return math.MaxInt64
	}
	return time.Duration(math.Ceil(float64(nominal) / speed))
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
