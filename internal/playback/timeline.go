package playback

import (
	"fmt"
	"time"
)

// NoteEvent is one moment of the song: a set of logical keys pressed together at Offset
// (nominal time since the start of the timeline).
//
// Hold, if non-zero, overrides the default press duration for this event. It is a real-time
// duration: how long the key stays down does not scale with playback speed.
type NoteEvent struct {
	Offset time.Duration
	Keys   []string
	Hold   time.Duration
}

// Timeline is a validated, immutable, offset-ordered sequence of NoteEvents.
// Build it with NewTimeline; the zero value is an empty (unplayable) timeline.
type Timeline struct {
	events   []NoteEvent
	duration time.Duration
}

// NewTimeline validates events and returns a Timeline holding a private copy of them.
//
// Rules:
//   - at least one event
//   - offsets are non-negative and non-decreasing (ties form chords)
//   - holds are non-negative
//   - every event has at least one key and no key id is empty
func NewTimeline(events []NoteEvent) (*Timeline, error) {
	if len(events) == 0 {
		return nil, &ValidationError{Field: "timeline", Reason: "no events"}
	}

	cp := make([]NoteEvent, len(events))
	var duration time.Duration
	var prev time.Duration

	for i, ev := range events {
		if ev.Offset < 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("events[%d].offset", i), Reason: "negative offset"}
		}
		if i > 0 && ev.Offset < prev {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("events[%d].offset", i),
				Reason: fmt.Sprintf("offset %s before previous offset %s", ev.Offset, prev),
			}
		}
		if ev.Hold < 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("events[%d].hold", i), Reason: "negative hold"}
		}
		if len(ev.Keys) == 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("events[%d].keys", i), Reason: "empty key set"}
		}
		for j, k := range ev.Keys {
			if k == "" {
				return nil, &ValidationError{Field: fmt.Sprintf("events[%d].keys[%d]", i, j), Reason: "empty key id"}
			}
		}

		keys := make([]string, len(ev.Keys))
		copy(keys, ev.Keys)
		cp[i] = NoteEvent{Offset: ev.Offset, Keys: keys, Hold: ev.Hold}

		if end := ev.Offset + ev.Hold; end > duration {
			duration = end
		}
		prev = ev.Offset
	}

	return &Timeline{events: cp, duration: duration}, nil
}

// Len returns the number of events.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.events)
}

// Event returns the i-th event. The returned Keys slice must not be modified.
func (t *Timeline) Event(i int) NoteEvent {
	return t.events[i]
}

// Duration is the total nominal length: the latest offset+hold of any event.
func (t *Timeline) Duration() time.Duration {
	if t == nil {
		return 0
	}
	return t.duration
}

// Events returns a deep copy of the events.
func (t *Timeline) Events() []NoteEvent {
	if t == nil {
		return nil
	}
	out := make([]NoteEvent, len(t.events))
	for i, ev := range t.events {
		keys := make([]string, len(ev.Keys))
		copy(keys, ev.Keys)
		out[i] = NoteEvent{Offset: ev.Offset, Keys: keys, Hold: ev.Hold}
	}
	return out
}
