package playback

import (
	"errors"
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestNewTimeline_Valid(t *testing.T) {
	events := []NoteEvent{
		{Offset: 0, Keys: []string{"Key0"}},
		{Offset: ms(500), Keys: []string{"Key1", "Key2"}},
		{Offset: ms(500), Keys: []string{"Key3"}, Hold: ms(800)},
		{Offset: ms(1000), Keys: []string{"Key4"}, Hold: ms(100)},
	}
	tl, err := NewTimeline(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Len() != 4 {
		t.Fatalf("expected 4 events, got %d", tl.Len())
	}
	// The chord at 500ms holds past the last event.
	if tl.Duration() != ms(1300) {
		t.Fatalf("expected duration 1.3s, got %v", tl.Duration())
	}

	// Mutating the input does not reach the timeline.
	events[1].Keys[0] = "mutated"
	events[0].Offset = ms(9999)
	if tl.Event(1).Keys[0] != "Key1" || tl.Event(0).Offset != 0 {
		t.Fatalf("timeline shares memory with its input")
	}

	// Events() is a deep copy too.
	out := tl.Events()
	out[2].Keys[0] = "mutated"
	if tl.Event(2).Keys[0] != "Key3" {
		t.Fatalf("Events() shares memory with the timeline")
	}
}

func TestNewTimeline_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		events []NoteEvent
		field  string
	}{
		{"empty", nil, "timeline"},
		{"negative offset", []NoteEvent{{Offset: -1, Keys: []string{"Key0"}}}, "events[0].offset"},
		{"unsorted", []NoteEvent{
			{Offset: ms(100), Keys: []string{"Key0"}},
			{Offset: ms(50), Keys: []string{"Key1"}},
		}, "events[1].offset"},
		{"negative hold", []NoteEvent{{Offset: 0, Keys: []string{"Key0"}, Hold: -ms(1)}}, "events[0].hold"},
		{"no keys", []NoteEvent{{Offset: 0}}, "events[0].keys"},
		{"empty key", []NoteEvent{{Offset: 0, Keys: []string{"Key0", ""}}}, "events[0].keys[1]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tl, err := NewTimeline(tc.events)
			if err == nil {
				t.Fatalf("expected error, got timeline with %d events", tl.Len())
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, ve.Field, err)
			}
		})
	}
}

func TestTimeline_NilSafe(t *testing.T) {
	var tl *Timeline
	if tl.Len() != 0 || tl.Duration() != 0 || tl.Events() != nil {
		t.Fatalf("nil timeline should be empty")
	}
}
