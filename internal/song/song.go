// Package song reads song sheets (the JSON format exported by Sky music tools) into playback
// timelines.
package song

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"lyrica/internal/keymap"
	"lyrica/internal/playback"
)

// Song is a parsed song sheet.
type Song struct {
	Path     string
	Title    string
	Author   string
	BPM      int
	Notes    int // notes kept
	Skipped  int // notes dropped as invalid
	Timeline *playback.Timeline
}

// Duration is the nominal length of the song.
func (s *Song) Duration() time.Duration { return s.Timeline.Duration() }

// ErrNoNotes is returned for sheets without a usable note list.
var ErrNoNotes = errors.New("song has no notes")

type rawNote struct {
	Time *float64 `json:"time"`
	Key  string   `json:"key"`
}

// Parse decodes a song sheet.
//
// The document is an object, or an array whose first element is that object. Notes are read
// from "songNotes", "notes" or "Notes"; the title from "name" or "title". Note keys like "1Key5"
// or "2Key12" (instrument prefix + key) are normalised to "Key5". Notes sharing a time become one
// chord event.
func Parse(data []byte) (*Song, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	text = bytes.TrimSpace(text)

	var obj map[string]json.RawMessage
	if len(text) > 0 && text[0] == '[' {
		var arr []map[string]json.RawMessage
		if err := json.Unmarshal(text, &arr); err != nil {
			return nil, fmt.Errorf("parse song json: %w", err)
		}
		if len(arr) == 0 {
			return nil, fmt.Errorf("parse song json: empty array")
		}
		obj = arr[0]
	} else if err := json.Unmarshal(text, &obj); err != nil {
		return nil, fmt.Errorf("parse song json: %w", err)
	}

	s := &Song{Title: "Unknown"}
	for _, k := range []string{"name", "title"} {
		if t := stringField(obj, k); t != "" {
			s.Title = t
			break
		}
	}
	s.Author = stringField(obj, "author")
	if raw, ok := obj["bpm"]; ok {
		var bpm float64
		if json.Unmarshal(raw, &bpm) == nil && bpm > 0 {
			s.BPM = int(math.Round(bpm))
		}
	}

	var notesRaw json.RawMessage
	for _, k := range []string{"songNotes", "notes", "Notes"} {
		if raw, ok := obj[k]; ok {
			notesRaw = raw
			break
		}
	}
	if notesRaw == nil {
		return nil, fmt.Errorf("%w: missing songNotes", ErrNoNotes)
	}

	var notes []json.RawMessage
	if err := json.Unmarshal(notesRaw, &notes); err != nil {
		return nil, fmt.Errorf("parse song notes: %w", err)
	}

	type note struct {
		at  time.Duration
		key string
	}
	kept := make([]note, 0, len(notes))
	for _, raw := range notes {
		var n rawNote
		if err := json.Unmarshal(raw, &n); err != nil || n.Time == nil || *n.Time < 0 || math.IsNaN(*n.Time) {
			s.Skipped++
			continue
		}
		key, ok := NormalizeKey(n.Key)
		if !ok {
			s.Skipped++
			continue
		}
		at := time.Duration(math.Round(*n.Time * float64(time.Millisecond)))
		kept = append(kept, note{at: at, key: key})
	}
	if len(kept) == 0 {
		return nil, ErrNoNotes
	}
	slices.SortStableFunc(kept, func(a, b note) int { return cmp.Compare(a.at, b.at) })

	events := make([]playback.NoteEvent, 0, len(kept))
	for _, n := range kept {
		if last := len(events) - 1; last >= 0 && events[last].Offset == n.at {
			if !slices.Contains(events[last].Keys, n.key) {
				events[last].Keys = append(events[last].Keys, n.key)
			}
			continue
		}
		events = append(events, playback.NoteEvent{Offset: n.at, Keys: []string{n.key}})
	}

	tl, err := playback.NewTimeline(events)
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}
	s.Timeline = tl
	s.Notes = len(kept)
	return s, nil
}

// ParseFile reads and parses a song sheet from disk.
func ParseFile(path string) (*Song, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read song: %w", err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// NormalizeKey maps a sheet key ("1Key5", "key5", "Key5") to the logical id "Key5".
// Keys outside the 15-key instrument are rejected.
func NormalizeKey(k string) (string, bool) {
	i := -1
	for j := 0; j+3 <= len(k); j++ {
		if strings.EqualFold(k[j:j+3], "key") {
			i = j
			break
		}
	}
	if i < 0 {
		return "", false
	}
	idx, ok := keymap.KeyIndex(k[i:])
	if !ok || idx >= keymap.NoteKeys {
		return "", false
	}
	return keymap.KeyID(idx), true
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
