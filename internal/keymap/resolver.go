package keymap

import (
	"fmt"
	"slices"

	"lyrica/internal/playback"
)

// Table selects which physical code space a Resolver produces.
type Table int

const (
	// Linux input key codes, for uinput.
	Linux Table = iota
	// USB HID usages, for the serial HID bridge.
	HID
)

func (t Table) String() string {
	switch t {
	case Linux:
		return "linux"
	case HID:
		return "hid"
	}
	return fmt.Sprintf("table(%d)", int(t))
}

// Resolver is a playback.KeyResolver built from a Layout.
// Logical ids are matched case-insensitively ("key5", "Key5").
type Resolver struct {
	codes map[string]playback.KeyCode
}

var _ playback.KeyResolver = (*Resolver)(nil)

// NewResolver builds a resolver over the given code table.
func NewResolver(l *Layout, table Table) (*Resolver, error) {
	codes := make(map[string]playback.KeyCode, len(l.Keys))
	for id, name := range l.Keys {
		var (
			code uint16
			ok   bool
		)
		switch table {
		case Linux:
			code, ok = LinuxCode(name)
		case HID:
			var u uint8
			u, ok = HIDUsage(name)
			code = uint16(u)
		default:
			return nil, fmt.Errorf("unknown key table %v", table)
		}
		if !ok {
			return nil, fmt.Errorf("layout %q: no %s code for key %q (%s)", l.Name, table, name, id)
		}
		idx, ok := KeyIndex(id)
		if !ok {
			return nil, fmt.Errorf("layout %q: invalid key id %q", l.Name, id)
		}
		codes[KeyID(idx)] = playback.KeyCode(code)
	}
	return &Resolver{codes: codes}, nil
}

// Resolve implements playback.KeyResolver.
func (r *Resolver) Resolve(key string) (playback.KeyCode, bool) {
	idx, ok := KeyIndex(key)
	if !ok {
		return 0, false
	}
	code, ok := r.codes[KeyID(idx)]
	return code, ok
}

// Codes returns every physical code the resolver can produce, ascending.
func (r *Resolver) Codes() []playback.KeyCode {
	out := make([]playback.KeyCode, 0, len(r.codes))
	for _, c := range r.codes {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// majorScale is the semitone offset of each degree of a major scale.
var majorScale = [7]uint8{0, 2, 4, 5, 7, 9, 11}

// MiddleC is MIDI note 60 (C4).
const MiddleC uint8 = 60

// MIDIResolver maps note index n to the n-th degree of a major scale starting at Root, which is
// how the in-game instrument is tuned (Key0..Key14 = C4..C6 for Root 60).
type MIDIResolver struct {
	Root uint8
}

var _ playback.KeyResolver = MIDIResolver{}

// Resolve implements playback.KeyResolver.
func (m MIDIResolver) Resolve(key string) (playback.KeyCode, bool) {
	idx, ok := KeyIndex(key)
	if !ok || idx >= NoteKeys {
		return 0, false
	}
	note := int(m.Root) + 12*(idx/7) + int(majorScale[idx%7])
	if note > 127 {
		return 0, false
	}
	return playback.KeyCode(note), true
}
