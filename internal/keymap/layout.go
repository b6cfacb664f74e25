// Package keymap translates logical note keys (Key0..Key14) into physical keys for the active
// keyboard layout and output device.
package keymap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// NoteKeys is the number of logical keys on the in-game instrument (3 rows of 5).
const NoteKeys = 15

// Layout maps logical key ids to key names (see KeyNames).
type Layout struct {
	Name string            `yaml:"name"`
	Base string            `yaml:"base,omitempty"`
	Keys map[string]string `yaml:"keys"`
}

// qwerty is the stock layout: the bottom three letter rows, right hand side.
var qwerty = [NoteKeys]string{
	"y", "u", "i", "o", "p",
	"h", "j", "k", "l", ";",
	"n", "m", ",", ".", "/",
}

// QWERTY returns the stock layout.
func QWERTY() *Layout {
	keys := make(map[string]string, NoteKeys)
	for i, name := range qwerty {
		keys[KeyID(i)] = name
	}
	return &Layout{Name: "qwerty", Keys: keys}
}

// Builtin returns a built-in layout by name.
//
// Layouts describe physical key positions, so a host using QWERTZ or AZERTY still uses "qwerty"
// here: the OS keymap relabels the keys, the positions stay the same.
func Builtin(name string) (*Layout, error) {
	switch strings.ToLower(name) {
	case "", "qwerty", "qwertz", "azerty":
		return QWERTY(), nil
	default:
		return nil, fmt.Errorf("unknown builtin layout %q", name)
	}
}

// KeyID returns the canonical logical id for note index i.
func KeyID(i int) string { return "Key" + strconv.Itoa(i) }

// KeyIndex parses a logical id like "Key5" (case-insensitive) into its index.
func KeyIndex(id string) (int, bool) {
	if len(id) < 4 || !strings.EqualFold(id[:3], "key") {
		return 0, false
	}
	n, err := strconv.Atoi(id[3:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// LoadLayoutFile reads a YAML layout. Keys missing from the file come from its base layout
// (default qwerty).
//
//	name: left-hand
//	base: qwerty
//	keys:
//	  Key0: q
//	  Key1: w
func LoadLayoutFile(path string) (*Layout, error) {
	if path == "" {
		return nil, errors.New("layout path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}

	var file Layout
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode layout yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode layout yaml: unexpected trailing document")
	}

	base, err := Builtin(file.Base)
	if err != nil {
		return nil, err
	}
	for id, name := range file.Keys {
		idx, ok := KeyIndex(id)
		if !ok {
			return nil, fmt.Errorf("layout %q: invalid key id %q", file.Name, id)
		}
		base.Keys[KeyID(idx)] = name
	}
	if file.Name != "" {
		base.Name = file.Name
	}
	base.Base = file.Base

	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

// Validate checks that every key name exists and no two logical keys share a physical key.
func (l *Layout) Validate() error {
	if len(l.Keys) == 0 {
		return fmt.Errorf("layout %q has no keys", l.Name)
	}
	seen := make(map[string]string, len(l.Keys))
	for _, id := range l.IDs() {
		name := Normalize(l.Keys[id])
		if _, ok := LinuxCode(name); !ok {
			return fmt.Errorf("layout %q: %s maps to unknown key %q", l.Name, id, l.Keys[id])
		}
		if other, dup := seen[name]; dup {
			return fmt.Errorf("layout %q: %s and %s both map to %q", l.Name, other, id, name)
		}
		seen[name] = id
	}
	return nil
}

// IDs returns the layout's logical ids in note order.
func (l *Layout) IDs() []string {
	ids := make([]string, 0, len(l.Keys))
	for id := range l.Keys {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		ia, _ := KeyIndex(a)
		ib, _ := KeyIndex(b)
		return ia - ib
	})
	return ids
}
