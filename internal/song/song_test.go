package song

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"
)

const skySheet = `[{
  "name": "Ode to Joy",
  "author": "someone",
  "bpm": 240,
  "songNotes": [
    {"time": 0, "key": "1Key4"},
    {"time": 0, "key": "1Key6"},
    {"time": 250, "key": "1Key4"},
    {"time": 500, "key": "2Key5"},
    {"time": 500, "key": "1Key5"},
    {"time": 750, "key": "1Key99"},
    {"key": "1Key1"},
    {"time": 1000.0, "key": "Key7"}
  ]
}]`

func TestParse_SkySheet(t *testing.T) {
	s, err := Parse([]byte(skySheet))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Title != "Ode to Joy" || s.Author != "someone" || s.BPM != 240 {
		t.Errorf("unexpected metadata: %+v", s)
	}
	if s.Skipped != 2 {
		t.Errorf("expected 2 skipped notes, got %d", s.Skipped)
	}
	if s.Notes != 6 {
		t.Errorf("expected 6 kept notes, got %d", s.Notes)
	}

	events := s.Timeline.Events()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if got := events[0].Keys; len(got) != 2 || got[0] != "Key4" || got[1] != "Key6" {
		t.Errorf("expected chord [Key4 Key6], got %v", got)
	}
	// "2Key5" and "1Key5" are the same key: one chord member.
	if got := events[2].Keys; len(got) != 1 || got[0] != "Key5" {
		t.Errorf("expected [Key5], got %v", got)
	}
	if events[3].Offset != time.Second {
		t.Errorf("expected last offset 1s, got %v", events[3].Offset)
	}
}

func TestParse_ObjectAndAlternateKeys(t *testing.T) {
	for _, doc := range []string{
		`{"title": "A", "notes": [{"time": 10, "key": "Key1"}]}`,
		`{"title": "A", "Notes": [{"time": 10, "key": "Key1"}]}`,
	} {
		s, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse(%s): %v", doc, err)
		}
		if s.Title != "A" || s.Timeline.Len() != 1 {
			t.Errorf("unexpected song %+v", s)
		}
	}

	s, err := Parse([]byte(`{"songNotes": [{"time": 0, "key": "Key0"}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Title != "Unknown" {
		t.Errorf("expected default title, got %q", s.Title)
	}
}

func TestParse_UnsortedNotesAreOrdered(t *testing.T) {
	s, err := Parse([]byte(`{"songNotes": [{"time": 300, "key": "Key2"}, {"time": 100, "key": "Key1"}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Timeline.Event(0).Keys[0] != "Key1" {
		t.Errorf("expected notes sorted by time")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":    `{{{`,
		"empty array": `[]`,
		"no notes":    `{"name": "x"}`,
		"all invalid": `{"songNotes": [{"time": -1, "key": "Key1"}, {"time": 5, "key": "Note"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	_, err := Parse([]byte(`{"name": "x"}`))
	if !errors.Is(err, ErrNoNotes) {
		t.Fatalf("expected ErrNoNotes, got %v", err)
	}
}

func TestParse_Encodings(t *testing.T) {
	doc := []byte(`{"name": "Enc", "songNotes": [{"time": 0, "key": "1Key3"}]}`)

	utf16bom, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes(doc)
	if err != nil {
		t.Fatal(err)
	}
	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes(doc)
	if err != nil {
		t.Fatal(err)
	}
	utf16be, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes(doc)
	if err != nil {
		t.Fatal(err)
	}
	utf8bom := append([]byte{0xEF, 0xBB, 0xBF}, doc...)

	for name, b := range map[string][]byte{
		"utf8":         doc,
		"utf8 bom":     utf8bom,
		"utf16le bom":  utf16bom,
		"utf16le bare": utf16le,
		"utf16be bom":  utf16be,
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Parse(b)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if s.Title != "Enc" || s.Timeline.Event(0).Keys[0] != "Key3" {
				t.Fatalf("unexpected song %+v", s)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	for in, want := range map[string]string{"1Key5": "Key5", "key0": "Key0", "2KEY14": "Key14"} {
		got, ok := NormalizeKey(in)
		if !ok || got != want {
			t.Errorf("NormalizeKey(%q) = %q,%v want %q", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "1Key15", "Key", "C4"} {
		if _, ok := NormalizeKey(bad); ok {
			t.Errorf("NormalizeKey(%q) unexpectedly ok", bad)
		}
	}
}

func writeSong(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLibrary_LoadCachesUntilFileChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeSong(t, dir, "a.json", `{"name": "A", "songNotes": [{"time": 0, "key": "Key0"}]}`)

	lib := NewLibrary(nil)
	first, err := lib.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := lib.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached song on second load")
	}

	writeSong(t, dir, "a.json", `{"name": "A2", "songNotes": [{"time": 0, "key": "Key0"}, {"time": 5, "key": "Key1"}]}`)
	// Make sure the change is visible even on coarse mtime filesystems.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(p, later, later); err != nil {
		t.Fatal(err)
	}

	third, err := lib.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if third.Title != "A2" {
		t.Fatalf("expected reparsed song, got %q", third.Title)
	}
	if lib.Len() != 1 {
		t.Fatalf("expected one cache entry, got %d", lib.Len())
	}
}

func TestLibrary_Scan(t *testing.T) {
	dir := t.TempDir()
	writeSong(t, dir, "b.txt", `{"name": "B", "songNotes": [{"time": 0, "key": "Key0"}]}`)
	writeSong(t, dir, "a.json", `{"name": "A", "songNotes": [{"time": 0, "key": "Key0"}]}`)
	writeSong(t, dir, "broken.skysheet", `nope`)
	writeSong(t, dir, "readme.md", `# not a song`)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeSong(t, filepath.Join(dir, "sub"), "c.json", `{"name": "C", "songNotes": [{"time": 0, "key": "Key0"}]}`)

	lib := NewLibrary(nil)
	results, err := lib.Scan(context.Background(), dir, 2)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	var ok, failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		ok++
	}
	if ok != 3 || failed != 1 {
		t.Fatalf("expected 3 ok / 1 failed, got %d / %d", ok, failed)
	}
	if filepath.Base(results[0].Path) != "a.json" {
		t.Fatalf("expected results ordered by path, first is %s", results[0].Path)
	}
	if lib.Len() != 3 {
		t.Fatalf("expected 3 cached songs, got %d", lib.Len())
	}
}

func TestLibrary_ScanCanceled(t *testing.T) {
	dir := t.TempDir()
	writeSong(t, dir, "a.json", `{"songNotes": [{"time": 0, "key": "Key0"}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLibrary(nil).Scan(ctx, dir, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
