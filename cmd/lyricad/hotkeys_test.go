package main

import (
	"log/slog"
	"slices"
	"testing"
)

func TestHotkeyListener_KeyDownOnly(t *testing.T) {
	cfg := DefaultConfig().Hotkeys
	bindings, err := cfg.Bindings()
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}

	var got []hotkeyAction
	h := &hotkeyListener{
		bindings: bindings,
		handle:   func(a hotkeyAction) { got = append(got, a) },
		logger:   slog.New(slog.DiscardHandler),
	}

	const (
		keyBackslash = 43 // "#" on ISO keyboards
		keyF10       = 68
		keyPageUp    = 104
		keyA         = 30
	)

	h.translate(inputEvent{Type: EV_KEY, Code: keyBackslash, Value: evValuePress})
	h.translate(inputEvent{Type: EV_KEY, Code: keyBackslash, Value: evValueRepeat})
	h.translate(inputEvent{Type: EV_KEY, Code: keyBackslash, Value: evValueRelease})
	h.translate(inputEvent{Type: EV_SYN, Code: keyBackslash, Value: evValuePress})
	h.translate(inputEvent{Type: EV_KEY, Code: keyA, Value: evValuePress})
	h.translate(inputEvent{Type: EV_KEY, Code: keyPageUp, Value: evValuePress})
	h.translate(inputEvent{Type: EV_KEY, Code: keyF10, Value: evValuePress})

	want := []hotkeyAction{hotkeyPause, hotkeyFaster, hotkeyStop}
	if !slices.Equal(got, want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
}

func TestHotkeysConfig_Bindings(t *testing.T) {
	cfg := HotkeysConfig{Pause: "f9", Stop: "", Faster: "up", Slower: "down"}
	b, err := cfg.Bindings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 3 || b[67] != hotkeyPause || b[103] != hotkeyFaster || b[108] != hotkeySlower {
		t.Fatalf("unexpected bindings: %v", b)
	}

	if _, err := (HotkeysConfig{Pause: "f9", Stop: "F9"}).Bindings(); err == nil {
		t.Fatalf("expected duplicate binding error")
	}
	if _, err := (HotkeysConfig{Pause: "hyper"}).Bindings(); err == nil {
		t.Fatalf("expected unknown key error")
	}
}
