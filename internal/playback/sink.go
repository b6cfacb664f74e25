package playback

import (
	"time"
)

// KeyCode is a physical key identifier understood by a KeySink (a Linux input key code for the
// uinput sink, a HID usage for the serial bridge, a MIDI note for the preview sink).
type KeyCode uint16

// KeySink performs the actual key injection. The engine loop issues calls one at a time and
// bounds each by Config.SinkTimeout, but a call abandoned on timeout keeps running in the
// background, and a press that completes late is undone with a Release from that goroutine.
// Implementations must be safe for concurrent use.
type KeySink interface {
	Press(code KeyCode) error
	Release(code KeyCode) error
}

// KeyResolver maps a logical key id (e.g. "Key5") to a physical key for the active layout.
type KeyResolver interface {
	Resolve(key string) (KeyCode, bool)
}

// MapResolver is a fixed lookup table.
type MapResolver map[string]KeyCode

func (m MapResolver) Resolve(key string) (KeyCode, bool) {
	code, ok := m[key]
	return code, ok
}

// callSink runs fn with a deadline. On timeout the call is abandoned (its goroutine finishes in
// the background) and ErrSinkTimeout is reported. If undo is set and the abandoned call later
// succeeds, undo runs on the same code.
func callSink(op string, code KeyCode, timeout time.Duration, fn, undo func(KeyCode) error) error {
	done := make(chan error, 1)
	go func() { done <- fn(code) }()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		if err != nil {
			return &InjectionError{Op: op, Code: code, Err: err}
		}
		return nil
	case <-t.C:
		if undo != nil {
			go func() {
				if err := <-done; err == nil {
					_ = undo(code)
				}
			}()
		}
		return &InjectionError{Op: op, Code: code, Err: ErrSinkTimeout}
	}
}
