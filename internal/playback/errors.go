package playback

import (
	"errors"
	"fmt"
)

// ErrSinkTimeout is returned when a KeySink call does not return within the configured bound.
var ErrSinkTimeout = errors.New("key sink call timed out")

// ErrRunNotActive marks a command that referenced a run which is no longer active.
// Such commands are dropped; the error only appears in debug logs.
var ErrRunNotActive = errors.New("run not active")

// ValidationError rejects a timeline, tempo, or option before a run starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ResolutionError reports a logical key with no physical mapping in the active layout.
type ResolutionError struct {
	Key string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no key mapping for %q", e.Key)
}

// InjectionError reports a failed or timed-out KeySink call.
type InjectionError struct {
	Op   string // "press" or "release"
	Code KeyCode
	Err  error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("%s key %d: %v", e.Op, e.Code, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }

// DispatchError is the structured failure recorded on a run that ended in StateFailed.
// Index is the timeline event being dispatched, or the event whose key was being released.
type DispatchError struct {
	RunID string
	Index int
	Key   string
	Err   error
}

func (e *DispatchError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("run %s: event %d key %q: %v", e.RunID, e.Index, e.Key, e.Err)
	}
	return fmt.Sprintf("run %s: event %d: %v", e.RunID, e.Index, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
