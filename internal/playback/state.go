package playback

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of a playback run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateRunning:   "running",
	StatePaused:    "paused",
	StateStopped:   "stopped",
	StateCompleted: "completed",
	StateFailed:    "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Active reports whether a run in this state still owns the loop (Running or Paused).
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}

// Terminal reports whether the state is final for its run.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateCompleted || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown playback state %q", string(b))
}
