package playback

import "time"

// ============================================================================
// Engine commands
// ============================================================================
// Commands carry intent from callers (IPC, hotkeys, HTTP) into the engine loop.
// They are queued by the public Engine methods and applied only by the loop,
// between dispatch steps.
//
// A non-empty runID pins a command to a specific run; an empty runID targets
// whatever run is active when the command is applied.
// ============================================================================

type command interface {
	commandMarker()
	kind() string
}

type startCmd struct {
	runID    string
	timeline *Timeline
	speed    float64
}

type pauseCmd struct{ runID string }

type resumeCmd struct{ runID string }

type togglePauseCmd struct{ runID string }

type setSpeedCmd struct {
	runID string
	speed float64
	ramp  time.Duration
}

type stopCmd struct{ runID string }

func (startCmd) commandMarker()       {}
func (pauseCmd) commandMarker()       {}
func (resumeCmd) commandMarker()      {}
func (togglePauseCmd) commandMarker() {}
func (setSpeedCmd) commandMarker()    {}
func (stopCmd) commandMarker()        {}

func (startCmd) kind() string       { return "start" }
func (pauseCmd) kind() string       { return "pause" }
func (resumeCmd) kind() string      { return "resume" }
func (togglePauseCmd) kind() string { return "toggle_pause" }
func (setSpeedCmd) kind() string    { return "set_speed" }
func (stopCmd) kind() string        { return "stop" }

// target returns the run id a command is pinned to ("" = active run).
func target(c command) string {
	switch c := c.(type) {
	case startCmd:
		return c.runID
	case pauseCmd:
		return c.runID
	case resumeCmd:
		return c.runID
	case togglePauseCmd:
		return c.runID
	case setSpeedCmd:
		return c.runID
	case stopCmd:
		return c.runID
	}
	return ""
}

// ----------------------------------------------------------------------------
// Queue
// ----------------------------------------------------------------------------

// enqueue appends c to the unbounded command queue and pokes the loop.
// It never blocks on the loop.
func (e *Engine) enqueue(c command) {
	e.mu.Lock()
	e.queue = append(e.queue, c)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// drain takes every queued command.
func (e *Engine) drain() []command {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil
	}
	out := e.queue
	e.queue = nil
	return out
}
