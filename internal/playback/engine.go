package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Playback engine
// ============================================================================
//
// The engine owns one dispatch loop (Run). The loop is the only place that:
//   - mutates run state, tempo, nominal position and the held-key set
//   - calls the KeyResolver and the KeySink
//
// Everything else talks to it through the command queue (fire-and-forget) and
// reads it through Status / Updates (read-only snapshots).
//
// Time mapping: nominal position is the integral of the speed factor over real
// time. On every wake the loop integrates speed since the previous wake, fires
// every event whose offset has been reached, then sleeps until the next event
// deadline derived from the current speed (capped at Granularity while a ramp
// is in flight, and by the earliest pending key release).
// ============================================================================

// HoldPolicy forces every key hold to Duration when Enabled.
type HoldPolicy struct {
	Enabled  bool
	Duration time.Duration
}

// Config holds the engine's tuning. Tempo values are in tempo units; the speed
// factor is tempo / ReferenceTempo.
type Config struct {
	ReferenceTempo float64
	MinTempo       float64
	MaxTempo       float64

	// DefaultHold is used for events without an explicit Hold.
	DefaultHold  time.Duration
	HoldOverride HoldPolicy

	// StartDelay holds the position at zero after Start.
	StartDelay time.Duration
	// StartRamp, when non-zero, ramps from ResumeTempo up to the start tempo once StartDelay elapses.
	StartRamp time.Duration

	// ResumeDelay holds the position after Resume; the resume ramp starts when it elapses.
	ResumeDelay time.Duration
	ResumeTempo float64
	ResumeRamp  time.Duration

	// EndRamp, when non-zero, is the nominal distance before the last note over which playback
	// slows to max(ResumeTempo, half the set tempo).
	EndRamp time.Duration

	Granularity time.Duration
	SinkTimeout time.Duration
	Easing      Easing
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() Config {
	return Config{
		ReferenceTempo: 1000,
		MinTempo:       600,
		MaxTempo:       1500,
		DefaultHold:    100 * time.Millisecond,
		StartDelay:     800 * time.Millisecond,
		ResumeDelay:    1000 * time.Millisecond,
		ResumeTempo:    500,
		ResumeRamp:     1500 * time.Millisecond,
		Granularity:    10 * time.Millisecond,
		SinkTimeout:    250 * time.Millisecond,
		Easing:         Linear,
	}
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	switch {
	case !(c.ReferenceTempo > 0):
		return &ValidationError{Field: "reference_tempo", Reason: "must be > 0"}
	case !(c.MinTempo > 0):
		return &ValidationError{Field: "min_tempo", Reason: "must be > 0"}
	case !(c.MaxTempo >= c.MinTempo):
		return &ValidationError{Field: "max_tempo", Reason: fmt.Sprintf("must be >= min_tempo (%g)", c.MinTempo)}
	case c.DefaultHold <= 0:
		return &ValidationError{Field: "default_hold", Reason: "must be > 0"}
	case c.HoldOverride.Enabled && c.HoldOverride.Duration <= 0:
		return &ValidationError{Field: "hold_override", Reason: "must be > 0 when enabled"}
	case c.StartDelay < 0 || c.StartRamp < 0 || c.ResumeDelay < 0 || c.ResumeRamp < 0 || c.EndRamp < 0:
		return &ValidationError{Field: "delays", Reason: "must not be negative"}
	case !(c.ResumeTempo > 0):
		return &ValidationError{Field: "resume_tempo", Reason: "must be > 0"}
	case c.Granularity <= 0:
		return &ValidationError{Field: "granularity", Reason: "must be > 0"}
	case c.SinkTimeout <= 0:
		return &ValidationError{Field: "sink_timeout", Reason: "must be > 0"}
	}
	return nil
}

// Factor converts a tempo into a speed factor.
func (c Config) Factor(tempo float64) float64 { return tempo / c.ReferenceTempo }

// Status is a read-only snapshot of the engine.
type Status struct {
	RunID       string
	State       State
	Position    time.Duration
	Duration    time.Duration
	Speed       float64 // instantaneous speed factor
	TargetTempo float64
	Ramping     bool
	NextIndex   int
	Events      int
	Held        []string
	Failure     error
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// Tempo returns the instantaneous speed in tempo units.
func (s Status) Tempo(reference float64) float64 { return s.Speed * reference }

func (s Status) sameAs(o Status) bool {
	return s.RunID == o.RunID &&
		s.State == o.State &&
		s.Position == o.Position &&
		s.NextIndex == o.NextIndex &&
		s.Speed == o.Speed &&
		s.TargetTempo == o.TargetTempo &&
		slices.Equal(s.Held, o.Held)
}

// run is the loop-owned state of one playback.
type run struct {
	id       string
	timeline *Timeline
	state    State
	tempo    *Tempo
	keys     *keyTracker

	position time.Duration
	next     int

	lastTick time.Time
	// holdUntil freezes the position (start delay, resume delay).
	holdUntil time.Time
	// heldBack is the part of a start delay that was still pending when the run was paused.
	heldBack time.Duration
	// ending is set while the end ramp governs the tempo; setTarget is the speed it replaced.
	ending    bool
	setTarget float64

	failure   error
	startedAt time.Time
}

// Engine schedules timeline events onto a KeySink.
type Engine struct {
	cfg      Config
	sink     KeySink
	resolver KeyResolver
	logger   *slog.Logger

	mu    sync.Mutex
	queue []command
	wake  chan struct{}

	statusMu sync.RWMutex
	status   Status

	subMu sync.Mutex
	subs  map[chan Status]struct{}

	// Owned by Run.
	cur *run
}

// New creates an engine. Call Run to start its loop.
func New(cfg Config, sink KeySink, resolver KeyResolver, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("playback: nil key sink")
	}
	if resolver == nil {
		return nil, errors.New("playback: nil key resolver")
	}
	if cfg.Easing == nil {
		cfg.Easing = Linear
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		cfg:      cfg,
		sink:     sink,
		resolver: resolver,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		status:   Status{State: StateIdle},
		subs:     make(map[chan Status]struct{}),
	}, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// ----------------------------------------------------------------------------
// Public commands (fire-and-forget)
// ----------------------------------------------------------------------------

// Start validates tl and tempo and queues a new run, returning its id.
// An active run is stopped when the new one is applied.
func (e *Engine) Start(tl *Timeline, tempo float64) (string, error) {
	if tl.Len() == 0 {
		return "", &ValidationError{Field: "timeline", Reason: "no events"}
	}
	if err := e.checkTempo(tempo); err != nil {
		return "", err
	}
	id := uuid.New().String()
	e.enqueue(startCmd{runID: id, timeline: tl, speed: e.cfg.Factor(tempo)})
	return id, nil
}

// Pause queues a pause. An empty runID targets the active run.
func (e *Engine) Pause(runID string) { e.enqueue(pauseCmd{runID: runID}) }

// Resume queues a resume.
func (e *Engine) Resume(runID string) { e.enqueue(resumeCmd{runID: runID}) }

// TogglePause pauses a running run or resumes a paused one.
func (e *Engine) TogglePause(runID string) { e.enqueue(togglePauseCmd{runID: runID}) }

// SetSpeed queues a tempo change ramped over ramp. Out-of-range tempos are rejected.
func (e *Engine) SetSpeed(runID string, tempo float64, ramp time.Duration) error {
	if err := e.checkTempo(tempo); err != nil {
		return err
	}
	if ramp < 0 {
		return &ValidationError{Field: "ramp", Reason: "must not be negative"}
	}
	e.enqueue(setSpeedCmd{runID: runID, speed: e.cfg.Factor(tempo), ramp: ramp})
	return nil
}

// Stop queues a stop. It is safe to call in any state, any number of times.
func (e *Engine) Stop(runID string) { e.enqueue(stopCmd{runID: runID}) }

func (e *Engine) checkTempo(tempo float64) error {
	if !(tempo >= e.cfg.MinTempo && tempo <= e.cfg.MaxTempo) {
		return &ValidationError{
			Field:  "tempo",
			Reason: fmt.Sprintf("%g outside [%g, %g]", tempo, e.cfg.MinTempo, e.cfg.MaxTempo),
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Status
// ----------------------------------------------------------------------------

// Status returns the latest snapshot published by the loop.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// Updates subscribes to status snapshots. Sends never block the loop: a subscriber that falls
// behind misses snapshots. Call cancel to unsubscribe; it closes the channel.
func (e *Engine) Updates(buffer int) (<-chan Status, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Status, buffer)

	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, ch)
			close(ch)
			e.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (e *Engine) snapshot(now time.Time) Status {
	r := e.cur
	if r == nil {
		return Status{State: StateIdle, UpdatedAt: now}
	}
	pos := r.position
	if d := r.timeline.Duration(); pos > d {
		pos = d
	}
	st := Status{
		RunID:       r.id,
		State:       r.state,
		Position:    pos,
		Duration:    r.timeline.Duration(),
		TargetTempo: r.target() * e.cfg.ReferenceTempo,
		NextIndex:   r.next,
		Events:      r.timeline.Len(),
		Held:        r.keys.names(),
		Failure:     r.failure,
		StartedAt:   r.startedAt,
		UpdatedAt:   now,
	}
	if r.state == StateRunning && !now.Before(r.holdUntil) {
		st.Speed = r.tempo.Speed(now)
		st.Ramping = r.tempo.Ramping(now)
	}
	return st
}

func (e *Engine) publish(now time.Time) {
	st := e.snapshot(now)

	e.statusMu.Lock()
	prev := e.status
	e.status = st
	e.statusMu.Unlock()

	if prev.sameAs(st) {
		return
	}

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- st:
			continue
		default:
		}
		if !st.State.Terminal() {
			continue
		}
		// Nothing is published after a terminal state, so make room for it.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// ----------------------------------------------------------------------------
// Loop
// ----------------------------------------------------------------------------

// Run is the dispatch loop. It returns when ctx is canceled, stopping (and releasing the keys
// of) any active run first.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("playback engine started")

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		e.step(time.Now())
		now := time.Now()
		e.publish(now)

		var timerC <-chan time.Time
		if wait, ok := e.nextWake(now); ok {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if r := e.cur; r != nil && r.state.Active() {
				e.stop(r, time.Now())
			}
			e.publish(time.Now())
			e.logger.Info("playback engine stopping (context canceled)")
			return nil
		case <-e.wake:
		case <-timerC:
		}
		timer.Stop()
	}
}

// step performs one wake: integrate position, apply commands, release due keys, press due
// events, detect completion.
func (e *Engine) step(now time.Time) {
	if r := e.cur; r != nil {
		e.advance(r, now)
	}

	for _, c := range e.drain() {
		e.apply(c, now)
	}

	r := e.cur
	if r == nil || !r.state.Active() {
		return
	}

	// Releases first so a key whose hold expired is up before its next press.
	for _, code := range r.keys.due(now) {
		key, index := r.keys.origin(code)
		if err := e.release(r, code); err != nil {
			e.fail(r, &DispatchError{RunID: r.id, Index: index, Key: key, Err: err})
			return
		}
	}

	if r.state != StateRunning || now.Before(r.holdUntil) {
		return
	}

	e.endRamp(r, now)

	for r.next < r.timeline.Len() {
		ev := r.timeline.Event(r.next)
		if ev.Offset > r.position {
			break
		}
		if err := e.dispatch(r, r.next, ev, now); err != nil {
			e.fail(r, err)
			return
		}
		r.next++
	}

	if r.next >= r.timeline.Len() && r.keys.len() == 0 && r.position >= r.timeline.Duration() {
		r.state = StateCompleted
		e.logger.Info("playback completed",
			"run_id", r.id,
			"events", r.timeline.Len(),
			"elapsed", now.Sub(r.startedAt).Round(time.Millisecond),
		)
	}
}

// advance integrates speed into the nominal position up to now.
func (e *Engine) advance(r *run, now time.Time) {
	if r.state != StateRunning {
		r.lastTick = now
		return
	}
	from := r.lastTick
	if from.Before(r.holdUntil) {
		from = r.holdUntil
	}
	if now.After(from) {
		r.position += r.tempo.Advance(from, now)
	}
	r.lastTick = now
	r.tempo.Settle(now)
}

// endRamp slows the run down once the distance to the last note is inside Config.EndRamp.
func (e *Engine) endRamp(r *run, now time.Time) {
	if e.cfg.EndRamp <= 0 || r.ending {
		return
	}
	remaining := r.timeline.Event(r.timeline.Len()-1).Offset - r.position
	if remaining <= 0 || remaining > e.cfg.EndRamp {
		return
	}

	set := r.tempo.Target()
	floor := min(max(e.cfg.Factor(e.cfg.ResumeTempo), set/2), set)
	speed := r.tempo.Speed(now)
	r.ending = true
	r.setTarget = set
	if floor >= speed {
		return
	}
	r.tempo.RampFrom(now, speed, floor, realFor(remaining, speed))
	e.logger.Debug("end ramp started", "run_id", r.id, "remaining", remaining, "tempo", floor*e.cfg.ReferenceTempo)
}

// target is the speed the user set, ignoring the end ramp.
func (r *run) target() float64 {
	if r.ending {
		return r.setTarget
	}
	return r.tempo.Target()
}

// nextWake returns how long the loop may sleep. ok=false means until a command arrives.
func (e *Engine) nextWake(now time.Time) (wait time.Duration, ok bool) {
	r := e.cur
	if r == nil || !r.state.Active() {
		return 0, false
	}

	consider := func(d time.Duration) {
		if d < 0 {
			d = 0
		}
		if !ok || d < wait {
			wait, ok = d, true
		}
	}

	if at, has := r.keys.next(); has {
		consider(at.Sub(now))
	}

	if r.state != StateRunning {
		return wait, ok
	}

	if now.Before(r.holdUntil) {
		consider(r.holdUntil.Sub(now))
		return wait, ok
	}

	goal := r.timeline.Duration()
	if r.next < r.timeline.Len() {
		goal = r.timeline.Event(r.next).Offset
	}
	if e.cfg.EndRamp > 0 && !r.ending {
		if at := r.timeline.Event(r.timeline.Len()-1).Offset - e.cfg.EndRamp; at > r.position && at < goal {
			goal = at
		}
	}
	if remaining := goal - r.position; remaining > 0 {
		d := realFor(remaining, r.tempo.Speed(now))
		if r.tempo.Ramping(now) && d > e.cfg.Granularity {
			d = e.cfg.Granularity
		}
		consider(d)
	}
	return wait, ok
}

// ----------------------------------------------------------------------------
// Command application (loop only)
// ----------------------------------------------------------------------------

func (e *Engine) apply(c command, now time.Time) {
	if sc, ok := c.(startCmd); ok {
		e.start(sc, now)
		return
	}

	r := e.cur
	id := target(c)
	if r == nil || !r.state.Active() || (id != "" && id != r.id) {
		e.logger.Debug("command dropped", "command", c.kind(), "run_id", id, "reason", ErrRunNotActive)
		return
	}

	switch c := c.(type) {
	case pauseCmd:
		e.pause(r, now)
	case resumeCmd:
		e.resume(r, now)
	case togglePauseCmd:
		if r.state == StateRunning {
			e.pause(r, now)
		} else {
			e.resume(r, now)
		}
	case setSpeedCmd:
		e.setSpeed(r, c, now)
	case stopCmd:
		e.stop(r, now)
	}
}

func (e *Engine) start(c startCmd, now time.Time) {
	if prev := e.cur; prev != nil && prev.state.Active() {
		e.logger.Info("stopping previous run", "run_id", prev.id, "next_run_id", c.runID)
		e.stop(prev, now)
		e.publish(now)
	}

	r := &run{
		id:        c.runID,
		timeline:  c.timeline,
		state:     StateRunning,
		tempo:     NewTempo(c.speed, e.cfg.Easing),
		keys:      newKeyTracker(),
		lastTick:  now,
		holdUntil: now.Add(e.cfg.StartDelay),
		startedAt: now,
	}
	if e.cfg.StartRamp > 0 {
		from := min(e.cfg.Factor(e.cfg.ResumeTempo), c.speed)
		r.tempo.RampFrom(r.holdUntil, from, c.speed, e.cfg.StartRamp)
	}
	e.cur = r

	e.logger.Info("playback started",
		"run_id", r.id,
		"events", r.timeline.Len(),
		"duration", r.timeline.Duration(),
		"tempo", c.speed*e.cfg.ReferenceTempo,
	)
}

func (e *Engine) pause(r *run, now time.Time) {
	if r.state != StateRunning {
		return
	}
	r.heldBack = 0
	if now.Before(r.holdUntil) {
		r.heldBack = r.holdUntil.Sub(now)
	}
	// Drop any in-flight ramp; resume climbs back to the target.
	// The end ramp re-engages on the first running wake after resume.
	r.tempo.Instant(r.target())
	r.ending = false
	r.state = StatePaused

	if err := e.releaseAll(r); err != nil {
		e.fail(r, err)
		return
	}
	e.logger.Info("playback paused", "run_id", r.id, "position", r.position, "next", r.next)
}

func (e *Engine) resume(r *run, now time.Time) {
	if r.state != StatePaused {
		return
	}
	delay := max(e.cfg.ResumeDelay, r.heldBack)
	r.heldBack = 0
	r.holdUntil = now.Add(delay)
	r.lastTick = now

	to := r.tempo.Target()
	from := min(e.cfg.Factor(e.cfg.ResumeTempo), to)
	r.tempo.RampFrom(r.holdUntil, from, to, e.cfg.ResumeRamp)
	r.state = StateRunning

	e.logger.Info("playback resumed", "run_id", r.id, "position", r.position, "delay", delay)
}

func (e *Engine) setSpeed(r *run, c setSpeedCmd, now time.Time) {
	r.ending = false
	switch {
	case r.state == StatePaused:
		// Takes effect through the resume ramp.
		r.tempo.Instant(c.speed)
	default:
		if rp, ok := r.tempo.Ramp(); ok && rp.StartedAt.After(now) {
			// A resume/start ramp is still pending: retarget it without restarting it.
			r.tempo.RampFrom(rp.StartedAt, min(rp.From, c.speed), c.speed, rp.Duration)
		} else if now.Before(r.holdUntil) {
			// The position is frozen until holdUntil; the ramp starts when it moves again.
			r.tempo.RampFrom(r.holdUntil, r.tempo.Speed(now), c.speed, c.ramp)
		} else {
			r.tempo.SetTarget(now, c.speed, c.ramp)
		}
	}
	e.logger.Info("playback speed changed",
		"run_id", r.id,
		"tempo", c.speed*e.cfg.ReferenceTempo,
		"ramp", c.ramp,
		"state", r.state,
	)
}

func (e *Engine) stop(r *run, now time.Time) {
	if !r.state.Active() {
		return
	}
	r.state = StateStopped
	if err := e.releaseAll(r); err != nil {
		e.logger.Warn("release on stop failed", "run_id", r.id, "error", err)
	}
	e.logger.Info("playback stopped", "run_id", r.id, "position", r.position, "next", r.next,
		"elapsed", now.Sub(r.startedAt).Round(time.Millisecond))
}

func (e *Engine) fail(r *run, err error) {
	r.state = StateFailed
	r.failure = err
	if rerr := e.releaseAll(r); rerr != nil {
		e.logger.Warn("release on failure failed", "run_id", r.id, "error", rerr)
	}
	e.logger.Error("playback failed", "run_id", r.id, "error", err)
}

// ----------------------------------------------------------------------------
// Key actions (loop only)
// ----------------------------------------------------------------------------

func (e *Engine) holdFor(ev NoteEvent) time.Duration {
	if e.cfg.HoldOverride.Enabled {
		return e.cfg.HoldOverride.Duration
	}
	if ev.Hold > 0 {
		return ev.Hold
	}
	return e.cfg.DefaultHold
}

// dispatch resolves every key of ev, then presses them back-to-back. A key still down from an
// earlier event is released before it is pressed again.
func (e *Engine) dispatch(r *run, index int, ev NoteEvent, now time.Time) error {
	codes := make([]KeyCode, 0, len(ev.Keys))
	names := make([]string, 0, len(ev.Keys))
	for _, key := range ev.Keys {
		code, ok := e.resolver.Resolve(key)
		if !ok {
			return &DispatchError{RunID: r.id, Index: index, Key: key, Err: &ResolutionError{Key: key}}
		}
		if slices.Contains(codes, code) {
			continue
		}
		codes = append(codes, code)
		names = append(names, key)
	}

	releaseAt := now.Add(e.holdFor(ev))
	for i, code := range codes {
		if r.keys.isHeld(code) {
			if err := e.release(r, code); err != nil {
				return &DispatchError{RunID: r.id, Index: index, Key: names[i], Err: err}
			}
			e.logger.Debug("early release", "run_id", r.id, "index", index, "key", names[i])
		}
		if err := callSink("press", code, e.cfg.SinkTimeout, e.sink.Press, e.sink.Release); err != nil {
			return &DispatchError{RunID: r.id, Index: index, Key: names[i], Err: err}
		}
		r.keys.pressed(code, names[i], index, releaseAt)
	}

	e.logger.Debug("event dispatched",
		"run_id", r.id,
		"index", index,
		"keys", ev.Keys,
		"offset", ev.Offset,
		"position", r.position,
	)
	return nil
}

// release lifts one key. The key leaves the held set even when the sink fails, so it is never
// released twice.
func (e *Engine) release(r *run, code KeyCode) error {
	r.keys.released(code)
	return callSink("release", code, e.cfg.SinkTimeout, e.sink.Release, nil)
}

// releaseAll lifts every held key, continuing past failures. It returns the first failure.
func (e *Engine) releaseAll(r *run) error {
	var first error
	for _, code := range r.keys.codes() {
		key, index := r.keys.origin(code)
		if err := e.release(r, code); err != nil && first == nil {
			first = &DispatchError{RunID: r.id, Index: index, Key: key, Err: err}
		}
	}
	r.keys.reset()
	return first
}
