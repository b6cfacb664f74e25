package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyrica/internal/ipc"
	"lyrica/internal/playback"
	"lyrica/internal/song"
)

// player maps control requests (IPC, hotkeys) onto the engine and the song library.
type player struct {
	engine  *playback.Engine
	library *song.Library
	presets *presetStepper
	logger  *slog.Logger

	defaultTempo float64
	speedRamp    time.Duration
	songsDir     string

	mu    sync.Mutex
	runID string
	title string
}

var _ ipc.Handler = (*player)(nil)

func newPlayer(cfg *Config, engine *playback.Engine, library *song.Library, logger *slog.Logger) *player {
	return &player{
		engine:  engine,
		library: library,
		presets: newPresetStepper(cfg.Playback.SpeedPresets,
			msDuration(defaultPresetBurstWindowMS), defaultPresetBurstCount),
		logger:       logger,
		defaultTempo: cfg.Playback.DefaultTempo,
		speedRamp:    msDuration(cfg.Playback.SpeedRampMS),
		songsDir:     ExpandPath(cfg.Songs.Dir),
	}
}

// Handle implements ipc.Handler.
func (p *player) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch r := req.(type) {
	case ipc.Play:
		id, err := p.play(r.Path, r.Tempo)
		if err != nil {
			return ipc.Errorf("%v", err)
		}
		return ipc.Response{Status: "ok", RunID: id}

	case ipc.Pause:
		p.engine.Pause(r.RunID)
	case ipc.Resume:
		p.engine.Resume(r.RunID)
	case ipc.TogglePause:
		p.engine.TogglePause(r.RunID)

	case ipc.SetSpeed:
		ramp := p.speedRamp
		if r.RampMS >= 0 {
			ramp = msDuration(r.RampMS)
		}
		if err := p.engine.SetSpeed(r.RunID, r.Tempo, ramp); err != nil {
			return ipc.Errorf("%v", err)
		}

	case ipc.Stop:
		p.engine.Stop(r.RunID)

	case ipc.QueryStatus:
		v := p.view(p.engine.Status())
		return ipc.Response{Status: "ok", RunID: v.RunID, State: &v}

	default:
		return ipc.Errorf("unsupported request %T", req)
	}
	return ipc.OK()
}

// play loads path through the library and starts it. tempo 0 means the default tempo.
func (p *player) play(path string, tempo float64) (string, error) {
	if tempo == 0 {
		tempo = p.defaultTempo
	}

	s, err := p.library.Load(p.resolvePath(path))
	if err != nil {
		return "", err
	}

	id, err := p.engine.Start(s.Timeline, tempo)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.runID, p.title = id, s.Title
	p.mu.Unlock()

	p.logger.Info("song queued",
		"run_id", id,
		"title", s.Title,
		"events", s.Timeline.Len(),
		"skipped_notes", s.Skipped,
		"tempo", tempo,
	)
	return id, nil
}

// resolvePath looks a relative path up in the songs directory when it does not exist as given.
func (p *player) resolvePath(path string) string {
	path = ExpandPath(path)
	if p.songsDir == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return filepath.Join(p.songsDir, path)
	}
	return path
}

// hotkey performs a hotkey action against the active run.
func (p *player) hotkey(a hotkeyAction) {
	switch a {
	case hotkeyPause:
		p.engine.TogglePause("")
	case hotkeyStop:
		p.engine.Stop("")
	case hotkeyFaster, hotkeySlower:
		dir := 1
		if a == hotkeySlower {
			dir = -1
		}
		st := p.engine.Status()
		if !st.State.Active() {
			p.logger.Debug("speed hotkey ignored: nothing playing")
			return
		}
		current := math.Round(st.TargetTempo*1000) / 1000
		tempo, ok := p.presets.step(current, dir, time.Now())
		if !ok || tempo == current {
			return
		}
		if err := p.engine.SetSpeed(st.RunID, tempo, p.speedRamp); err != nil {
			p.logger.Warn("speed hotkey rejected", "tempo", tempo, "error", err)
			return
		}
		p.logger.Info("speed preset", "run_id", st.RunID, "tempo", tempo)
	}
}

// view converts an engine snapshot for the wire, attaching the song title of the run.
func (p *player) view(st playback.Status) ipc.StatusView {
	p.mu.Lock()
	title := ""
	if st.RunID != "" && st.RunID == p.runID {
		title = p.title
	}
	p.mu.Unlock()
	return ipc.NewStatusView(st, p.engine.Config().ReferenceTempo, title)
}
