package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lyrica/internal/ipc"
	"lyrica/internal/keymap"
	"lyrica/internal/playback"
	"lyrica/internal/song"
)

// countingSink is a test double for the key sinks.
type countingSink struct {
	mu       sync.Mutex
	presses  int
	releases int
}

func (s *countingSink) Press(playback.KeyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presses++
	return nil
}

func (s *countingSink) Release(playback.KeyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

func (s *countingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presses, s.releases
}

const testSheet = `[{"name":"Ode","bpm":120,"songNotes":[
	{"time":0,"key":"1Key0"},
	{"time":50,"key":"1Key4"},
	{"time":5000,"key":"1Key14"}
]}]`

func newTestPlayer(t *testing.T) (*player, *countingSink, string) {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ode.json"), []byte(testSheet), 0o644); err != nil {
		t.Fatalf("write song: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Playback.StartDelayMS = 0
	cfg.Songs.Dir = dir
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	layout, err := cfg.LoadLayout()
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	res, err := keymap.NewResolver(layout, keymap.Linux)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	sink := &countingSink{}
	logger := slog.New(slog.DiscardHandler)
	engine, err := playback.New(cfg.ToEngineConfig(), sink, res, logger)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return newPlayer(&cfg, engine, song.NewLibrary(logger), logger), sink, dir
}

func waitStatus(t *testing.T, p *player, cond func(ipc.StatusView) bool, msg string) ipc.StatusView {
	t.Helper()
	var v ipc.StatusView
	waitUntil(t, 2*time.Second, func() bool {
		v = p.view(p.engine.Status())
		return cond(v)
	}, msg)
	return v
}

func TestPlayer_PlayStatusStop(t *testing.T) {
	p, sink, _ := newTestPlayer(t)
	ctx := context.Background()

	// Relative paths resolve against the songs directory.
	resp := p.Handle(ctx, ipc.Play{Path: "ode.json"})
	if resp.Err() != nil || resp.RunID == "" {
		t.Fatalf("play failed: %+v", resp)
	}

	v := waitStatus(t, p, func(v ipc.StatusView) bool { return v.NextIndex >= 2 }, "first notes not dispatched")
	if v.RunID != resp.RunID || v.Title != "Ode" || v.State != "running" || v.Events != 3 {
		t.Fatalf("unexpected status: %+v", v)
	}

	st := p.Handle(ctx, ipc.QueryStatus{})
	if st.State == nil || st.State.RunID != resp.RunID {
		t.Fatalf("status query: %+v", st)
	}

	if r := p.Handle(ctx, ipc.Stop{}); r.Err() != nil {
		t.Fatalf("stop: %v", r.Err())
	}
	waitStatus(t, p, func(v ipc.StatusView) bool { return v.State == "stopped" }, "run not stopped")

	presses, releases := sink.counts()
	if presses != 2 || releases != 2 {
		t.Fatalf("expected 2 presses and 2 releases, got %d/%d", presses, releases)
	}
}

func TestPlayer_Errors(t *testing.T) {
	p, _, dir := newTestPlayer(t)
	ctx := context.Background()

	if r := p.Handle(ctx, ipc.Play{Path: "missing.json"}); r.Err() == nil {
		t.Fatalf("expected error for missing song")
	}

	bad := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(bad, []byte(`{"songNotes":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := p.Handle(ctx, ipc.Play{Path: bad}); r.Err() == nil {
		t.Fatalf("expected error for song without notes")
	}

	if r := p.Handle(ctx, ipc.Play{Path: "ode.json", Tempo: 5}); r.Err() == nil || !strings.Contains(r.Error, "tempo") {
		t.Fatalf("expected tempo validation error, got %+v", r)
	}

	if r := p.Handle(ctx, ipc.SetSpeed{Tempo: 99999, RampMS: -1}); r.Err() == nil {
		t.Fatalf("expected set_speed validation error")
	}
}

func TestPlayer_SpeedHotkeysStepPresets(t *testing.T) {
	p, _, _ := newTestPlayer(t)

	// Nothing playing: ignored.
	p.hotkey(hotkeyFaster)
	if st := p.engine.Status(); st.State != playback.StateIdle {
		t.Fatalf("expected idle, got %v", st.State)
	}

	if r := p.Handle(context.Background(), ipc.Play{Path: "ode.json"}); r.Err() != nil {
		t.Fatalf("play: %v", r.Err())
	}
	waitStatus(t, p, func(v ipc.StatusView) bool { return v.State == "running" }, "not running")

	p.hotkey(hotkeyFaster)
	waitStatus(t, p, func(v ipc.StatusView) bool { return v.TargetTempo == 1200 }, "faster did not reach 1200")

	p.hotkey(hotkeySlower)
	waitStatus(t, p, func(v ipc.StatusView) bool { return v.TargetTempo == 1000 }, "slower did not return to 1000")

	p.hotkey(hotkeyPause)
	waitStatus(t, p, func(v ipc.StatusView) bool { return v.State == "paused" }, "pause hotkey did not pause")

	p.hotkey(hotkeyStop)
	waitStatus(t, p, func(v ipc.StatusView) bool { return v.State == "stopped" }, "stop hotkey did not stop")
}
