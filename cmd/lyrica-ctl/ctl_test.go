package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"lyrica/internal/ipc"
	"lyrica/internal/song"
)

func TestFormatStatus_Idle(t *testing.T) {
	out := formatStatus(ipc.StatusView{State: "idle"}, time.Now())
	if out != "State:    idle\n" {
		t.Errorf("unexpected idle output %q", out)
	}
}

func TestFormatStatus_Running(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	idx := 1234
	v := ipc.StatusView{
		RunID:       "r1",
		State:       "failed",
		Title:       "Ode",
		PositionMS:  30_000,
		DurationMS:  60_000,
		Speed:       1.2,
		Tempo:       1200,
		TargetTempo: 800,
		Ramping:     true,
		NextIndex:   1234,
		Events:      5000,
		Held:        []string{"Key3"},
		Failure:     "sink timeout",
		FailedIndex: &idx,
		FailedKey:   "Key3",
		StartedAt:   now.Add(-3 * time.Minute),
	}
	out := formatStatus(v, now)
	for _, want := range []string{
		"Run:      r1",
		"Song:     Ode",
		"(50%)",
		"1200 (x1.20), ramping to 800",
		"1,234 of 5,000",
		"Held:     Key3",
		"3 minutes ago",
		"Failure:  sink timeout",
		"at event 1234 (Key3)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDuration_SubSecond(t *testing.T) {
	if got := formatDuration(400 * time.Millisecond); got != "0s" {
		t.Errorf("expected 0s, got %q", got)
	}
}

func TestLibraryRow(t *testing.T) {
	s, err := song.Parse([]byte(`[{"name":"Ode","songNotes":[{"time":0,"key":"1Key1"},{"time":500,"key":"1Key99"}]}]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	row := libraryRow("ode.json", s, 2048)
	cols := strings.Split(row, "\t")
	if len(cols) != 5 {
		t.Fatalf("expected 5 columns, got %d: %q", len(cols), row)
	}
	if cols[0] != "ode.json" || cols[1] != "Ode" {
		t.Errorf("unexpected file/title columns: %q", row)
	}
	if cols[2] != "1 (1 skipped)" {
		t.Errorf("unexpected notes column %q", cols[2])
	}
	if cols[4] != "2.0 kB" {
		t.Errorf("unexpected size column %q", cols[4])
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1, "████"},
		{2, "████"},
		{-1, "░░░░"},
	}
	for _, tt := range tests {
		if got := progressBar(tt.p, 4); got != tt.want {
			t.Errorf("progressBar(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	msg, ok := decodeFrame([]byte(`{"type":"progress","ts":"2026-01-01T00:00:00Z","data":{"state":"running","position_ms":1500}}`))
	if !ok {
		t.Fatal("expected progress frame to decode")
	}
	if msg.kind != "progress" || msg.view.State != "running" || msg.view.PositionMS != 1500 {
		t.Errorf("unexpected message %+v", msg)
	}

	if _, ok := decodeFrame([]byte(`{"type":"hello"}`)); ok {
		t.Error("unknown frame types should be ignored")
	}
	if _, ok := decodeFrame([]byte(`not json`)); ok {
		t.Error("invalid JSON should be ignored")
	}
}

func TestWatchModel_KeysSendControl(t *testing.T) {
	var sent []ipc.Request
	m := newWatchModel(make(chan statusMsg), func(req ipc.Request) error {
		sent = append(sent, req)
		if _, ok := req.(ipc.Stop); ok {
			return errors.New("daemon error: nothing to stop")
		}
		return nil
	})

	next, _ := m.Update(statusMsg{kind: "state_init", view: ipc.StatusView{RunID: "r9", State: "running"}})
	m = next.(watchModel)
	if !m.seen || m.view.RunID != "r9" {
		t.Fatalf("status not applied: %+v", m.view)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = next.(watchModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = next.(watchModel)

	if len(sent) != 2 {
		t.Fatalf("expected 2 control requests, got %d", len(sent))
	}
	if tp, ok := sent[0].(ipc.TogglePause); !ok || tp.RunID != "r9" {
		t.Errorf("expected toggle for r9, got %#v", sent[0])
	}
	if m.lastErr == "" || !strings.Contains(m.View(), "nothing to stop") {
		t.Errorf("expected stop error in view, got %q", m.View())
	}
}

func TestWatchModel_StreamErrorQuits(t *testing.T) {
	m := newWatchModel(make(chan statusMsg), func(ipc.Request) error { return nil })
	next, cmd := m.Update(statusMsg{err: errors.New("connection reset")})
	m = next.(watchModel)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "connection reset") {
		t.Errorf("expected error in view, got %q", m.View())
	}
}

func TestRootCmd_SpeedRejectsBadTempo(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"--socket", "/nonexistent.sock", "speed", "fast"})
	root.SilenceErrors = true
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), `invalid tempo "fast"`) {
		t.Errorf("expected invalid tempo error, got %v", err)
	}
}

func TestRootCmd_BadLogLevel(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"--log-level", "loud", "status"})
	root.SilenceErrors = true
	if err := root.Execute(); err == nil {
		t.Error("expected invalid log level error")
	}
}
