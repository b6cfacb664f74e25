package ipc

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lyrica/internal/playback"
)

func TestRequestRoundTrip(t *testing.T) {
	reqs := []Request{
		Play{Path: "/songs/a.json", Tempo: 800},
		Pause{RunID: "r1"},
		Resume{},
		TogglePause{},
		SetSpeed{Tempo: 1200, RampMS: 500},
		Stop{RunID: "r2"},
		QueryStatus{},
	}
	for _, r := range reqs {
		data, err := MarshalRequest(r)
		if err != nil {
			t.Fatalf("marshal %T: %v", r, err)
		}
		got, err := UnmarshalRequest(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got != r {
			t.Fatalf("round trip mismatch: sent %#v, got %#v", r, got)
		}
	}
}

func TestUnmarshalRequest_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing type":   `{"data":{}}`,
		"unknown type":   `{"type":"rewind"}`,
		"play no path":   `{"type":"play","data":{}}`,
		"speed no tempo": `{"type":"set_speed","data":{"ramp_ms":100}}`,
		"bad data":       `{"type":"stop","data":{"run_id":5}}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := UnmarshalRequest([]byte(line)); err == nil {
				t.Fatalf("expected error for %s", line)
			}
		})
	}
}

func TestUnmarshalRequest_SetSpeedDefaultRamp(t *testing.T) {
	req, err := UnmarshalRequest([]byte(`{"type":"set_speed","data":{"tempo":900}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ss := req.(SetSpeed)
	if ss.RampMS != -1 {
		t.Fatalf("expected default ramp marker -1, got %d", ss.RampMS)
	}
}

func TestNewStatusView_Failure(t *testing.T) {
	st := playback.Status{
		RunID:    "r1",
		State:    playback.StateFailed,
		Position: 1500 * time.Millisecond,
		Duration: 3 * time.Second,
		Failure: &playback.DispatchError{
			RunID: "r1", Index: 4, Key: "Key7",
			Err: &playback.ResolutionError{Key: "Key7"},
		},
	}
	v := NewStatusView(st, 1000, "Song")
	if v.State != "failed" || v.Title != "Song" {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.FailedIndex == nil || *v.FailedIndex != 4 || v.FailedKey != "Key7" {
		t.Fatalf("expected failed index 4 key Key7, got %+v", v)
	}
	if v.Progress() != 0.5 {
		t.Fatalf("expected progress 0.5, got %v", v.Progress())
	}
}

type recordingHandler struct {
	mu   sync.Mutex
	reqs []Request
}

func (h *recordingHandler) Handle(_ context.Context, req Request) Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqs = append(h.reqs, req)
	if _, ok := req.(Stop); ok {
		return Errorf("nothing to stop")
	}
	return Response{Status: "ok", RunID: "run-1"}
}

func TestServeAndSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	socket := filepath.Join(t.TempDir(), "lyrica.sock")
	h := &recordingHandler{}

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, socket, h, nil) }()

	var resp Response
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = Send(ctx, socket, Play{Path: "a.json"})
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("send play: %v", err)
	}
	if resp.RunID != "run-1" {
		t.Fatalf("expected run id, got %+v", resp)
	}

	resp, err = Send(ctx, socket, Stop{})
	if err == nil || resp.Error != "nothing to stop" {
		t.Fatalf("expected daemon error, got resp=%+v err=%v", resp, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop on cancel")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reqs) != 2 {
		t.Fatalf("expected 2 handled requests, got %d", len(h.reqs))
	}
}
