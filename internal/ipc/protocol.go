// Package ipc is the lyricad control protocol: line-delimited JSON envelopes over a Unix
// domain socket, shared by the daemon and lyrica-ctl.
//
//	client: {"type": "play", "data": {"path": "song.json", "tempo": 1000}}
//	server: {"status": "ok", "run_id": "..."} or {"status": "error", "error": "msg"}
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lyrica/internal/playback"
)

// Request is a marker interface for all control requests.
type Request interface {
	requestMarker()
}

// Play loads a song and starts playing it. Tempo 0 means the daemon's default tempo.
type Play struct {
	Path  string  `json:"path"`
	Tempo float64 `json:"tempo,omitempty"`
}

// Pause pauses the active run (or RunID, if set).
type Pause struct {
	RunID string `json:"run_id,omitempty"`
}

// Resume resumes a paused run.
type Resume struct {
	RunID string `json:"run_id,omitempty"`
}

// TogglePause pauses a running run or resumes a paused one.
type TogglePause struct {
	RunID string `json:"run_id,omitempty"`
}

// SetSpeed changes the tempo. RampMS < 0 means the daemon's default ramp.
type SetSpeed struct {
	RunID  string  `json:"run_id,omitempty"`
	Tempo  float64 `json:"tempo"`
	RampMS int     `json:"ramp_ms"`
}

// Stop stops the active run (or RunID, if set).
type Stop struct {
	RunID string `json:"run_id,omitempty"`
}

// QueryStatus asks for a status snapshot.
type QueryStatus struct{}

func (Play) requestMarker()        {}
func (Pause) requestMarker()       {}
func (Resume) requestMarker()      {}
func (TogglePause) requestMarker() {}
func (SetSpeed) requestMarker()    {}
func (Stop) requestMarker()        {}
func (QueryStatus) requestMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// Envelope wraps a request with a type discriminator for JSON marshaling.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is sent back for every request line.
type Response struct {
	Status string      `json:"status"`          // "ok" or "error"
	Error  string      `json:"error,omitempty"` // error message if status == "error"
	RunID  string      `json:"run_id,omitempty"`
	State  *StatusView `json:"state,omitempty"`
}

// OK builds a success response.
func OK() Response { return Response{Status: "ok"} }

// Errorf builds an error response.
func Errorf(format string, args ...any) Response {
	return Response{Status: "error", Error: fmt.Sprintf(format, args...)}
}

// Err reports a non-ok response as an error.
func (r Response) Err() error {
	if r.Status == "ok" {
		return nil
	}
	if r.Error == "" {
		return errors.New("daemon error")
	}
	return fmt.Errorf("daemon error: %s", r.Error)
}

// UnmarshalRequest deserializes a JSON envelope into a concrete Request.
func UnmarshalRequest(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	decode := func(v any) error {
		if len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return nil
	}

	switch env.Type {
	case "play":
		var r Play
		if err := decode(&r); err != nil {
			return nil, err
		}
		if r.Path == "" {
			return nil, errors.New("play: path is required")
		}
		return r, nil

	case "pause":
		var r Pause
		if err := decode(&r); err != nil {
			return nil, err
		}
		return r, nil

	case "resume":
		var r Resume
		if err := decode(&r); err != nil {
			return nil, err
		}
		return r, nil

	case "toggle_pause":
		var r TogglePause
		if err := decode(&r); err != nil {
			return nil, err
		}
		return r, nil

	case "set_speed":
		r := SetSpeed{RampMS: -1}
		if err := decode(&r); err != nil {
			return nil, err
		}
		if r.Tempo == 0 {
			return nil, errors.New("set_speed: tempo is required")
		}
		return r, nil

	case "stop":
		var r Stop
		if err := decode(&r); err != nil {
			return nil, err
		}
		return r, nil

	case "status":
		return QueryStatus{}, nil

	case "":
		return nil, errors.New("missing request type")

	default:
		return nil, fmt.Errorf("unknown request type: %s", env.Type)
	}
}

// MarshalRequest serializes a Request into a JSON envelope.
func MarshalRequest(r Request) ([]byte, error) {
	var env Envelope

	switch r.(type) {
	case Play:
		env.Type = "play"
	case Pause:
		env.Type = "pause"
	case Resume:
		env.Type = "resume"
	case TogglePause:
		env.Type = "toggle_pause"
	case SetSpeed:
		env.Type = "set_speed"
	case Stop:
		env.Type = "stop"
	case QueryStatus:
		env.Type = "status"
		return json.Marshal(env)
	default:
		return nil, fmt.Errorf("unknown request type: %T", r)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
	}
	if string(data) != "{}" {
		env.Data = data
	}
	return json.Marshal(env)
}

// ============================================================================
// Status wire format
// ============================================================================

// StatusView is the JSON form of a playback.Status, used by IPC, HTTP and the websocket.
type StatusView struct {
	RunID       string    `json:"run_id,omitempty"`
	State       string    `json:"state"`
	Title       string    `json:"title,omitempty"`
	PositionMS  int64     `json:"position_ms"`
	DurationMS  int64     `json:"duration_ms"`
	Speed       float64   `json:"speed"`
	Tempo       float64   `json:"tempo"`
	TargetTempo float64   `json:"target_tempo"`
	Ramping     bool      `json:"ramping"`
	NextIndex   int       `json:"next_index"`
	Events      int       `json:"events"`
	Held        []string  `json:"held,omitempty"`
	Failure     string    `json:"failure,omitempty"`
	FailedIndex *int      `json:"failed_index,omitempty"`
	FailedKey   string    `json:"failed_key,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
}

// NewStatusView converts an engine snapshot. reference is the engine's reference tempo.
func NewStatusView(st playback.Status, reference float64, title string) StatusView {
	v := StatusView{
		RunID:       st.RunID,
		State:       st.State.String(),
		Title:       title,
		PositionMS:  st.Position.Milliseconds(),
		DurationMS:  st.Duration.Milliseconds(),
		Speed:       st.Speed,
		Tempo:       st.Tempo(reference),
		TargetTempo: st.TargetTempo,
		Ramping:     st.Ramping,
		NextIndex:   st.NextIndex,
		Events:      st.Events,
		Held:        st.Held,
		StartedAt:   st.StartedAt,
	}
	if st.Failure != nil {
		v.Failure = st.Failure.Error()
		var de *playback.DispatchError
		if errors.As(st.Failure, &de) {
			idx := de.Index
			v.FailedIndex = &idx
			v.FailedKey = de.Key
		}
	}
	return v
}

// Position returns the position as a duration.
func (v StatusView) Position() time.Duration { return time.Duration(v.PositionMS) * time.Millisecond }

// Duration returns the song length as a duration.
func (v StatusView) Duration() time.Duration { return time.Duration(v.DurationMS) * time.Millisecond }

// Progress returns position/duration in [0,1].
func (v StatusView) Progress() float64 {
	if v.DurationMS <= 0 {
		return 0
	}
	p := float64(v.PositionMS) / float64(v.DurationMS)
	return min(max(p, 0), 1)
}
