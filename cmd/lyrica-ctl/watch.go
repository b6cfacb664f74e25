package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"lyrica/internal/ipc"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	stateStyles = map[string]lipgloss.Style{
		"running": lipgloss.NewStyle().Foreground(lipgloss.Color("#5fff87")),
		"paused":  lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd75f")),
		"failed":  errStyle,
	}
)

func newWatchCmd() *cobra.Command {
	var wsURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow playback live",
		Long:  "Connect to the daemon's status websocket and show a live view. space toggles pause, s stops, q quits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(wsURL)
			if err != nil {
				return fmt.Errorf("invalid websocket URL: %w", err)
			}

			d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
			conn, _, err := d.DialContext(cmd.Context(), u.String(), nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", u, err)
			}
			defer conn.Close()

			updates := make(chan statusMsg, 16)
			go readStatusFrames(conn, updates)

			m := newWatchModel(updates, func(req ipc.Request) error {
				_, err := send(context.Background(), req)
				return err
			})
			_, err = tea.NewProgram(m).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&wsURL, "url", "ws://127.0.0.1:3017/ws", "Daemon status websocket URL")
	return cmd
}

// statusMsg carries one decoded frame, or the error that ended the stream.
type statusMsg struct {
	kind string
	view ipc.StatusView
	err  error
}

type wsFrame struct {
	Type string         `json:"type"`
	Data ipc.StatusView `json:"data"`
}

// readStatusFrames decodes websocket frames until the connection drops. The channel is closed
// after the final (error) message.
func readStatusFrames(conn *websocket.Conn, out chan<- statusMsg) {
	defer close(out)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			out <- statusMsg{err: err}
			return
		}
		msg, ok := decodeFrame(data)
		if !ok {
			continue
		}
		out <- msg
	}
}

func decodeFrame(data []byte) (statusMsg, bool) {
	var f wsFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return statusMsg{}, false
	}
	switch f.Type {
	case "state_init", "state_changed", "progress":
		return statusMsg{kind: f.Type, view: f.Data}, true
	}
	return statusMsg{}, false
}

type watchModel struct {
	updates <-chan statusMsg
	control func(ipc.Request) error

	view     ipc.StatusView
	seen     bool
	err      error
	lastErr  string
	width    int
	quitting bool
}

func newWatchModel(updates <-chan statusMsg, control func(ipc.Request) error) watchModel {
	return watchModel{updates: updates, control: control, width: 60}
}

func waitForStatus(ch <-chan statusMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return statusMsg{err: fmt.Errorf("stream closed")}
		}
		return msg
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForStatus(m.updates)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case " ", "space":
			m.lastErr = errString(m.control(ipc.TogglePause{RunID: m.view.RunID}))
		case "s":
			m.lastErr = errString(m.control(ipc.Stop{RunID: m.view.RunID}))
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.view = msg.view
		m.seen = true
		return m, waitForStatus(m.updates)
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.err != nil {
		b.WriteString(errStyle.Render("disconnected: "+m.err.Error()) + "\n")
	}
	if !m.seen {
		b.WriteString(dimStyle.Render("waiting for status...") + "\n")
		return b.String()
	}

	v := m.view
	title := v.Title
	if title == "" {
		title = "(no song)"
	}
	state := v.State
	if st, ok := stateStyles[v.State]; ok {
		state = st.Render(v.State)
	}
	b.WriteString(titleStyle.Render(title) + "  " + state + "\n\n")

	barWidth := max(m.width-20, 10)
	b.WriteString(barStyle.Render(progressBar(v.Progress(), barWidth)))
	fmt.Fprintf(&b, " %s / %s\n", formatDuration(v.Position()), formatDuration(v.Duration()))

	tempo := fmt.Sprintf("tempo %.0f (x%.2f)", v.Tempo, v.Speed)
	if v.Ramping {
		tempo += fmt.Sprintf(" -> %.0f", v.TargetTempo)
	}
	b.WriteString(tempo + "\n")
	if len(v.Held) > 0 {
		b.WriteString("held " + strings.Join(v.Held, " ") + "\n")
	}
	if v.Failure != "" {
		b.WriteString(errStyle.Render("failed: "+v.Failure) + "\n")
	}
	if m.lastErr != "" {
		b.WriteString(errStyle.Render(m.lastErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("space pause/resume  s stop  q quit") + "\n")
	return b.String()
}

// progressBar renders p in [0,1] as a fixed-width bar.
func progressBar(p float64, width int) string {
	if width <= 0 {
		return ""
	}
	p = min(max(p, 0), 1)
	filled := int(p*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
