package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"lyrica/internal/playback"
)

// midiSink plays keys as notes on a MIDI output port, for previewing a song without the game.
// Key codes are MIDI note numbers.
type midiSink struct {
	logger   *slog.Logger
	channel  uint8
	velocity uint8

	mu    sync.Mutex
	send  func(midi.Message) error
	close func()
	down  map[playback.KeyCode]struct{}
}

// openMIDISink opens the named output port, or the first one when name is empty.
// Names match case-insensitively by substring.
func openMIDISink(name string, channel, velocity uint8, logger *slog.Logger) (*midiSink, error) {
	ports := midi.GetOutPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("midi: no output ports (is a MIDI driver compiled in? build with cgo)")
	}

	var names []string
	for _, p := range ports {
		names = append(names, p.String())
	}

	idx := -1
	for i, p := range ports {
		if name == "" || strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("midi: output %q not found (available: %s)", name, strings.Join(names, ", "))
	}

	send, err := midi.SendTo(ports[idx])
	if err != nil {
		return nil, fmt.Errorf("midi: open %q: %w", ports[idx].String(), err)
	}
	logger.Info("midi: output opened", "port", ports[idx].String(), "channel", channel)

	s := newMIDISink(send, channel, velocity, logger)
	s.close = midi.CloseDriver
	return s, nil
}

func newMIDISink(send func(midi.Message) error, channel, velocity uint8, logger *slog.Logger) *midiSink {
	return &midiSink{
		logger:   logger.With("sink", "midi"),
		channel:  channel,
		velocity: velocity,
		send:     send,
		down:     make(map[playback.KeyCode]struct{}),
	}
}

func (s *midiSink) Press(code playback.KeyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(midi.NoteOn(s.channel, uint8(code), s.velocity)); err != nil {
		return err
	}
	s.down[code] = struct{}{}
	return nil
}

func (s *midiSink) Release(code playback.KeyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(midi.NoteOff(s.channel, uint8(code))); err != nil {
		return err
	}
	delete(s.down, code)
	return nil
}

// write sends msg. Caller holds mu.
func (s *midiSink) write(msg midi.Message) error {
	if s.send == nil {
		return fmt.Errorf("midi: output closed")
	}
	if err := s.send(msg); err != nil {
		return fmt.Errorf("midi: send %s: %w", msg, err)
	}
	return nil
}

// Close turns off sounding notes and shuts the driver down.
func (s *midiSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.send == nil {
		return nil
	}
	for code := range s.down {
		if err := s.write(midi.NoteOff(s.channel, uint8(code))); err != nil {
			s.logger.Warn("midi: note off on close failed", "note", code, "error", err)
		}
	}
	clear(s.down)
	s.send = nil
	if s.close != nil {
		s.close()
	}
	return nil
}
