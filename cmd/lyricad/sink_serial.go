package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"lyrica/internal/playback"
)

// serialSink drives a USB-HID bridge microcontroller over a serial port.
// Key codes are HID usages.
type serialSink struct {
	logger *slog.Logger

	mu   sync.Mutex
	port io.WriteCloser
}

// openSerialSink opens the named serial device at the given baud rate.
func openSerialSink(name string, baud int, logger *slog.Logger) (*serialSink, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)

	s := &serialSink{logger: logger.With("sink", "serial"), port: p}

	// Clear whatever a previous session left down on the bridge.
	if err := s.send(hidFrame{Cmd: cmdReleaseAll}); err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

func (s *serialSink) Press(code playback.KeyCode) error {
	return s.send(keyFrame(true, code))
}

func (s *serialSink) Release(code playback.KeyCode) error {
	return s.send(keyFrame(false, code))
}

func (s *serialSink) send(f hidFrame) error {
	data := f.Encode()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return fmt.Errorf("serial: port closed")
	}
	if _, err := s.port.Write(data); err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	s.logger.Debug("serial: frame sent", "cmd", f.Cmd, "usage", f.Usage)
	return nil
}

// Close sends release-all and closes the port.
func (s *serialSink) Close() error {
	err := s.send(hidFrame{Cmd: cmdReleaseAll})
	// Let the bridge drain the frame before the port drops DTR.
	time.Sleep(20 * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return err
	}
	s.logger.Info("serial: closing port")
	if cerr := s.port.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.port = nil
	return err
}
