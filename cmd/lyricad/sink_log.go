package main

import (
	"log/slog"
	"sync"

	"lyrica/internal/playback"
)

// logSink is a dry-run sink: it tracks which keys are down and logs every transition.
type logSink struct {
	logger *slog.Logger

	mu   sync.Mutex
	down map[playback.KeyCode]struct{}
}

func newLogSink(logger *slog.Logger) *logSink {
	return &logSink{
		logger: logger.With("sink", "log"),
		down:   make(map[playback.KeyCode]struct{}),
	}
}

func (s *logSink) Press(code playback.KeyCode) error {
	s.mu.Lock()
	s.down[code] = struct{}{}
	n := len(s.down)
	s.mu.Unlock()
	s.logger.Info("key down", "code", code, "held", n)
	return nil
}

func (s *logSink) Release(code playback.KeyCode) error {
	s.mu.Lock()
	delete(s.down, code)
	n := len(s.down)
	s.mu.Unlock()
	s.logger.Info("key up", "code", code, "held", n)
	return nil
}

func (s *logSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.down) > 0 {
		s.logger.Warn("keys still down at close", "count", len(s.down))
		clear(s.down)
	}
	return nil
}
