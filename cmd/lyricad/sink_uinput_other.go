//go:build !linux

package main

import (
	"errors"
	"log/slog"

	"lyrica/internal/playback"
)

func openUinputSink(string, []playback.KeyCode, *slog.Logger) (keySink, error) {
	return nil, errors.New("the uinput driver is only available on Linux; use serial, midi or log")
}
