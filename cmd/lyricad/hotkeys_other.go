//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
)

func readHotkeyDevices(context.Context, []string, func(inputEvent), *slog.Logger) error {
	return errors.New("hotkeys are only available on Linux")
}
