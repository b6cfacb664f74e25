package main

import (
	"context"
	"log/slog"
)

// hotkeyListener turns raw key events from the configured input devices into control actions.
type hotkeyListener struct {
	bindings map[uint16]hotkeyAction
	handle   func(hotkeyAction)
	logger   *slog.Logger
}

// translate handles one input event. Only key-down events fire; auto-repeat and release are
// ignored so a held key does not toggle pause repeatedly.
func (h *hotkeyListener) translate(ev inputEvent) {
	if ev.Type != EV_KEY || ev.Value != evValuePress {
		return
	}
	action, ok := h.bindings[ev.Code]
	if !ok {
		return
	}
	h.logger.Debug("hotkey", "action", action, "code", ev.Code)
	h.handle(action)
}

// runHotkeys reads the devices until ctx is canceled.
func runHotkeys(ctx context.Context, devices []string, bindings map[uint16]hotkeyAction, handle func(hotkeyAction), logger *slog.Logger) error {
	h := &hotkeyListener{bindings: bindings, handle: handle, logger: logger}
	return readHotkeyDevices(ctx, devices, h.translate, logger)
}
