package main

import (
	"fmt"
	"log/slog"

	"lyrica/internal/keymap"
	"lyrica/internal/playback"
)

// keySink is a playback.KeySink owned by the daemon. Close releases anything still down and
// frees the device.
type keySink interface {
	playback.KeySink
	Close() error
}

// openOutput builds the resolver and sink for the configured driver. The resolver's code space
// always matches the sink: Linux key codes for uinput and log, HID usages for serial, MIDI
// notes for midi.
func openOutput(cfg *Config, layout *keymap.Layout, logger *slog.Logger) (playback.KeyResolver, keySink, error) {
	out := cfg.Output
	switch out.Driver {
	case "uinput":
		res, err := keymap.NewResolver(layout, keymap.Linux)
		if err != nil {
			return nil, nil, err
		}
		s, err := openUinputSink(out.UinputPath, res.Codes(), logger)
		if err != nil {
			return nil, nil, err
		}
		return res, s, nil

	case "serial":
		res, err := keymap.NewResolver(layout, keymap.HID)
		if err != nil {
			return nil, nil, err
		}
		s, err := openSerialSink(out.SerialPort, out.SerialBaud, logger)
		if err != nil {
			return nil, nil, err
		}
		return res, s, nil

	case "midi":
		res := keymap.MIDIResolver{Root: uint8(out.MIDIRoot)}
		s, err := openMIDISink(out.MIDIPort, uint8(out.MIDIChannel), uint8(out.MIDIVelocity), logger)
		if err != nil {
			return nil, nil, err
		}
		return res, s, nil

	case "log":
		res, err := keymap.NewResolver(layout, keymap.Linux)
		if err != nil {
			return nil, nil, err
		}
		return res, newLogSink(logger), nil

	default:
		return nil, nil, fmt.Errorf("unknown output driver %q", out.Driver)
	}
}
