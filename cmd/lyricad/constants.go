package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01

	SYN_REPORT = 0
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Daemon defaults
const (
	defaultSocketPath  = "/tmp/lyrica.sock"
	defaultHTTPAddr    = "127.0.0.1:3017"
	defaultUinputPath  = "/dev/uinput"
	defaultSerialBaud  = 115200
	defaultMIDIChannel = 0
	defaultMIDIVel     = 100

	// Presets stepped through by the faster/slower hotkeys.
	// Repeated presses inside presetBurstWindow skip a preset per press.
	defaultPresetBurstWindowMS = 400
	defaultPresetBurstCount    = 3

	// Status websocket: progress messages are throttled to this rate.
	defaultProgressHz = 4

	// Song library scan parallelism.
	defaultScanWorkers = 4
)
