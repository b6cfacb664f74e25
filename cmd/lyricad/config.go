package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"lyrica/internal/keymap"
	"lyrica/internal/logging"
	"lyrica/internal/playback"
)

// Config is the top-level YAML configuration for the lyricad daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume a
// well-formed config. The config file is the primary configuration surface; flags
// are small overrides on top of it.
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Keymap   KeymapConfig   `yaml:"keymap"`
	Output   OutputConfig   `yaml:"output"`
	Hotkeys  HotkeysConfig  `yaml:"hotkeys"`
	IPC      IPCConfig      `yaml:"ipc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Songs    SongsConfig    `yaml:"songs"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PlaybackConfig is the user-facing engine tuning. Durations are in milliseconds.
type PlaybackConfig struct {
	ReferenceTempo float64   `yaml:"reference_tempo"`
	DefaultTempo   float64   `yaml:"default_tempo"`
	MinTempo       float64   `yaml:"min_tempo"`
	MaxTempo       float64   `yaml:"max_tempo"`
	SpeedPresets   []float64 `yaml:"speed_presets"`

	HoldMS         int  `yaml:"hold_ms"`
	HoldOverride   bool `yaml:"hold_override"`
	HoldOverrideMS int  `yaml:"hold_override_ms"`

	StartDelayMS int `yaml:"start_delay_ms"`
	StartRampMS  int `yaml:"start_ramp_ms,omitempty"`

	ResumeDelayMS int     `yaml:"resume_delay_ms"`
	ResumeTempo   float64 `yaml:"resume_tempo"`
	ResumeRampMS  int     `yaml:"resume_ramp_ms"`

	// EndRampMS slows the last stretch of a song, measured back from the last note.
	EndRampMS int `yaml:"end_ramp_ms,omitempty"`

	// SpeedRampMS is used for set_speed requests that do not name a ramp, and for hotkeys.
	SpeedRampMS int    `yaml:"speed_ramp_ms"`
	Easing      string `yaml:"easing"`

	GranularityMS int `yaml:"granularity_ms"`
	SinkTimeoutMS int `yaml:"sink_timeout_ms"`
}

type KeymapConfig struct {
	// Layout is a builtin layout name, ignored when File is set.
	Layout string `yaml:"layout"`
	File   string `yaml:"file,omitempty"`
}

type OutputConfig struct {
	// Driver is one of "uinput", "serial", "midi", "log".
	Driver string `yaml:"driver"`

	UinputPath string `yaml:"uinput_path,omitempty"`

	SerialPort string `yaml:"serial_port,omitempty"`
	SerialBaud int    `yaml:"serial_baud,omitempty"`

	MIDIPort     string `yaml:"midi_port,omitempty"`
	MIDIChannel  int    `yaml:"midi_channel,omitempty"`
	MIDIVelocity int    `yaml:"midi_velocity,omitempty"`
	MIDIRoot     int    `yaml:"midi_root,omitempty"`
}

// HotkeysConfig maps control actions to key names (see internal/keymap).
// An empty key name disables that action.
type HotkeysConfig struct {
	Enabled bool     `yaml:"enabled"`
	Devices []string `yaml:"devices,omitempty"`
	Pause   string   `yaml:"pause"`
	Stop    string   `yaml:"stop"`
	Faster  string   `yaml:"faster"`
	Slower  string   `yaml:"slower"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	ProgressHz int    `yaml:"progress_hz"`
}

type SongsConfig struct {
	Dir         string `yaml:"dir,omitempty"`
	ScanWorkers int    `yaml:"scan_workers"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with playback.DefaultConfig.
func DefaultConfig() Config {
	eng := playback.DefaultConfig()
	return Config{
		Playback: PlaybackConfig{
			ReferenceTempo: eng.ReferenceTempo,
			DefaultTempo:   eng.ReferenceTempo,
			MinTempo:       eng.MinTempo,
			MaxTempo:       eng.MaxTempo,
			SpeedPresets:   []float64{600, 800, 1000, 1200},
			HoldMS:         int(eng.DefaultHold / time.Millisecond),
			HoldOverrideMS: 100,
			StartDelayMS:   int(eng.StartDelay / time.Millisecond),
			ResumeDelayMS:  int(eng.ResumeDelay / time.Millisecond),
			ResumeTempo:    eng.ResumeTempo,
			ResumeRampMS:   int(eng.ResumeRamp / time.Millisecond),
			SpeedRampMS:    500,
			Easing:         "linear",
			GranularityMS:  int(eng.Granularity / time.Millisecond),
			SinkTimeoutMS:  int(eng.SinkTimeout / time.Millisecond),
		},
		Keymap: KeymapConfig{
			Layout: "qwerty",
		},
		Output: OutputConfig{
			Driver:       "uinput",
			UinputPath:   defaultUinputPath,
			SerialBaud:   defaultSerialBaud,
			MIDIChannel:  defaultMIDIChannel,
			MIDIVelocity: defaultMIDIVel,
			MIDIRoot:     int(keymap.MiddleC),
		},
		Hotkeys: HotkeysConfig{
			Enabled: false,
			Pause:   "#",
			Stop:    "f10",
			Faster:  "pageup",
			Slower:  "pagedown",
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Enabled:    true,
			Addr:       defaultHTTPAddr,
			ProgressHz: defaultProgressHz,
		},
		Songs: SongsConfig{
			ScanWorkers: defaultScanWorkers,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies command-line overrides on top of a loaded config.
// Each pointer is only applied if non-nil, even when it points at a zero value.
type FlagOverrides struct {
	Tempo      *float64
	StartDelay *int
	HoldMS     *int
	Driver     *string
	SerialPort *string
	MIDIPort   *string
	Layout     *string
	LayoutFile *string
	SocketPath *string
	HTTPAddr   *string
	SongsDir   *string
	Hotkeys    *bool
	HotkeyDevs []string
	LogLevel   *string
	LogFormat  *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Tempo != nil {
		cfg.Playback.DefaultTempo = *o.Tempo
	}
	if o.StartDelay != nil {
		cfg.Playback.StartDelayMS = *o.StartDelay
	}
	if o.HoldMS != nil {
		cfg.Playback.HoldMS = *o.HoldMS
	}
	if o.Driver != nil {
		cfg.Output.Driver = *o.Driver
	}
	if o.SerialPort != nil {
		cfg.Output.SerialPort = *o.SerialPort
	}
	if o.MIDIPort != nil {
		cfg.Output.MIDIPort = *o.MIDIPort
	}
	if o.Layout != nil {
		cfg.Keymap.Layout = *o.Layout
	}
	if o.LayoutFile != nil {
		cfg.Keymap.File = *o.LayoutFile
	}
	if o.SocketPath != nil {
		cfg.IPC.SocketPath = *o.SocketPath
	}
	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
		cfg.HTTP.Enabled = *o.HTTPAddr != ""
	}
	if o.SongsDir != nil {
		cfg.Songs.Dir = *o.SongsDir
	}
	if o.Hotkeys != nil {
		cfg.Hotkeys.Enabled = *o.Hotkeys
	}
	if len(o.HotkeyDevs) > 0 {
		cfg.Hotkeys.Devices = slices.Clone(o.HotkeyDevs)
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

var outputDrivers = []string{"uinput", "serial", "midi", "log"}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	p := c.Playback

	// Playback
	if !(p.ReferenceTempo > 0) {
		return errors.New("playback.reference_tempo must be > 0")
	}
	if !(p.MinTempo > 0) || p.MinTempo > p.MaxTempo {
		return errors.New("playback.min_tempo must be > 0 and <= playback.max_tempo")
	}
	if p.DefaultTempo < p.MinTempo || p.DefaultTempo > p.MaxTempo {
		return fmt.Errorf("playback.default_tempo must be between %g and %g", p.MinTempo, p.MaxTempo)
	}
	for i, v := range p.SpeedPresets {
		if v < p.MinTempo || v > p.MaxTempo {
			return fmt.Errorf("playback.speed_presets[%d] (%g) must be between %g and %g", i, v, p.MinTempo, p.MaxTempo)
		}
	}
	if p.HoldMS <= 0 {
		return errors.New("playback.hold_ms must be > 0")
	}
	if p.HoldOverride && (p.HoldOverrideMS < 100 || p.HoldOverrideMS > 1000) {
		return errors.New("playback.hold_override_ms must be between 100 and 1000")
	}
	if p.StartDelayMS < 0 || p.StartRampMS < 0 || p.ResumeDelayMS < 0 || p.ResumeRampMS < 0 || p.EndRampMS < 0 || p.SpeedRampMS < 0 {
		return errors.New("playback delays and ramps must be >= 0")
	}
	if !(p.ResumeTempo > 0) {
		return errors.New("playback.resume_tempo must be > 0")
	}
	if p.GranularityMS < 1 || p.GranularityMS > 100 {
		return errors.New("playback.granularity_ms must be between 1 and 100")
	}
	if p.SinkTimeoutMS <= 0 {
		return errors.New("playback.sink_timeout_ms must be > 0")
	}
	if _, err := playback.ParseEasing(p.Easing); err != nil {
		return fmt.Errorf("playback.easing: %w", err)
	}

	// Keymap
	if c.Keymap.File == "" {
		if _, err := keymap.Builtin(c.Keymap.Layout); err != nil {
			return fmt.Errorf("keymap.layout: %w", err)
		}
	}

	// Output
	if !slices.Contains(outputDrivers, c.Output.Driver) {
		return fmt.Errorf("output.driver must be one of %v", outputDrivers)
	}
	switch c.Output.Driver {
	case "uinput":
		if c.Output.UinputPath == "" {
			return errors.New("output.uinput_path must not be empty")
		}
	case "serial":
		if c.Output.SerialPort == "" {
			return errors.New("output.serial_port is required for the serial driver")
		}
		if c.Output.SerialBaud <= 0 {
			return errors.New("output.serial_baud must be > 0")
		}
	case "midi":
		if c.Output.MIDIChannel < 0 || c.Output.MIDIChannel > 15 {
			return errors.New("output.midi_channel must be between 0 and 15")
		}
		if c.Output.MIDIVelocity < 1 || c.Output.MIDIVelocity > 127 {
			return errors.New("output.midi_velocity must be between 1 and 127")
		}
		if c.Output.MIDIRoot < 0 || c.Output.MIDIRoot > 127 {
			return errors.New("output.midi_root must be between 0 and 127")
		}
	}

	// Hotkeys
	if c.Hotkeys.Enabled {
		if len(c.Hotkeys.Devices) == 0 {
			return errors.New("hotkeys.devices must not be empty when hotkeys are enabled")
		}
		for i, dev := range c.Hotkeys.Devices {
			if dev == "" {
				return fmt.Errorf("hotkeys.devices[%d] is empty", i)
			}
		}
		if _, err := c.Hotkeys.Bindings(); err != nil {
			return err
		}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP
	if c.HTTP.Enabled {
		if c.HTTP.Addr == "" {
			return errors.New("http.addr must not be empty when http is enabled")
		}
		if c.HTTP.ProgressHz < 1 || c.HTTP.ProgressHz > 60 {
			return errors.New("http.progress_hz must be between 1 and 60")
		}
	}

	// Songs
	if c.Songs.ScanWorkers < 1 {
		return errors.New("songs.scan_workers must be >= 1")
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return errors.New(`logging.format must be "text" or "json"`)
	}

	return nil
}

// ToEngineConfig converts the file config into the internal engine config.
// Validate must have succeeded.
func (c *Config) ToEngineConfig() playback.Config {
	p := c.Playback
	easing, _ := playback.ParseEasing(p.Easing)
	return playback.Config{
		ReferenceTempo: p.ReferenceTempo,
		MinTempo:       p.MinTempo,
		MaxTempo:       p.MaxTempo,
		DefaultHold:    msDuration(p.HoldMS),
		HoldOverride: playback.HoldPolicy{
			Enabled:  p.HoldOverride,
			Duration: msDuration(p.HoldOverrideMS),
		},
		StartDelay:  msDuration(p.StartDelayMS),
		StartRamp:   msDuration(p.StartRampMS),
		ResumeDelay: msDuration(p.ResumeDelayMS),
		ResumeTempo: p.ResumeTempo,
		ResumeRamp:  msDuration(p.ResumeRampMS),
		EndRamp:     msDuration(p.EndRampMS),
		Granularity: msDuration(p.GranularityMS),
		SinkTimeout: msDuration(p.SinkTimeoutMS),
		Easing:      easing,
	}
}

// LoadLayout returns the configured key layout.
func (c *Config) LoadLayout() (*keymap.Layout, error) {
	if c.Keymap.File != "" {
		return keymap.LoadLayoutFile(ExpandPath(c.Keymap.File))
	}
	return keymap.Builtin(c.Keymap.Layout)
}

// hotkeyAction is what a bound hotkey does.
type hotkeyAction int

const (
	hotkeyPause hotkeyAction = iota + 1
	hotkeyStop
	hotkeyFaster
	hotkeySlower
)

func (a hotkeyAction) String() string {
	switch a {
	case hotkeyPause:
		return "pause"
	case hotkeyStop:
		return "stop"
	case hotkeyFaster:
		return "faster"
	case hotkeySlower:
		return "slower"
	}
	return "unknown"
}

// Bindings resolves the configured key names to Linux key codes.
func (h HotkeysConfig) Bindings() (map[uint16]hotkeyAction, error) {
	out := make(map[uint16]hotkeyAction, 4)
	for _, b := range []struct {
		field  string
		name   string
		action hotkeyAction
	}{
		{"hotkeys.pause", h.Pause, hotkeyPause},
		{"hotkeys.stop", h.Stop, hotkeyStop},
		{"hotkeys.faster", h.Faster, hotkeyFaster},
		{"hotkeys.slower", h.Slower, hotkeySlower},
	} {
		if b.name == "" {
			continue
		}
		code, ok := keymap.LinuxCode(b.name)
		if !ok {
			return nil, fmt.Errorf("%s: unknown key %q", b.field, b.name)
		}
		if prev, dup := out[code]; dup {
			return nil, fmt.Errorf("%s: key %q already bound to %s", b.field, b.name, prev)
		}
		out[code] = b.action
	}
	return out, nil
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
