package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"lyrica/internal/ipc"
	"lyrica/internal/logging"
	"lyrica/internal/playback"
	"lyrica/internal/song"
)

const version = "0.4.0"

func printVersion() {
	fmt.Printf("lyricad v%s\n", version)
	fmt.Println("Song playback daemon: turns note timelines into timed key presses")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  lyricad [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Plays song sheets by injecting key presses through a virtual keyboard")
	fmt.Println("  (uinput), a USB-HID serial bridge, or a MIDI output for previewing.")
	fmt.Println("  Control it with lyrica-ctl over the IPC socket; watch it on /ws.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with a config file")
	fmt.Println("  lyricad -config ~/.config/lyrica/lyricad.yaml")
	fmt.Println()
	fmt.Println("  # Dry run: log key presses instead of injecting them")
	fmt.Println("  lyricad -driver log -log-level debug")
	fmt.Println()
	fmt.Println("  # Pause hotkey from a keyboard device")
	fmt.Println("  lyricad -hotkeys -hotkey-device /dev/input/event3")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - uinput needs write access to /dev/uinput")
	fmt.Println("  - hotkeys need read access to the input devices ('input' group)")
	fmt.Println()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")

		tempo      = flag.Float64("tempo", 0, "Default tempo for play requests without one")
		startDelay = flag.Int("start-delay-ms", 0, "Delay before the first note of a song (ms)")
		holdMS     = flag.Int("hold-ms", 0, "Default key hold (ms)")
		driver     = flag.String("driver", "", "Output driver: uinput|serial|midi|log")
		serialPort = flag.String("serial-port", "", "Serial device of the HID bridge")
		midiPort   = flag.String("midi-port", "", "MIDI output port name (substring match)")
		layout     = flag.String("layout", "", "Builtin key layout")
		layoutFile = flag.String("layout-file", "", "YAML key layout file")
		socketPath = flag.String("socket", "", "Unix domain socket path for IPC")
		httpAddr   = flag.String("http-addr", "", "Status HTTP listen address (empty string keeps config)")
		songsDir   = flag.String("songs-dir", "", "Directory for relative song paths")
		hotkeys    = flag.Bool("hotkeys", false, "Enable hotkeys")
		logLevel   = flag.String("log-level", "", "Log level: error, warn, info, debug")
		logFormat  = flag.String("log-format", "", "Log format: text, json")
	)
	var hotkeyDevs []string
	flag.Func("hotkey-device", "Input device for hotkeys (repeatable)", func(s string) error {
		hotkeyDevs = append(hotkeyDevs, s)
		return nil
	})

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return nil
	}
	if *showVersion {
		printVersion()
		return nil
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfigFile(*configPath); err != nil {
			return err
		}
	}

	// Only flags given on the command line override the file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var o FlagOverrides
	if set["tempo"] {
		o.Tempo = tempo
	}
	if set["start-delay-ms"] {
		o.StartDelay = startDelay
	}
	if set["hold-ms"] {
		o.HoldMS = holdMS
	}
	if set["driver"] {
		o.Driver = driver
	}
	if set["serial-port"] {
		o.SerialPort = serialPort
	}
	if set["midi-port"] {
		o.MIDIPort = midiPort
	}
	if set["layout"] {
		o.Layout = layout
	}
	if set["layout-file"] {
		o.LayoutFile = layoutFile
	}
	if set["socket"] {
		o.SocketPath = socketPath
	}
	if set["http-addr"] {
		o.HTTPAddr = httpAddr
	}
	if set["songs-dir"] {
		o.SongsDir = songsDir
	}
	if set["hotkeys"] {
		o.Hotkeys = hotkeys
	}
	if set["log-level"] {
		o.LogLevel = logLevel
	}
	if set["log-format"] {
		o.LogFormat = logFormat
	}
	o.HotkeyDevs = hotkeyDevs
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.New(level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runDaemon(ctx, &cfg, logger)
}

// runDaemon wires the components and runs them until ctx is canceled or one fails.
func runDaemon(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	layout, err := cfg.LoadLayout()
	if err != nil {
		return fmt.Errorf("keymap: %w", err)
	}

	resolver, sink, err := openOutput(cfg, layout, logger)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("closing output failed", "error", err)
		}
	}()

	engine, err := playback.New(cfg.ToEngineConfig(), sink, resolver, logger.With("component", "engine"))
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	library := song.NewLibrary(logger.With("component", "library"))
	p := newPlayer(cfg, engine, library, logger.With("component", "player"))

	logger.Info("starting lyricad",
		"version", version,
		"driver", cfg.Output.Driver,
		"layout", layout.Name,
		"ipc", cfg.IPC.SocketPath,
		"http", httpInfo(cfg),
		"hotkeys", cfg.Hotkeys.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return engine.Run(gctx) })

	g.Go(func() error {
		return ipc.Serve(gctx, cfg.IPC.SocketPath, p, logger.With("component", "ipc"))
	})

	if cfg.HTTP.Enabled {
		ws := NewStatusServer(logger.With("component", "ws"), func() ipc.StatusView {
			return p.view(engine.Status())
		}, HubConfig{})
		updates, cancel := engine.Updates(64)

		g.Go(func() error {
			ws.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			defer cancel()
			RunBroadcaster(gctx, ws.Hub(), updates, p.view, cfg.HTTP.ProgressHz, logger.With("component", "ws"))
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Addr, newRouter(p, ws, logger.With("component", "http")), logger)
		})
	}

	if cfg.Hotkeys.Enabled {
		bindings, _ := cfg.Hotkeys.Bindings()
		g.Go(func() error {
			err := runHotkeys(gctx, cfg.Hotkeys.Devices, bindings, p.hotkey, logger.With("component", "hotkeys"))
			if err != nil {
				// Playback stays controllable over IPC without hotkeys.
				logger.Error("hotkeys stopped", "error", err)
			}
			return nil
		})
	}

	if cfg.Songs.Dir != "" {
		g.Go(func() error {
			warmLibrary(gctx, library, ExpandPath(cfg.Songs.Dir), cfg.Songs.ScanWorkers, logger)
			return nil
		})
	}

	err = g.Wait()
	logger.Info("shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// warmLibrary parses every song under dir into the library cache.
func warmLibrary(ctx context.Context, lib *song.Library, dir string, workers int, logger *slog.Logger) {
	results, err := lib.Scan(ctx, dir, workers)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("song scan failed", "dir", dir, "error", err)
		}
		return
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Debug("song not loaded", "path", r.Path, "error", r.Err)
		}
	}
	logger.Info("song library ready", "dir", dir, "songs", len(results)-failed, "failed", failed)
}

func httpInfo(cfg *Config) string {
	if !cfg.HTTP.Enabled {
		return "disabled"
	}
	return strings.TrimSpace(cfg.HTTP.Addr)
}
