package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lyrica/internal/ipc"
	"lyrica/internal/logging"
)

var (
	flagSocket    string
	flagTimeout   time.Duration
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultSocket returns the daemon socket path, checking LYRICA_SOCKET first.
func defaultSocket() string {
	if s := os.Getenv("LYRICA_SOCKET"); s != "" {
		return s
	}
	return "/tmp/lyrica.sock"
}

// NewRootCmd creates the root cobra command for lyrica-ctl.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lyrica-ctl",
		Short: "Control the lyrica playback daemon",
		Long:  "lyrica-ctl starts, pauses, retimes and stops songs played by lyricad, and inspects song files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(flagLogLevel)
			if err != nil {
				return err
			}
			if !logging.ValidFormat(flagLogFormat) {
				return fmt.Errorf("invalid log format: %s (must be text or json)", flagLogFormat)
			}
			logger = logging.NewWithWriter(level, flagLogFormat, os.Stderr)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagSocket, "socket", defaultSocket(), "Daemon unix socket (env: LYRICA_SOCKET)")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "Request timeout")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (error, warn, info, debug)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newPlayCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newToggleCmd(),
		newSpeedCmd(),
		newStopCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newLibraryCmd(),
	)

	return root
}

// send delivers one request to the daemon.
func send(ctx context.Context, req ipc.Request) (ipc.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	logger.Debug("sending request", "socket", flagSocket, "request", fmt.Sprintf("%T", req))
	resp, err := ipc.Send(ctx, flagSocket, req)
	if err != nil {
		return resp, fmt.Errorf("send to %s: %w", flagSocket, err)
	}
	return resp, nil
}
