package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"lyrica/internal/ipc"
)

func newPlayCmd() *cobra.Command {
	var tempo float64
	cmd := &cobra.Command{
		Use:   "play <song>",
		Short: "Start playing a song file",
		Long:  "Start playing a song file. Relative paths are resolved here first, then against the daemon's songs directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if abs, err := filepath.Abs(path); err == nil && fileExists(abs) {
				path = abs
			}
			resp, err := send(cmd.Context(), ipc.Play{Path: path, Tempo: tempo})
			if err != nil {
				return err
			}
			fmt.Printf("Started run %s\n", resp.RunID)
			return nil
		},
	}
	cmd.Flags().Float64Var(&tempo, "tempo", 0, "Tempo (0 uses the daemon default)")
	return cmd
}

func newPauseCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause playback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := send(cmd.Context(), ipc.Pause{RunID: runID})
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only act on this run id")
	return cmd
}

func newResumeCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume paused playback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := send(cmd.Context(), ipc.Resume{RunID: runID})
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only act on this run id")
	return cmd
}

func newToggleCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Pause if playing, resume if paused",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := send(cmd.Context(), ipc.TogglePause{RunID: runID})
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only act on this run id")
	return cmd
}

func newSpeedCmd() *cobra.Command {
	var (
		runID  string
		rampMS int
	)
	cmd := &cobra.Command{
		Use:   "speed <tempo>",
		Short: "Change the tempo of the current run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tempo, err := strconv.ParseFloat(args[0], 64)
			if err != nil || tempo <= 0 {
				return fmt.Errorf("invalid tempo %q", args[0])
			}
			_, err = send(cmd.Context(), ipc.SetSpeed{RunID: runID, Tempo: tempo, RampMS: rampMS})
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only act on this run id")
	cmd.Flags().IntVar(&rampMS, "ramp", -1, "Ramp duration in ms (-1 uses the daemon default, 0 is immediate)")
	return cmd
}

func newStopCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop playback and release all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := send(cmd.Context(), ipc.Stop{RunID: runID})
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only act on this run id")
	return cmd
}
