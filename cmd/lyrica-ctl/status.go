package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"lyrica/internal/ipc"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's playback status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(cmd.Context(), ipc.QueryStatus{})
			if err != nil {
				return err
			}
			if resp.State == nil {
				return fmt.Errorf("daemon returned no status")
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp.State)
			}
			fmt.Print(formatStatus(*resp.State, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status JSON")
	return cmd
}

// formatDuration renders d as e.g. "1m 5s"; zero is "0s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).Format(shortUnits)
}

func formatStatus(v ipc.StatusView, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "State:    %s\n", v.State)
	if v.RunID == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "Run:      %s\n", v.RunID)
	if v.Title != "" {
		fmt.Fprintf(&b, "Song:     %s\n", v.Title)
	}
	fmt.Fprintf(&b, "Position: %s / %s (%.0f%%)\n",
		formatDuration(v.Position()), formatDuration(v.Duration()), v.Progress()*100)

	tempo := fmt.Sprintf("%s (x%.2f)", humanize.Ftoa(v.Tempo), v.Speed)
	if v.Ramping {
		tempo += fmt.Sprintf(", ramping to %s", humanize.Ftoa(v.TargetTempo))
	}
	fmt.Fprintf(&b, "Tempo:    %s\n", tempo)
	fmt.Fprintf(&b, "Events:   %s of %s\n", humanize.Comma(int64(v.NextIndex)), humanize.Comma(int64(v.Events)))

	if len(v.Held) > 0 {
		fmt.Fprintf(&b, "Held:     %s\n", strings.Join(v.Held, ", "))
	}
	if !v.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started:  %s\n", humanize.RelTime(v.StartedAt, now, "ago", "from now"))
	}
	if v.Failure != "" {
		fmt.Fprintf(&b, "Failure:  %s\n", v.Failure)
		if v.FailedIndex != nil {
			fmt.Fprintf(&b, "          at event %d (%s)\n", *v.FailedIndex, v.FailedKey)
		}
	}
	return b.String()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
