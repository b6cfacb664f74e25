package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lyrica/internal/song"
)

func newLibraryCmd() *cobra.Command {
	var (
		workers  int
		showErrs bool
	)
	cmd := &cobra.Command{
		Use:   "library <dir>",
		Short: "List the song files in a directory",
		Long:  "Parse every song file under a directory and list title, note count, length and size. Runs locally; no daemon needed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			lib := song.NewLibrary(logger)
			results, err := lib.Scan(cmd.Context(), dir, workers)
			if err != nil {
				return fmt.Errorf("scan %s: %w", dir, err)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tTITLE\tNOTES\tLENGTH\tSIZE")
			var bad int
			for _, r := range results {
				rel, err := filepath.Rel(dir, r.Path)
				if err != nil {
					rel = r.Path
				}
				if r.Err != nil {
					bad++
					if showErrs {
						fmt.Fprintf(tw, "%s\t(error: %v)\t\t\t\n", rel, r.Err)
					}
					continue
				}
				fmt.Fprintln(tw, libraryRow(rel, r.Song, fileSize(r.Path)))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d songs", len(results)-bad)
			if bad > 0 {
				fmt.Printf(", %d unreadable", bad)
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "Parallel parsers (0 = one per CPU)")
	cmd.Flags().BoolVar(&showErrs, "errors", false, "List files that failed to parse")
	return cmd
}

func libraryRow(rel string, s *song.Song, size int64) string {
	title := s.Title
	if title == "" {
		title = "-"
	}
	notes := humanize.Comma(int64(s.Notes))
	if s.Skipped > 0 {
		notes += fmt.Sprintf(" (%d skipped)", s.Skipped)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", rel, title, notes, formatDuration(s.Duration()), humanize.Bytes(uint64(size)))
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
