package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tracktap/internal/capture"
	"tracktap/internal/playlist"
	"tracktap/internal/recorder"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Capture a track or a playlist",
	}
	recordCmd.AddCommand(newRecordPlaylistCommand(ctx))
	recordCmd.AddCommand(newRecordTrackCommand(ctx))
	return recordCmd
}

func newRecordPlaylistCommand(ctx *commandContext) *cobra.Command {
	var skipExisting bool
	var manual bool
	var outputDir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "playlist <name-or-path>",
		Short: "Capture every track of a saved playlist",
		Long: "Capture every track of a playlist from the catalog (by name) or from a JSON file.\n" +
			"Existing recordings are skipped unless capture.skip_existing is false or --skip-existing=false is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := recorder.PlaylistRequest{
				Ref:       args[0],
				OutputDir: strings.TrimSpace(outputDir),
				Manual:    manual,
			}
			if cmd.Flags().Changed("skip-existing") {
				req.SkipExisting = &skipExisting
			}
			return ctx.withStack(cmd, func(stack *recorder.Stack) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				report, err := stack.Service.RecordPlaylist(runCtx, req, progressObserver(cmd, jsonOut))
				return finishRecord(cmd, report, err, jsonOut)
			})
		},
	}

	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "Skip tracks whose output file already exists")
	cmd.Flags().BoolVar(&manual, "manual", false, "Do not trigger playback remotely; start each track by hand")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Write recordings here instead of the playlist folder")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run report as JSON")
	return cmd
}

func newRecordTrackCommand(ctx *commandContext) *cobra.Command {
	var playlistRef string
	var index int
	var uri string
	var title string
	var artists []string
	var durationMS int64
	var manual bool
	var outputDir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Capture a single track",
		Long: "Capture one track, either by position in a saved playlist (--playlist and --index)\n" +
			"or from explicit metadata (--title, --artist, --duration-ms and optionally --uri).",
		Example: "  tracktap record track --playlist road-trip --index 3\n" +
			"  tracktap record track --uri spotify:track:abc --title Song --artist Band --duration-ms 185000",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := recorder.TrackRequest{
				OutputDir: strings.TrimSpace(outputDir),
				Manual:    manual,
			}
			if ref := strings.TrimSpace(playlistRef); ref != "" {
				if index < 1 {
					return errors.New("--index must be 1 or greater when --playlist is set")
				}
				req.PlaylistRef = ref
				req.Index = index
			} else {
				if strings.TrimSpace(title) == "" {
					return errors.New("either --playlist with --index, or --title, is required")
				}
				if durationMS <= 0 {
					return errors.New("--duration-ms must be positive for an ad-hoc track")
				}
				req.Track = playlist.Track{
					Title:      strings.TrimSpace(title),
					Artists:    artists,
					DurationMS: durationMS,
					URI:        strings.TrimSpace(uri),
				}
			}
			return ctx.withStack(cmd, func(stack *recorder.Stack) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				report, err := stack.Service.RecordTrack(runCtx, req, progressObserver(cmd, jsonOut))
				return finishRecord(cmd, report, err, jsonOut)
			})
		},
	}

	cmd.Flags().StringVarP(&playlistRef, "playlist", "p", "", "Saved playlist name or path")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "1-based track position within --playlist")
	cmd.Flags().StringVar(&uri, "uri", "", "Spotify track URI")
	cmd.Flags().StringVar(&title, "title", "", "Track title")
	cmd.Flags().StringArrayVar(&artists, "artist", nil, "Artist name (repeatable)")
	cmd.Flags().Int64Var(&durationMS, "duration-ms", 0, "Track length in milliseconds")
	cmd.Flags().BoolVar(&manual, "manual", false, "Do not trigger playback remotely; start the track by hand")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the recording")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run report as JSON")
	return cmd
}

// progressObserver prints one line per track event unless JSON output was
// requested, in which case stdout carries only the report.
func progressObserver(cmd *cobra.Command, jsonOut bool) capture.Observer {
	if jsonOut {
		return capture.NewConsoleObserver(cmd.ErrOrStderr())
	}
	return capture.NewConsoleObserver(cmd.OutOrStdout())
}

func finishRecord(cmd *cobra.Command, report capture.Report, runErr error, jsonOut bool) error {
	if report.RunID == "" && runErr != nil {
		return runErr
	}
	if jsonOut {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report)
	}
	if runErr != nil {
		return runErr
	}
	if counts := report.Counts(); counts.Error > 0 {
		return fmt.Errorf("%d of %d tracks failed", counts.Error, len(report.Outcomes))
	}
	return nil
}

func printReport(out io.Writer, report capture.Report) {
	if len(report.Outcomes) > 0 {
		rows := make([][]string, 0, len(report.Outcomes))
		for _, o := range report.Outcomes {
			rows = append(rows, []string{
				strconv.Itoa(o.Index),
				o.Track.Label(),
				string(o.Status),
				outcomeNote(o),
				formatBytes(o.Bytes),
				fileColumn(o.OutputPath),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{">#", "Track", "Status", "Note", ">Size", "File"},
			rows,
		))
	}
	counts := report.Counts()
	fmt.Fprintf(out, "%s: %d ok, %d skipped, %d failed (%s)\n",
		report.Title, counts.OK, counts.Skipped, counts.Error, formatElapsed(report.Started, report.Finished))
	if report.OutputDir != "" {
		fmt.Fprintf(out, "Output: %s\n", report.OutputDir)
	}
	if report.Error != "" {
		fmt.Fprintf(out, "Stopped: %s\n", report.Error)
	}
}

func outcomeNote(o capture.Outcome) string {
	switch {
	case o.Status == capture.StatusError && o.Diagnostic != "":
		return firstLine(o.Diagnostic)
	case o.Fallback != capture.FallbackNone:
		return "manual (" + string(o.Fallback) + ")"
	case o.Killed:
		return "encoder stopped at window"
	}
	return ""
}

func fileColumn(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func firstLine(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		value = value[:idx]
	}
	const max = 60
	if runes := []rune(value); len(runes) > max {
		value = string(runes[:max-1]) + "…"
	}
	return value
}
