package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tracktap/internal/history"
	"tracktap/internal/services"
)

const shortIDLength = 8

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past capture runs",
		Long:  "Without arguments, list recent runs. With a run ID (or a unique prefix), list that run's tracks.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				if len(args) == 1 {
					return showRun(cmd, store, args[0], jsonOut)
				}
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					if runs == nil {
						runs = []history.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						shortID(r.ID),
						r.Title,
						formatTime(r.Started),
						runState(r),
						strconv.Itoa(r.OK),
						strconv.Itoa(r.Skipped),
						strconv.Itoa(r.Errors),
						strconv.Itoa(r.Total),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Title", "Started", "State", ">OK", ">Skipped", ">Failed", ">Total"},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "Maximum runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func showRun(cmd *cobra.Command, store *history.Store, ref string, jsonOut bool) error {
	run, err := resolveRun(cmd.Context(), store, ref)
	if err != nil {
		return err
	}
	entries, err := store.Outcomes(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if jsonOut {
		if entries == nil {
			entries = []history.Entry{}
		}
		return writeJSON(cmd, struct {
			Run      history.Run     `json:"run"`
			Outcomes []history.Entry `json:"outcomes"`
		}{run, entries})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", run.ID, run.Title)
	fmt.Fprintf(out, "Started %s, %s", formatTime(run.Started), runState(run))
	if !run.InProgress() {
		fmt.Fprintf(out, " after %s", formatElapsed(run.Started, run.Finished))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Output: %s\n", run.OutputDir)
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		note := e.Fallback
		if note != "" {
			note = "manual (" + note + ")"
		}
		if e.Diagnostic != "" {
			note = firstLine(e.Diagnostic)
		}
		label := e.Title
		if e.Artists != "" {
			label = e.Artists + " - " + e.Title
		}
		rows = append(rows, []string{strconv.Itoa(e.Position), label, e.Status, note, formatBytes(e.Bytes)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{">#", "Track", "Status", "Note", ">Size"},
		rows,
	))
	return nil
}

// resolveRun accepts a full run ID or an unambiguous prefix of a recent one.
func resolveRun(ctx context.Context, store *history.Store, ref string) (history.Run, error) {
	ref = strings.TrimSpace(ref)
	run, err := store.GetRun(ctx, ref)
	if err == nil || !errors.Is(err, services.ErrNotFound) {
		return run, err
	}
	runs, listErr := store.ListRuns(ctx, 500)
	if listErr != nil {
		return history.Run{}, listErr
	}
	var matches []history.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return history.Run{}, err
	case 1:
		return matches[0], nil
	default:
		return history.Run{}, services.Wrap(services.ErrValidation, "history", "resolve",
			fmt.Sprintf("run prefix %q matches %d runs", ref, len(matches)), nil)
	}
}

func runState(r history.Run) string {
	switch {
	case r.InProgress():
		return "running"
	case r.Error != "":
		return "stopped"
	case r.Errors > 0:
		return "done with errors"
	default:
		return "done"
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}
