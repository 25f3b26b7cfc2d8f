package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tracktap/internal/playlist"
)

func newPlaylistsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "playlists",
		Aliases: []string{"playlist", "pl"},
		Short:   "List saved playlists",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			entries, err := catalog.List()
			if err != nil {
				return err
			}
			if jsonOut {
				if entries == nil {
					entries = []playlist.Summary{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No playlists in %s\n", catalog.Dir())
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, e.Title, strconv.Itoa(e.TrackCount), formatTime(e.Modified)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Title", ">Tracks", "Modified"},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")

	cmd.AddCommand(newPlaylistShowCommand(ctx))
	cmd.AddCommand(newPlaylistImportCommand(ctx))
	return cmd
}

func newPlaylistShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <name-or-path>",
		Short: "Show the tracks of a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			pl, path, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, pl)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d tracks, %s)\n", pl.Title, len(pl.Tracks), pl.TotalDuration().Round(time.Second))
			fmt.Fprintf(out, "Source: %s\n", path)
			rows := make([][]string, 0, len(pl.Tracks))
			for i, t := range pl.Tracks {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					t.Title,
					t.ArtistLine(),
					formatTrackLength(t.DurationMS),
					t.URI,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{">#", "Title", "Artists", ">Length", "URI"},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func newPlaylistImportCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Copy a playlist document into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			pl, err := playlist.LoadFile(args[0])
			if err != nil {
				return err
			}
			if t := strings.TrimSpace(title); t != "" {
				pl.Title = t
			}
			path, err := catalog.Save(pl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %q (%d tracks) to %s\n", pl.Title, len(pl.Tracks), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Override the playlist title")
	return cmd
}
