package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tracktap/internal/recordings"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "recordings [folder]",
		Short: "List captured recordings",
		Long:  "Without arguments, list the playlist folders under the output directory.\nWith a folder name, list the files inside it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.library()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				files, err := lib.Files(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, recordings.Folder{Name: args[0], Files: nonNilFiles(files), Bytes: totalBytes(files)})
				}
				printFiles(cmd, files)
				return nil
			}

			folders, err := lib.Folders()
			if err != nil {
				return err
			}
			loose, err := lib.RootFiles()
			if err != nil {
				return err
			}
			if jsonOut {
				if folders == nil {
					folders = []recordings.Folder{}
				}
				return writeJSON(cmd, struct {
					Root    string              `json:"root"`
					Folders []recordings.Folder `json:"folders"`
					Files   []recordings.File   `json:"files"`
				}{Root: lib.Root(), Folders: folders, Files: nonNilFiles(loose)})
			}

			out := cmd.OutOrStdout()
			if len(folders) == 0 && len(loose) == 0 {
				fmt.Fprintf(out, "No recordings in %s\n", lib.Root())
				return nil
			}
			if len(folders) > 0 {
				rows := make([][]string, 0, len(folders))
				for _, f := range folders {
					rows = append(rows, []string{f.Name, strconv.Itoa(len(f.Files)), formatBytes(f.Bytes)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Folder", ">Files", ">Size"},
					rows,
				))
			}
			if len(loose) > 0 {
				fmt.Fprintln(out, "Single tracks:")
				printFiles(cmd, loose)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")

	cmd.AddCommand(newRecordingsArchiveCommand(ctx))
	cmd.AddCommand(newRecordingsExportCommand(ctx))
	return cmd
}

func newRecordingsExportCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "export <folder> <destination>",
		Short: "Copy a folder of recordings to another directory with verification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.library()
			if err != nil {
				return err
			}
			result, err := lib.Export(args[0], args[1], overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d recordings (%s), %d already present\n",
				result.Copied, formatBytes(result.Bytes), result.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Copy even when a same-sized file exists at the destination")
	return cmd
}

func newRecordingsArchiveCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "archive <folder>",
		Short: "Bundle a folder of recordings into a zip file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.library()
			if err != nil {
				return err
			}
			folder := args[0]
			if _, err := lib.Files(folder); err != nil {
				return err
			}
			path := strings.TrimSpace(target)
			if path == "" {
				path = recordings.ArchiveName(folder)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create archive directory: %w", err)
			}

			tmp := path + ".tmp"
			f, err := os.Create(tmp)
			if err != nil {
				return fmt.Errorf("create archive: %w", err)
			}
			count, err := lib.WriteArchive(f, folder)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(tmp)
				return err
			}
			if err := os.Rename(tmp, path); err != nil {
				_ = os.Remove(tmp)
				return fmt.Errorf("commit archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d recordings to %s\n", count, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "output", "o", "", "Archive path (default <folder>.zip in the current directory)")
	return cmd
}

func printFiles(cmd *cobra.Command, files []recordings.File) {
	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(out, "No recordings")
		return
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Name, formatBytes(f.Size), formatTime(f.Modified)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", ">Size", "Modified"},
		rows,
	))
}

func nonNilFiles(files []recordings.File) []recordings.File {
	if files == nil {
		return []recordings.File{}
	}
	return files
}

func totalBytes(files []recordings.File) int64 {
	var n int64
	for _, f := range files {
		n += f.Size
	}
	return n
}
