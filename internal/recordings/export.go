package recordings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tracktap/internal/fileutil"
	"tracktap/internal/services"
)

// ExportResult counts what Export did.
type ExportResult struct {
	Copied  int   `json:"copied"`
	Skipped int   `json:"skipped"`
	Bytes   int64 `json:"bytes"`
}

// Export copies the recordings of folder into dest/folder, verifying every
// copy. Files already present at the destination with the same size are left
// alone unless overwrite is set.
func (l *Library) Export(folder, dest string, overwrite bool) (ExportResult, error) {
	var result ExportResult
	if strings.TrimSpace(dest) == "" {
		return result, services.Wrap(services.ErrValidation, "recordings", "export", "destination is required", nil)
	}
	files, err := l.Files(folder)
	if err != nil {
		return result, err
	}
	src, err := l.folderPath(folder)
	if err != nil {
		return result, err
	}
	target := filepath.Join(dest, folder)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return result, fmt.Errorf("create export directory: %w", err)
	}
	for _, f := range files {
		from := filepath.Join(src, f.Name)
		to := filepath.Join(target, f.Name)
		if !overwrite && fileutil.SameFile(from, to) {
			result.Skipped++
			continue
		}
		n, err := fileutil.CopyFileVerified(from, to)
		if err != nil {
			return result, fmt.Errorf("export %s: %w", f.Name, err)
		}
		result.Copied++
		result.Bytes += n
	}
	return result, nil
}
