package recordings

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// WriteArchive streams every recording in folder into a zip written to w.
// MP3 data is already compressed, so entries are stored rather than deflated.
func (l *Library) WriteArchive(w io.Writer, folder string) (int, error) {
	files, err := l.Files(folder)
	if err != nil {
		return 0, err
	}
	dir, _ := l.folderPath(folder)

	zw := zip.NewWriter(w)
	for _, f := range files {
		if err := addFile(zw, filepath.Join(dir, f.Name), folder+"/"+f.Name); err != nil {
			_ = zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	return len(files), nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Store

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("zip copy %s: %w", name, err)
	}
	return nil
}

// ArchiveName returns the download filename for a folder archive.
func ArchiveName(folder string) string {
	return folder + ".zip"
}
