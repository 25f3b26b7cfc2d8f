package recordings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tracktap/internal/services"
)

// Extension is the suffix of captured files.
const Extension = ".mp3"

// File describes one recording.
type File struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Folder groups the recordings of one playlist.
type Folder struct {
	Name  string `json:"name"`
	Files []File `json:"files"`
	Bytes int64  `json:"bytes"`
}

// Library reads the recordings root.
type Library struct {
	root string
}

// NewLibrary returns a library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{root: dir}
}

// Root returns the recordings directory.
func (l *Library) Root() string {
	return l.root
}

// Folders lists playlist folders that contain recordings, sorted by name.
// A missing root yields an empty list.
func (l *Library) Folders() ([]Folder, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recordings root: %w", err)
	}
	var folders []Folder
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files, err := l.Files(entry.Name())
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		folder := Folder{Name: entry.Name(), Files: files}
		for _, f := range files {
			folder.Bytes += f.Size
		}
		folders = append(folders, folder)
	}
	sort.Slice(folders, func(i, j int) bool {
		return strings.ToLower(folders[i].Name) < strings.ToLower(folders[j].Name)
	})
	return folders, nil
}

// Files lists the recordings in one playlist folder, sorted by name.
func (l *Library) Files(folder string) ([]File, error) {
	dir, err := l.folderPath(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "recordings", "list", "no folder "+folder, nil)
		}
		return nil, fmt.Errorf("read %s: %w", folder, err)
	}
	return collect(entries), nil
}

// RootFiles lists recordings stored directly under the root, which is where
// single tracks captured outside a playlist land.
func (l *Library) RootFiles() ([]File, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recordings root: %w", err)
	}
	return collect(entries), nil
}

func collect(entries []os.DirEntry) []File {
	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), Extension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Name: entry.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Resolve returns the path of a recording after validating both names. An
// empty folder addresses the root.
func (l *Library) Resolve(folder, name string) (string, error) {
	dir := l.root
	if folder != "" {
		var err error
		if dir, err = l.folderPath(folder); err != nil {
			return "", err
		}
	}
	if err := validName(name); err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(name), Extension) {
		return "", services.Wrap(services.ErrValidation, "recordings", "resolve", "not a recording: "+name, nil)
	}
	target := filepath.Join(dir, name)
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrNotFound, "recordings", "resolve", path.Join(folder, name), nil)
	}
	return target, nil
}

func (l *Library) folderPath(folder string) (string, error) {
	if err := validName(folder); err != nil {
		return "", err
	}
	return filepath.Join(l.root, folder), nil
}

func validName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "", trimmed == ".", trimmed == "..":
		return services.Wrap(services.ErrValidation, "recordings", "validate name", fmt.Sprintf("invalid name %q", name), nil)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return services.Wrap(services.ErrValidation, "recordings", "validate name", fmt.Sprintf("name %q contains a path separator", name), nil)
	}
	return nil
}
