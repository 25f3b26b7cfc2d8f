package playlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tracktap/internal/services"
	"tracktap/internal/textutil"
)

// DocumentName is the file name used for directory-style catalog entries.
const DocumentName = "playlist.json"

// Summary describes one catalog entry without its tracks.
type Summary struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Path       string    `json:"path"`
	TrackCount int       `json:"track_count"`
	Modified   time.Time `json:"modified"`
}

// Catalog reads and writes saved playlists under a directory.
type Catalog struct {
	dir string
}

// NewCatalog returns a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir returns the catalog root.
func (c *Catalog) Dir() string {
	return c.dir
}

// List returns the catalog entries sorted by name. A missing directory yields
// an empty list.
func (c *Catalog) List() ([]Summary, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read playlist catalog: %w", err)
	}
	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		var path, key string
		switch {
		case entry.IsDir():
			path = filepath.Join(c.dir, name, DocumentName)
			key = name
		case strings.EqualFold(filepath.Ext(name), ".json"):
			path = filepath.Join(c.dir, name)
			key = strings.TrimSuffix(name, filepath.Ext(name))
		default:
			continue
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}
		pl, loadErr := LoadFile(path)
		if loadErr != nil {
			continue
		}
		summaries = append(summaries, Summary{
			Name:       key,
			Title:      pl.Title,
			Path:       path,
			TrackCount: len(pl.Tracks),
			Modified:   info.ModTime(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// Resolve maps a catalog name or a filesystem path to a playlist document path.
func (c *Catalog) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "playlist", "resolve", "empty playlist reference", nil)
	}
	candidates := make([]string, 0, 4)
	if strings.ContainsAny(ref, `/\`) || strings.HasSuffix(strings.ToLower(ref), ".json") {
		candidates = append(candidates, ref)
		if !filepath.IsAbs(ref) {
			candidates = append(candidates, filepath.Join(c.dir, ref))
		}
	} else {
		candidates = append(candidates,
			filepath.Join(c.dir, ref, DocumentName),
			filepath.Join(c.dir, ref+".json"),
		)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.IsDir() {
			doc := filepath.Join(candidate, DocumentName)
			if _, err := os.Stat(doc); err == nil {
				return doc, nil
			}
			continue
		}
		return candidate, nil
	}
	return "", services.Wrap(services.ErrNotFound, "playlist", "resolve", fmt.Sprintf("playlist %q not found", ref), nil)
}

// Load resolves ref and decodes the playlist document.
func (c *Catalog) Load(ref string) (*Playlist, string, error) {
	path, err := c.Resolve(ref)
	if err != nil {
		return nil, "", err
	}
	pl, err := LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return pl, path, nil
}

// Save writes the playlist as <dir>/<DirName(title)>/playlist.json and returns
// the written path.
func (c *Catalog) Save(pl *Playlist) (string, error) {
	if pl == nil {
		return "", services.Wrap(services.ErrValidation, "playlist", "save", "nil playlist", nil)
	}
	dir := filepath.Join(c.dir, textutil.DirName(pl.Title))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create playlist dir: %w", err)
	}
	data, err := json.MarshalIndent(pl, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode playlist: %w", err)
	}
	path := filepath.Join(dir, DocumentName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write playlist: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit playlist: %w", err)
	}
	return path, nil
}

// LoadFile decodes a playlist document. A missing title falls back to the
// containing directory or file name.
func LoadFile(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "playlist", "load", path, err)
		}
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	var pl Playlist
	if err := json.Unmarshal(data, &pl); err != nil {
		return nil, services.Wrap(services.ErrValidation, "playlist", "decode", path, err)
	}
	if strings.TrimSpace(pl.Title) == "" {
		pl.Title = defaultTitle(path)
	}
	for i := range pl.Tracks {
		if pl.Tracks[i].DurationMS < 0 {
			pl.Tracks[i].DurationMS = 0
		}
	}
	return &pl, nil
}

func defaultTitle(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(base, DocumentName) {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
