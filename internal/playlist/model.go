package playlist

import (
	"fmt"
	"strings"
	"time"
)

// Track is an immutable record describing one remote track.
type Track struct {
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	URI        string   `json:"spotify_uri,omitempty"`
	Permalink  string   `json:"permalink_url,omitempty"`
}

// Duration returns the track length, clamping unknown or negative values to zero.
func (t Track) Duration() time.Duration {
	if t.DurationMS <= 0 {
		return 0
	}
	return time.Duration(t.DurationMS) * time.Millisecond
}

// DurationSeconds returns the whole-second length used by capture timing.
func (t Track) DurationSeconds() int64 {
	if t.DurationMS <= 0 {
		return 0
	}
	return t.DurationMS / 1000
}

// ArtistLine joins the artist names for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Label returns "Artist - Title" with fallbacks for missing fields.
func (t Track) Label() string {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "?"
	}
	artists := strings.TrimSpace(t.ArtistLine())
	if artists == "" {
		return title
	}
	return artists + " - " + title
}

// Identity returns the source URI, or a positional key when the URI is absent.
func (t Track) Identity(position int) string {
	if uri := strings.TrimSpace(t.URI); uri != "" {
		return uri
	}
	return fmt.Sprintf("position:%d", position)
}

// Playlist is an ordered sequence of tracks with a display title.
type Playlist struct {
	Source string  `json:"source,omitempty"`
	Title  string  `json:"title"`
	Tracks []Track `json:"tracks"`
}

// Track returns the track at a 0-based index.
func (p *Playlist) Track(index int) (Track, bool) {
	if p == nil || index < 0 || index >= len(p.Tracks) {
		return Track{}, false
	}
	return p.Tracks[index], true
}

// TotalDuration sums the known track durations.
func (p *Playlist) TotalDuration() time.Duration {
	if p == nil {
		return 0
	}
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration()
	}
	return total
}
