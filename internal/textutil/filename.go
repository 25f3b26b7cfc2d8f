package textutil

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultFileNameLength bounds the stem of derived recording names in runes.
	DefaultFileNameLength = 150

	// artistRunes caps each artist name so long collaborations leave room
	// for the title.
	artistRunes = 30
	// artistSeparator joins artists; it matches recordings made by earlier
	// tools so skip-existing recognises them.
	artistSeparator = "_"

	unknownArtist = "Unknown Artist"
	untitled      = "Untitled"
)

// TrackStem derives the "Artist1_Artist2 - Title" stem for a recording. The result is
// NFC-normalised, stripped of path separators and other unsafe characters,
// and bounded to maxRunes. Stems that had to be shortened carry a short hash
// of the full name so two long titles sharing a prefix stay distinct.
func TrackStem(artists []string, title string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultFileNameLength
	}

	names := make([]string, 0, len(artists))
	for _, artist := range artists {
		if cleaned := cleanSegment(norm.NFC.String(artist)); cleaned != "" {
			if runes := []rune(cleaned); len(runes) > artistRunes {
				cleaned = strings.TrimSpace(string(runes[:artistRunes]))
			}
			names = append(names, cleaned)
		}
	}
	artistPart := strings.Join(names, artistSeparator)
	if artistPart == "" {
		artistPart = unknownArtist
	}
	titlePart := cleanSegment(norm.NFC.String(title))
	if titlePart == "" {
		titlePart = untitled
	}

	stem := trimDots(artistPart + " - " + titlePart)
	runes := []rune(stem)
	if len(runes) <= maxRunes {
		return stem
	}

	suffix := fmt.Sprintf(" ~%08x", stemHash(stem))
	keep := maxRunes - len(suffix)
	if keep < 1 {
		keep = 1
	}
	if keep > len(runes) {
		keep = len(runes)
	}
	return trimDots(strings.TrimSpace(string(runes[:keep]))) + suffix
}

// TrackFileName returns TrackStem plus the given extension.
func TrackFileName(artists []string, title, ext string, maxRunes int) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	stem := TrackStem(artists, title, maxRunes)
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

// DirName sanitizes a playlist title for use as a single directory segment.
func DirName(title string) string {
	cleaned := trimDots(cleanSegment(norm.NFC.String(title)))
	if cleaned == "" {
		return "playlist"
	}
	runes := []rune(cleaned)
	if len(runes) > DefaultFileNameLength {
		cleaned = strings.TrimSpace(string(runes[:DefaultFileNameLength]))
	}
	return cleaned
}

// cleanSegment makes name safe as one path segment. Separators and colons
// become dashes, characters Windows and Samba shares reject are dropped, and
// whitespace runs collapse to a single space.
func cleanSegment(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	return strings.Join(strings.Fields(mapped), " ")
}

func trimDots(value string) string {
	return strings.Trim(value, ". ")
}

func stemHash(value string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return h.Sum32()
}
