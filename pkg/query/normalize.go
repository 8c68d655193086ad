// Package query builds normalized free-text search queries from track metadata.
package query

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	taggedNoiseRegex = regexp.MustCompile(`(?i)\s*[\(\[]\s*(official\s+(video|audio|music\s+video)|lyric\s+video|lyrics|visuali[sz]er|hd|4k)\s*[\)\]]\s*`)
	punctRegex       = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// ForTrack builds the search query for a track: the title followed by the
// space-joined artist names, normalized for use against the search backend.
func ForTrack(name string, artists []string) string {
	parts := make([]string, 0, len(artists)+1)
	if name != "" {
		parts = append(parts, name)
	}
	for _, artist := range artists {
		if artist != "" {
			parts = append(parts, artist)
		}
	}
	return Normalize(strings.Join(parts, " "))
}

// Normalize strips video-style noise tags, diacritics, and punctuation and
// collapses whitespace. The result is stable across providers so the first
// search result stays comparable between instances.
func Normalize(text string) string {
	text = taggedNoiseRegex.ReplaceAllString(text, " ")

	text = norm.NFKD.String(text)
	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
