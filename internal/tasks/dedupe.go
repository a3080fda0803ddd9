package tasks

import (
	"strings"

	"github.com/desertthunder/echoes/internal/models"
)

// DedupeKey identifies a recording by lowercased title and joined artist names.
func DedupeKey(t models.Track) string {
	return strings.ToLower(t.Title) + "|" + strings.ToLower(strings.Join(t.Artists, ", "))
}

// Dedupe drops tracks whose [DedupeKey] was already seen. The first occurrence wins and order is preserved.
func Dedupe(tracks []models.Track) []models.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		key := DedupeKey(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// exclude removes every track with the given id.
func exclude(tracks []models.Track, id string) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
