package tasks

import (
	"slices"
	"testing"

	"github.com/desertthunder/echoes/internal/models"
)

func ids(tracks []models.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

func TestDedupe(t *testing.T) {
	t.Run("first occurrence wins and order is preserved", func(t *testing.T) {
		in := []models.Track{
			track("1", "A", "X"),
			track("2", "B", "Y"),
			track("3", "A", "X"),
		}

		got := Dedupe(in)
		if want := []string{"1", "2"}; !slices.Equal(ids(got), want) {
			t.Errorf("expected %v, got %v", want, ids(got))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		in := []models.Track{
			track("1", "Skinny Love", "Bon Iver"),
			track("2", "skinny love", "bon iver"),
			track("3", "Skinny Love", "Birdy"),
			track("4", "Holocene", "Bon Iver"),
			track("5", "HOLOCENE", "BON IVER"),
		}

		once := Dedupe(in)
		twice := Dedupe(once)
		if !slices.Equal(ids(once), ids(twice)) {
			t.Errorf("expected %v, got %v", ids(once), ids(twice))
		}
		if want := []string{"1", "3", "4"}; !slices.Equal(ids(once), want) {
			t.Errorf("expected %v, got %v", want, ids(once))
		}
	})

	t.Run("artists are part of the key", func(t *testing.T) {
		in := []models.Track{
			track("1", "Song", "A", "B"),
			track("2", "Song", "A"),
			track("3", "Song", "a", "b"),
		}
		if want := []string{"1", "2"}; !slices.Equal(ids(Dedupe(in)), want) {
			t.Errorf("expected %v, got %v", want, ids(Dedupe(in)))
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := Dedupe(nil); len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})
}

func TestExclude(t *testing.T) {
	in := []models.Track{track("src", "A", "X"), track("1", "B", "Y"), track("src", "C", "Z")}
	if want := []string{"1"}; !slices.Equal(ids(exclude(in, "src")), want) {
		t.Errorf("expected %v, got %v", want, ids(exclude(in, "src")))
	}
}
