package tasks

import (
	"fmt"
	"math"

	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
)

// Cosine returns dot(a,b) / (|a|*|b|). Either norm being zero yields 0.
//
// Vectors of different lengths are a programming error and return [shared.ErrDimensionMismatch].
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", shared.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// NormalizeWeights scales w so the weights sum to 1. A non-positive sum yields all zeros.
func NormalizeWeights(w models.WeightSet) models.WeightSet {
	sum := w.Sum()
	if sum <= 0 {
		return models.WeightSet{}
	}
	return models.WeightSet{
		Lyrics:  w.Lyrics / sum,
		Audio:   w.Audio / sum,
		Spotify: w.Spotify / sum,
	}
}

// WeightedScore combines per-signal similarities.
func WeightedScore(lyricsSim, spotifySim, audioSim float64, w models.WeightSet) float64 {
	return lyricsSim*w.Lyrics + spotifySim*w.Spotify + audioSim*w.Audio
}

// NormalizeFeatures selects the seven perceptual descriptors in [models.AudioFeatureVector] order.
//
// Values are used as the provider reports them; clamping belongs here if that ever changes.
func NormalizeFeatures(f models.AudioFeatures) models.AudioFeatureVector {
	return models.AudioFeatureVector{
		f.Danceability,
		f.Energy,
		f.Valence,
		f.Acousticness,
		f.Instrumentalness,
		f.Speechiness,
		f.Liveness,
	}
}

// breakdown scores a candidate. The audio-embedding slot has no source yet and always contributes 0.
func breakdown(lyricsSim, spotifySim float64, w models.WeightSet) (float64, models.Breakdown) {
	const audioSim = 0
	b := models.Breakdown{
		Lyrics:  lyricsSim * w.Lyrics,
		Spotify: spotifySim * w.Spotify,
		Audio:   audioSim * w.Audio,
	}
	return WeightedScore(lyricsSim, spotifySim, audioSim, w), b
}
