package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RecommendationLog records one served recommendation for history and analytics.
type RecommendationLog struct {
	id                  string
	sequence            int
	SourceTrackID       string
	RecommendedTrackIDs []string
	Weights             WeightSet
	Method              string
	Degradations        []string
	createdAt           time.Time
	updatedAt           time.Time
}

// NewRecommendationLog creates a log entry for rec with a fresh id.
func NewRecommendationLog(sequence int, rec *Recommendation) *RecommendationLog {
	now := time.Now().UTC()
	ids := make([]string, 0, len(rec.Recommendations))
	for _, c := range rec.Recommendations {
		ids = append(ids, c.ID)
	}

	return &RecommendationLog{
		id:                  uuid.New().String(),
		sequence:            sequence,
		SourceTrackID:       rec.SourceTrackID,
		RecommendedTrackIDs: ids,
		Weights:             rec.EffectiveWeights,
		Method:              rec.Analysis.Method,
		Degradations:        rec.Analysis.Degradations,
		createdAt:           now,
		updatedAt:           now,
	}
}

// RestoreRecommendationLog rebuilds a log entry loaded from storage.
func RestoreRecommendationLog(id string, sequence int, createdAt, updatedAt time.Time) *RecommendationLog {
	return &RecommendationLog{id: id, sequence: sequence, createdAt: createdAt, updatedAt: updatedAt}
}

func (l *RecommendationLog) ID() string           { return l.id }
func (l *RecommendationLog) Sequence() int        { return l.sequence }
func (l *RecommendationLog) CreatedAt() time.Time { return l.createdAt }
func (l *RecommendationLog) UpdatedAt() time.Time { return l.updatedAt }

// SetSequence assigns the row sequence once it is known.
func (l *RecommendationLog) SetSequence(seq int) { l.sequence = seq }

// Touch bumps the update timestamp.
func (l *RecommendationLog) Touch() { l.updatedAt = time.Now().UTC() }

// Validate checks required fields.
func (l *RecommendationLog) Validate() error {
	if l.id == "" {
		return errors.New("recommendation log id is required")
	}
	if l.SourceTrackID == "" {
		return errors.New("source track id is required")
	}
	if l.Method == "" {
		return errors.New("method is required")
	}
	return nil
}
