package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/goccy/go-json"
)

// RecommendationLogRepository implements [models.Repository] for [models.RecommendationLog] persistence.
type RecommendationLogRepository struct {
	db *sql.DB
}

// NewRecommendationLogRepository creates a new [RecommendationLogRepository] with the given database connection
func NewRecommendationLogRepository(db *sql.DB) *RecommendationLogRepository {
	return &RecommendationLogRepository{db: db}
}

const logColumns = `id, sequence, source_track_id, recommended_track_ids, weights, method, degradations, created_at, updated_at`

// Create assigns the next sequence and inserts the entry
func (r *RecommendationLogRepository) Create(entry *models.RecommendationLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "recommendation_logs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	entry.SetSequence(sequence)

	ids, weights, degradations, err := encodeLog(entry)
	if err != nil {
		return err
	}

	query := `INSERT INTO recommendation_logs (` + logColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		entry.ID(),
		sequence,
		entry.SourceTrackID,
		ids,
		weights,
		entry.Method,
		degradations,
		entry.CreatedAt(),
		entry.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation log: %w", err)
	}

	return nil
}

// Get retrieves a log entry by ID
func (r *RecommendationLogRepository) Get(id string) (*models.RecommendationLog, error) {
	query := `SELECT ` + logColumns + ` FROM recommendation_logs WHERE id = ?`

	entry, err := scanLog(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recommendation log not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation log: %w", err)
	}
	return entry, nil
}

// Update rewrites the stored results of an existing entry
func (r *RecommendationLogRepository) Update(entry *models.RecommendationLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	entry.Touch()
	ids, weights, degradations, err := encodeLog(entry)
	if err != nil {
		return err
	}

	query := `
		UPDATE recommendation_logs
		SET recommended_track_ids = ?, weights = ?, method = ?, degradations = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, ids, weights, entry.Method, degradations, entry.UpdatedAt(), entry.ID())
	if err != nil {
		return fmt.Errorf("failed to update recommendation log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("recommendation log not found: %s", entry.ID())
	}

	return nil
}

// Delete removes a log entry by ID
func (r *RecommendationLogRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recommendation_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recommendation log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("recommendation log not found: %s", id)
	}

	return nil
}

// List retrieves log entries, newest first.
//
// Supported criteria: "source_track_id" (string), "method" (string), "limit" (int).
func (r *RecommendationLogRepository) List(criteria map[string]any) ([]*models.RecommendationLog, error) {
	query := `SELECT ` + logColumns + ` FROM recommendation_logs WHERE 1 = 1`
	args := []any{}

	if source, ok := criteria["source_track_id"].(string); ok && source != "" {
		query += " AND source_track_id = ?"
		args = append(args, source)
	}
	if method, ok := criteria["method"].(string); ok && method != "" {
		query += " AND method = ?"
		args = append(args, method)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.RecommendationLog
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation log: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(row scanner) (*models.RecommendationLog, error) {
	var (
		id           string
		sequence     int
		source       string
		ids          string
		weights      string
		method       string
		degradations string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&id, &sequence, &source, &ids, &weights, &method, &degradations, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	entry := models.RestoreRecommendationLog(id, sequence, createdAt, updatedAt)
	entry.SourceTrackID = source
	entry.Method = method

	if err := json.Unmarshal([]byte(ids), &entry.RecommendedTrackIDs); err != nil {
		return nil, fmt.Errorf("invalid recommended_track_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &entry.Weights); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	if err := json.Unmarshal([]byte(degradations), &entry.Degradations); err != nil {
		return nil, fmt.Errorf("invalid degradations: %w", err)
	}
	return entry, nil
}

func encodeLog(entry *models.RecommendationLog) (ids, weights, degradations string, err error) {
	trackIDs := entry.RecommendedTrackIDs
	if trackIDs == nil {
		trackIDs = []string{}
	}
	tags := entry.Degradations
	if tags == nil {
		tags = []string{}
	}

	b, err := json.Marshal(trackIDs)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode track ids: %w", err)
	}
	ids = string(b)

	if b, err = json.Marshal(entry.Weights); err != nil {
		return "", "", "", fmt.Errorf("failed to encode weights: %w", err)
	}
	weights = string(b)

	if b, err = json.Marshal(tags); err != nil {
		return "", "", "", fmt.Errorf("failed to encode degradations: %w", err)
	}
	degradations = string(b)

	return ids, weights, degradations, nil
}

// RecommendationLogAdapter records finished recommendations into a [RecommendationLogRepository].
type RecommendationLogAdapter struct {
	repo   *RecommendationLogRepository
	logger *log.Logger
}

// NewRecommendationLogAdapter creates a new RecommendationLogAdapter with the given repository
func NewRecommendationLogAdapter(repo *RecommendationLogRepository, logger *log.Logger) *RecommendationLogAdapter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RecommendationLogAdapter{repo: repo, logger: shared.WithLogger(logger, "component", "history")}
}

// Record stores rec. Empty results are still recorded so degraded runs show up in history.
func (a *RecommendationLogAdapter) Record(ctx context.Context, rec *models.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := models.NewRecommendationLog(0, rec)
	if err := a.repo.Create(entry); err != nil {
		return fmt.Errorf("failed to record recommendation: %w", err)
	}

	a.logger.Debug("recorded recommendation", "track", rec.SourceTrackID, "sequence", entry.Sequence())
	return nil
}
