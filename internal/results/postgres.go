package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// PostgresStore writes one row per summary with the labels as JSONB
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database and creates the summaries table if needed
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure prediction_summaries table: %w", err)
	}

	return store, nil
}

// ensureTable creates the prediction_summaries table if it doesn't exist
func (s *PostgresStore) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS prediction_summaries (
			prediction_id TEXT PRIMARY KEY,
			original_img_path TEXT NOT NULL,
			predicted_img_path TEXT NOT NULL,
			predicted_img_key TEXT NOT NULL DEFAULT '',
			labels JSONB NOT NULL,
			label_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Insert writes summary as one row
func (s *PostgresStore) Insert(ctx context.Context, summary *detection.PredictionSummary) error {
	labels, err := json.Marshal(summary.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	query := `
		INSERT INTO prediction_summaries
			(prediction_id, original_img_path, predicted_img_path, predicted_img_key, labels, label_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		summary.PredictionID,
		summary.OriginalImgPath,
		summary.PredictedImgPath,
		summary.PredictedImgKey,
		string(labels),
		len(summary.Labels),
		summary.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction %s: %w", summary.PredictionID, err)
	}
	return nil
}

// Get loads the summary with the given prediction id
func (s *PostgresStore) Get(ctx context.Context, predictionID string) (*detection.PredictionSummary, error) {
	query := `
		SELECT prediction_id, original_img_path, predicted_img_path, predicted_img_key, labels, created_at
		FROM prediction_summaries
		WHERE prediction_id = $1
	`

	var summary detection.PredictionSummary
	var labels []byte
	err := s.db.QueryRowContext(ctx, query, predictionID).Scan(
		&summary.PredictionID,
		&summary.OriginalImgPath,
		&summary.PredictedImgPath,
		&summary.PredictedImgKey,
		&labels,
		&summary.Time,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction %s: %w", predictionID, err)
	}

	if err := json.Unmarshal(labels, &summary.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	return &summary, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close(ctx context.Context) error {
	return s.db.Close()
}
