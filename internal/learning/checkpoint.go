package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// PoolInterface defines the database pool operations the checkpoint store
// needs; *pgxpool.Pool and pgxmock both satisfy it.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// CheckpointStore persists accuracy records to PostgreSQL so the learner
// survives restarts. The in-memory table stays authoritative; checkpoints
// are periodic snapshots.
type CheckpointStore struct {
	pool PoolInterface
	log  zerolog.Logger
}

// NewCheckpointStore creates a checkpoint store over an existing pool
func NewCheckpointStore(pool PoolInterface, log zerolog.Logger) *CheckpointStore {
	return &CheckpointStore{
		pool: pool,
		log:  log.With().Str("component", "checkpoint_store").Logger(),
	}
}

// NewCheckpointStoreWithPool creates a checkpoint store from a pgx pool
func NewCheckpointStoreWithPool(pool *pgxpool.Pool, log zerolog.Logger) *CheckpointStore {
	return NewCheckpointStore(pool, log)
}

// EnsureSchema creates the checkpoint table if missing
func (s *CheckpointStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS agent_accuracy (
			sport TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			total_predictions BIGINT NOT NULL DEFAULT 0,
			correct_predictions BIGINT NOT NULL DEFAULT 0,
			rolling_accuracy DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (sport, agent_id)
		)
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create agent_accuracy table: %w", err)
	}
	return nil
}

// Save upserts the given records
func (s *CheckpointStore) Save(ctx context.Context, records []prediction.AccuracyRecord) error {
	query := `
		INSERT INTO agent_accuracy (sport, agent_id, total_predictions, correct_predictions, rolling_accuracy, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sport, agent_id) DO UPDATE SET
			total_predictions = EXCLUDED.total_predictions,
			correct_predictions = EXCLUDED.correct_predictions,
			rolling_accuracy = EXCLUDED.rolling_accuracy,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	for _, rec := range records {
		if _, err := s.pool.Exec(ctx, query,
			string(rec.Sport),
			rec.AgentID,
			rec.TotalPredictions,
			rec.CorrectPredictions,
			rec.RollingAccuracy,
			now,
		); err != nil {
			return fmt.Errorf("failed to checkpoint accuracy for %s/%s: %w", rec.Sport, rec.AgentID, err)
		}
	}

	s.log.Debug().Int("records", len(records)).Msg("Accuracy checkpoint saved")
	return nil
}

// Load reads all checkpointed records
func (s *CheckpointStore) Load(ctx context.Context) ([]prediction.AccuracyRecord, error) {
	query := `
		SELECT sport, agent_id, total_predictions, correct_predictions, rolling_accuracy
		FROM agent_accuracy
		ORDER BY sport, agent_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load accuracy checkpoint: %w", err)
	}
	defer rows.Close()

	var records []prediction.AccuracyRecord
	for rows.Next() {
		var rec prediction.AccuracyRecord
		var sport string
		if err := rows.Scan(&sport, &rec.AgentID, &rec.TotalPredictions, &rec.CorrectPredictions, &rec.RollingAccuracy); err != nil {
			return nil, fmt.Errorf("failed to scan accuracy record: %w", err)
		}
		rec.Sport = prediction.Sport(sport)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accuracy records: %w", err)
	}

	return records, nil
}

// RunPeriodic checkpoints the learner's snapshot on the given interval
// until the context ends. A final checkpoint is attempted on shutdown.
func (s *CheckpointStore) RunPeriodic(ctx context.Context, learner *Learner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Save(flushCtx, learner.Snapshot()); err != nil {
				s.log.Error().Err(err).Msg("Final accuracy checkpoint failed")
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Save(ctx, learner.Snapshot()); err != nil {
				s.log.Error().Err(err).Msg("Periodic accuracy checkpoint failed")
			}
		}
	}
}
