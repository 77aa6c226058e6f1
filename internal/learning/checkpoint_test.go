package learning

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

func newMockStore(t *testing.T) (*CheckpointStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewCheckpointStore(mock, zerolog.Nop()), mock
}

func TestCheckpointEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS agent_accuracy").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointSave(t *testing.T) {
	store, mock := newMockStore(t)

	records := []prediction.AccuracyRecord{
		{
			Sport:              prediction.SportHockey,
			AgentID:            "hockey-agent",
			TotalPredictions:   10,
			CorrectPredictions: 6,
			RollingAccuracy:    0.62,
		},
		{
			Sport:              prediction.SportBaseball,
			AgentID:            "baseball-agent",
			TotalPredictions:   4,
			CorrectPredictions: 1,
			RollingAccuracy:    0.41,
		},
	}

	for _, rec := range records {
		mock.ExpectExec("INSERT INTO agent_accuracy").
			WithArgs(string(rec.Sport), rec.AgentID, rec.TotalPredictions, rec.CorrectPredictions, rec.RollingAccuracy, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.Save(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointSaveError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO agent_accuracy").
		WillReturnError(errors.New("connection refused"))

	err := store.Save(context.Background(), []prediction.AccuracyRecord{{
		Sport:   prediction.SportHockey,
		AgentID: "hockey-agent",
	}})
	assert.Error(t, err)
}

func TestCheckpointLoad(t *testing.T) {
	store, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{"sport", "agent_id", "total_predictions", "correct_predictions", "rolling_accuracy"}).
		AddRow("baseball", "baseball-agent", int64(4), int64(1), 0.41).
		AddRow("hockey", "hockey-agent", int64(10), int64(6), 0.62)

	mock.ExpectQuery("SELECT sport, agent_id").WillReturnRows(rows)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, prediction.SportBaseball, records[0].Sport)
	assert.Equal(t, int64(4), records[0].TotalPredictions)
	assert.Equal(t, prediction.SportHockey, records[1].Sport)
	assert.InDelta(t, 0.62, records[1].RollingAccuracy, 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointRoundTripThroughLearner(t *testing.T) {
	store, mock := newMockStore(t)

	learner := NewLearner(0.5, 0.2, zerolog.Nop())
	learner.Record(prediction.SportHockey, "hockey-agent", uuid.New(), true)

	snapshot := learner.Snapshot()
	require.Len(t, snapshot, 1)

	mock.ExpectExec("INSERT INTO agent_accuracy").
		WithArgs("hockey", "hockey-agent", int64(1), int64(1), snapshot[0].RollingAccuracy, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}
