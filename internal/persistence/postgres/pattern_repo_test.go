package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wargames-arena/marketfeed/internal/persistence"
)

func newTestPatternRepo(t *testing.T) (*PatternRepo, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "postgres")
	return &PatternRepo{db: db, timeout: time.Second}, mock, func() { mockDB.Close() }
}

func TestPatternRepo_Upsert_SendsOnConflictUpdate(t *testing.T) {
	repo, mock, closeDB := newTestPatternRepo(t)
	defer closeDB()

	mock.ExpectExec("INSERT INTO trade_patterns").
		WithArgs("breakout:AAPL:1h", 12, 0.6, 1.8, 0.9, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), persistence.PatternRecord{
		Key:           "breakout:AAPL:1h",
		SampleCount:   12,
		WinRate:       0.6,
		Profitability: 1.8,
		Confidence:    0.9,
		ObservedAt:    time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRepo_Upsert_WrapsExecError(t *testing.T) {
	repo, mock, closeDB := newTestPatternRepo(t)
	defer closeDB()

	mock.ExpectExec("INSERT INTO trade_patterns").WillReturnError(sqlmock.ErrCancelled)

	err := repo.Upsert(context.Background(), persistence.PatternRecord{Key: "k", ObservedAt: time.Now()})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upsert pattern")
}

func TestPatternRepo_ListHighConfidence_FiltersByThreshold(t *testing.T) {
	repo, mock, closeDB := newTestPatternRepo(t)
	defer closeDB()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "key", "sample_count", "win_rate", "profitability", "confidence", "observed_at"}).
		AddRow(int64(1), "breakout:AAPL:1h", 12, 0.6, 1.8, 0.95, now).
		AddRow(int64(2), "reversal:EUR/USD:1d", 8, 0.55, 1.2, 0.91, now)
	mock.ExpectQuery("SELECT (.+) FROM trade_patterns WHERE confidence").
		WithArgs(0.9).
		WillReturnRows(rows)

	out, err := repo.ListHighConfidence(context.Background(), 0.9)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "breakout:AAPL:1h", out[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRepo_ListHighConfidence_EmptyResultSet(t *testing.T) {
	repo, mock, closeDB := newTestPatternRepo(t)
	defer closeDB()

	rows := sqlmock.NewRows([]string{"id", "key", "sample_count", "win_rate", "profitability", "confidence", "observed_at"})
	mock.ExpectQuery("SELECT (.+) FROM trade_patterns WHERE confidence").
		WithArgs(0.99).
		WillReturnRows(rows)

	out, err := repo.ListHighConfidence(context.Background(), 0.99)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
