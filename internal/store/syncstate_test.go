package store

import (
	"context"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epfl-river/river-backend/pkg/schema"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Store{
		DB:        sqlx.NewDb(db, "postgres"),
		stmtCache: sq.NewStmtCache(db),
		psql:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, mock
}

func TestUpsertSyncStateSeedsThenPatches(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO sync_state").
		WithArgs("sensor-1", schema.SyncStatusPending, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sync_state SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	status := schema.SyncStatusSuccess
	lastData := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.UpsertSyncState(context.Background(), "sensor-1", schema.SyncStatePatch{
		LastDataTime: &lastData,
		Status:       &status,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSyncStateNoOpWhenPatchEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO sync_state").
		WithArgs("sensor-1", schema.SyncStatusPending, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertSyncState(context.Background(), "sensor-1", schema.SyncStatePatch{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSyncStateRetryCountReset(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO sync_state").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sync_state SET retry_count").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertSyncState(context.Background(), "sensor-1", schema.SyncStatePatch{RetryCountReset: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
