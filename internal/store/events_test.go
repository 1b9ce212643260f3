package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastEventTimeFallsBackToSentinelWhenEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"max"}).AddRow(nil)
	mock.ExpectQuery("SELECT MAX\\(time\\) FROM events").WillReturnRows(rows)

	from, err := s.LastEventTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7d", from)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastEventTimeReturnsEpochString(t *testing.T) {
	s, mock := newMockStore(t)

	max := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"max"}).AddRow(max)
	mock.ExpectQuery("SELECT MAX\\(time\\) FROM events").WillReturnRows(rows)

	from, err := s.LastEventTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1767268800", from)
	assert.NoError(t, mock.ExpectationsWereMet())
}
