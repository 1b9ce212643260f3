package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertZoneIsNoOpOnConflict(t *testing.T) {
	s, mock := newMockStore(t)

	// The insert hits ON CONFLICT DO NOTHING and returns no row, so the
	// store falls back to a lookup by name.
	mock.ExpectQuery("INSERT INTO zones").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id FROM zones WHERE name = \\$1").
		WithArgs("Martigny").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("zone-1"))

	id, err := s.UpsertZone(context.Background(), "Martigny", "/Martigny")
	require.NoError(t, err)
	assert.Equal(t, "zone-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStationIsNoOpOnConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO stations").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id FROM stations WHERE vaisala_node_id = \\$1").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("station-1"))

	id, err := s.UpsertStation(context.Background(), "zone-1", "Martigny", 42, "/BREATHE/Martigny")
	require.NoError(t, err)
	assert.Equal(t, "station-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSensorIsNoOpOnConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO sensors").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id FROM sensors WHERE vaisala_location_id = \\$1").
		WithArgs(1001).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sensor-1"))

	id, err := s.UpsertSensor(context.Background(), "station-1", 1001, "MDepthmm", SensorAttrs{SensorType: "Depth"})
	require.NoError(t, err)
	assert.Equal(t, "sensor-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingSensorLocationIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT vaisala_location_id FROM sensors").
		WillReturnRows(sqlmock.NewRows([]string{"vaisala_location_id"}).AddRow(1001).AddRow(1002))

	ids, err := s.ExistingSensorLocationIDs(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, 1001)
	assert.Contains(t, ids, 1002)
	assert.Len(t, ids, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
