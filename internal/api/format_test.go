package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epfl-river/river-backend/pkg/schema"
)

func TestNegotiateFormatPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		accept string
		want   responseFormat
	}{
		{"query wins over accept", "format=csv", "application/x-ndjson", formatCSV},
		{"ndjson accept", "", "application/x-ndjson", formatNDJSON},
		{"csv accept", "", "text/csv", formatCSV},
		{"default json", "", "", formatJSON},
		{"explicit json query", "format=json", "text/csv", formatJSON},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+c.query, nil)
			if c.accept != "" {
				r.Header.Set("Accept", c.accept)
			}
			assert.Equal(t, c.want, negotiateFormat(r))
		})
	}
}

func TestReshapeReadingsAlignsAcrossSensors(t *testing.T) {
	sensors := []schema.Sensor{{ID: "s1", Name: "Temp"}, {ID: "s2", Name: "Humidity"}}
	readings := []schema.Reading{
		{SensorID: "s1", Time: time.Unix(600, 0), Value: 1.5},
		{SensorID: "s1", Time: time.Unix(1200, 0), Value: 2.5},
		{SensorID: "s2", Time: time.Unix(600, 0), Value: 50},
	}

	resp := reshapeReadings(sensors, "st-1", "Station One", readings)

	assert.Equal(t, []int64{600, 1200}, resp.Times)
	assert.Len(t, resp.RawSeries, 2)

	s1 := resp.RawSeries[0]
	assert.Equal(t, "s1", s1.SensorID)
	assert.Equal(t, 1.5, *s1.Values[0])
	assert.Equal(t, 2.5, *s1.Values[1])

	s2 := resp.RawSeries[1]
	assert.Equal(t, 50.0, *s2.Values[0])
	assert.Nil(t, s2.Values[1])
}

func TestReshapeRollupsLeavesNilForMissingBuckets(t *testing.T) {
	sensors := []schema.Sensor{{ID: "s1"}}
	avg := 3.0
	rows := []schema.RollupRow{
		{SensorID: "s1", Bucket: time.Unix(3600, 0), Avg: &avg, Count: 12},
	}

	resp := reshapeRollups(sensors, "", "", rows)

	assert.Equal(t, []int64{3600}, resp.Times)
	assert.Equal(t, &avg, resp.RollupSeries[0].Avg[0])
	assert.Nil(t, resp.RollupSeries[0].Min[0])
	assert.Equal(t, int64(12), *resp.RollupSeries[0].Count[0])
}
