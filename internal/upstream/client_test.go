package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epfl-river/river-backend/internal/apierr"
)

func TestFetchHierarchy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/locations?flatten=true", r.URL.RequestURI())
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"jsonapi": {"version": "1.0"},
			"data": [
				{"type": "location", "id": "1", "attributes": {"node_id": 1, "path": "Campus/Building", "leaf": false, "node_type": 2}},
				{"type": "location", "id": "2", "attributes": {"node_id": 2, "path": "Campus/Building/Room/Sensor", "leaf": true, "node_type": 5}}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", false)
	locs, err := c.FetchHierarchy(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, 1, locs[0].NodeID)
	assert.True(t, locs[1].Leaf)
}

func TestFetchHistoryDecodesDataPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/locations/history?location_ids=[10,20]&start=1000&end=2000", r.URL.RequestURI())
		w.Write([]byte(`{
			"jsonapi": {"version": "1.0"},
			"data": [
				{"type": "history", "id": "10", "attributes": {
					"id": 10, "name": "Temp", "zone": "Z1",
					"data_points": [[1000.9, 21.5, true], [1300.0, null, false]]
				}}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", false)
	hist, err := c.FetchHistory(context.Background(), []int{10, 20}, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Len(t, hist[0].DataPoints, 2)
	assert.Equal(t, int64(1000), hist[0].DataPoints[0].Timestamp)
	assert.Equal(t, 21.5, hist[0].DataPoints[0].Value)
	assert.True(t, hist[0].DataPoints[0].Logged)
	assert.Equal(t, 0.0, hist[0].DataPoints[1].Value)
	assert.False(t, hist[0].DataPoints[1].Logged)
}

func TestFetchEventsReturnsPageAndTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events?from=7d&page=1&page_size=1000", r.URL.RequestURI())
		w.Write([]byte(`{"jsonapi":{"version":"1.0"},"data":[
			{"type":"event","id":"1","attributes":{"num":1,"location_id":42}},
			{"type":"event","id":"2","attributes":{"num":2,"location_id":"N/A"}}
		],"meta":{"total_record_count":2,"page_record_count":2,"page_size":1000,"page_number":1}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", false)
	events, total, err := c.FetchEvents(context.Background(), "7d", 1, 1000)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, total)

	id, ok := events[0].LocationID.AsInt()
	assert.True(t, ok)
	assert.Equal(t, 42, id)

	_, ok = events[1].LocationID.AsInt()
	assert.False(t, ok)
	assert.Equal(t, "N/A", events[1].LocationID.Raw())
}

func TestRateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", false)
	_, err := c.FetchActiveAlarms(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.IsTransient(err))
}

func TestNonTransientErrorOnServerFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", false)
	_, err := c.FetchActiveAlarms(context.Background())
	require.Error(t, err)
	assert.False(t, apierr.IsTransient(err))
	assert.Equal(t, apierr.UpstreamFailure, apierr.KindOf(err))
}
