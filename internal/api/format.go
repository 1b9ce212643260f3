package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// responseFormat is the negotiated output shape for a query-surface
// endpoint.
type responseFormat string

const (
	formatJSON   responseFormat = "json"
	formatCSV    responseFormat = "csv"
	formatNDJSON responseFormat = "ndjson"
)

// negotiateFormat applies the documented precedence: an explicit
// ?format= query parameter wins outright; otherwise the Accept header is
// consulted for ndjson, then csv; JSON is the default.
func negotiateFormat(r *http.Request) responseFormat {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "csv":
		return formatCSV
	case "ndjson":
		return formatNDJSON
	case "json":
		return formatJSON
	}

	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/x-ndjson") {
		return formatNDJSON
	}
	if strings.Contains(accept, "text/csv") {
		return formatCSV
	}
	return formatJSON
}

// sensorMeta is the sensor identification carried alongside every series
// in a reshaped response.
type sensorMeta struct {
	SensorID     string  `json:"sensor_id"`
	Name         string  `json:"name"`
	SensorType   string  `json:"sensor_type"`
	DisplayUnits *string `json:"display_units,omitempty"`
	StationID    string  `json:"station_id"`
	StationName  string  `json:"station_name"`
}

// rawSeries is one sensor's column-oriented raw-reading response.
type rawSeries struct {
	sensorMeta
	Values []*float64 `json:"values"`
}

// rollupSeries is one sensor's column-oriented rollup response.
type rollupSeries struct {
	sensorMeta
	Avg   []*float64 `json:"avg"`
	Min   []*float64 `json:"min"`
	Max   []*float64 `json:"max"`
	Count []*int64   `json:"count"`
}

// timeSeriesResponse is the envelope shared by the readings and
// aggregates endpoints.
type timeSeriesResponse struct {
	Times       []int64        `json:"times"`
	RawSeries   []rawSeries    `json:"sensors,omitempty"`
	RollupSeries []rollupSeries `json:"rollups,omitempty"`
}

func sensorMetaFor(sn schema.Sensor, stationID, stationName string) sensorMeta {
	return sensorMeta{
		SensorID:     sn.ID,
		Name:         sn.Name,
		SensorType:   sn.SensorType,
		DisplayUnits: sn.DisplayUnits,
		StationID:    stationID,
		StationName:  stationName,
	}
}

// reshapeReadings builds the sorted union of distinct sample timestamps
// across every sensor's readings, then aligns each sensor's values to
// that union, leaving nil where a sensor has no sample at a given time.
func reshapeReadings(sensors []schema.Sensor, stationID, stationName string, readings []schema.Reading) timeSeriesResponse {
	bySensor := make(map[string]map[int64]float64, len(sensors))
	timeSet := map[int64]struct{}{}
	for _, r := range readings {
		ts := r.Time.Unix()
		timeSet[ts] = struct{}{}
		m, ok := bySensor[r.SensorID]
		if !ok {
			m = map[int64]float64{}
			bySensor[r.SensorID] = m
		}
		m[ts] = r.Value
	}

	times := sortedTimes(timeSet)

	out := timeSeriesResponse{Times: times}
	for _, sn := range sensors {
		series := rawSeries{
			sensorMeta: sensorMetaFor(sn, stationID, stationName),
			Values:     make([]*float64, len(times)),
		}
		values := bySensor[sn.ID]
		for i, t := range times {
			if v, ok := values[t]; ok {
				vv := v
				series.Values[i] = &vv
			}
		}
		out.RawSeries = append(out.RawSeries, series)
	}
	return out
}

// reshapeRollups mirrors reshapeReadings for bucketed rollup rows, aligning
// avg/min/max/count independently (a bucket can have a count but no avg
// if every sample in it was null, for instance).
func reshapeRollups(sensors []schema.Sensor, stationID, stationName string, rows []schema.RollupRow) timeSeriesResponse {
	type bucketVals struct {
		avg, min, max *float64
		count         *int64
	}
	bySensor := make(map[string]map[int64]bucketVals, len(sensors))
	timeSet := map[int64]struct{}{}
	for _, row := range rows {
		ts := row.Bucket.Unix()
		timeSet[ts] = struct{}{}
		m, ok := bySensor[row.SensorID]
		if !ok {
			m = map[int64]bucketVals{}
			bySensor[row.SensorID] = m
		}
		count := row.Count
		m[ts] = bucketVals{avg: row.Avg, min: row.Min, max: row.Max, count: &count}
	}

	times := sortedTimes(timeSet)

	out := timeSeriesResponse{Times: times}
	for _, sn := range sensors {
		series := rollupSeries{
			sensorMeta: sensorMetaFor(sn, stationID, stationName),
			Avg:        make([]*float64, len(times)),
			Min:        make([]*float64, len(times)),
			Max:        make([]*float64, len(times)),
			Count:      make([]*int64, len(times)),
		}
		values := bySensor[sn.ID]
		for i, t := range times {
			if v, ok := values[t]; ok {
				series.Avg[i], series.Min[i], series.Max[i], series.Count[i] = v.avg, v.min, v.max, v.count
			}
		}
		out.RollupSeries = append(out.RollupSeries, series)
	}
	return out
}

func sortedTimes(set map[int64]struct{}) []int64 {
	times := make([]int64, 0, len(set))
	for t := range set {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}
