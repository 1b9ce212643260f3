package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/epfl-river/river-backend/internal/apierr"
	"github.com/epfl-river/river-backend/internal/cache"
	"github.com/epfl-river/river-backend/internal/store"
	"github.com/epfl-river/river-backend/pkg/schema"
)

const maxAggregateSpan = 90 * 24 * time.Hour

// streamChannelDepth bounds the channel of row indices between the index
// producer goroutine and the HTTP flush loop. The query result is loaded
// and reshaped in full before streaming starts, so the whole response is
// held in memory for the request; the channel only paces the writer.
const streamChannelDepth = 64

func (api *RestApi) resolveStationAndSensors(r *http.Request) (schema.Station, []schema.Sensor, error) {
	ref := mux.Vars(r)["idOrName"]
	ctx := r.Context()

	station, found, err := api.Store.ResolveStation(ctx, "", ref)
	if err != nil {
		return schema.Station{}, nil, apierr.Db(err)
	}
	if !found {
		return schema.Station{}, nil, apierr.NotFoundf("station %q not found", ref)
	}

	q := r.URL.Query()
	filter := store.SensorFilter{ActiveOnly: true}
	if inc, err := strconv.ParseBool(q.Get("is_active")); err == nil {
		filter.ActiveOnly = inc
	}
	if types := q.Get("sensor_types"); types != "" {
		filter.SensorTypes = strings.Split(types, ",")
	}

	sensors, err := api.Store.StationSensors(ctx, station.ID, filter)
	if err != nil {
		return schema.Station{}, nil, apierr.Db(err)
	}
	return station, sensors, nil
}

func sensorIDs(sensors []schema.Sensor) []string {
	ids := make([]string, len(sensors))
	for i, s := range sensors {
		ids[i] = s.ID
	}
	return ids
}

func (api *RestApi) getStationReadings(rw http.ResponseWriter, r *http.Request) {
	station, sensors, err := api.resolveStationAndSensors(r)
	if err != nil {
		handleError(err, rw)
		return
	}

	q := r.URL.Query()
	start, err := parseOptionalTime(q.Get("start"))
	if err != nil {
		handleError(err, rw)
		return
	}
	end, err := parseOptionalTime(q.Get("end"))
	if err != nil {
		handleError(err, rw)
		return
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		handleError(apierr.BadRequestf("end must be after start"), rw)
		return
	}

	format := negotiateFormat(r)
	ids := sensorIDs(sensors)

	queryEnd := end
	if queryEnd.IsZero() {
		queryEnd = time.Now().UTC().Add(time.Second)
	}

	if format == formatJSON {
		api.serveReadingsJSON(rw, r, station, sensors, ids, start, end)
		return
	}
	api.serveReadingsStream(rw, r, format, sensors, ids, start, queryEnd)
}

func (api *RestApi) serveReadingsJSON(rw http.ResponseWriter, r *http.Request, station schema.Station, sensors []schema.Sensor, ids []string, start, end time.Time) {
	ctx := r.Context()
	key := cache.Key("readings", station.ID, strings.Join(ids, ","), start.Format(time.RFC3339), end.Format(time.RFC3339))

	if cached, hit := api.Cache.Get(ctx, key, ids, end); hit {
		rw.Header().Set("X-Cache", "HIT")
		rw.Header().Set("Content-Type", "application/json")
		rw.Write(cached)
		return
	}

	queryEnd := end
	if queryEnd.IsZero() {
		queryEnd = time.Now().UTC().Add(time.Second)
	}
	readings, err := api.Store.ReadingsForSensors(ctx, ids, start, queryEnd)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}

	resp := reshapeReadings(sensors, station.ID, station.Name, readings)
	body, err := json.Marshal(resp)
	if err != nil {
		handleError(apierr.Internalf(err, "encoding readings response"), rw)
		return
	}

	var maxTime time.Time
	if len(resp.Times) > 0 {
		maxTime = time.Unix(resp.Times[len(resp.Times)-1], 0).UTC()
	}
	api.Cache.Store(key, body, maxTime)

	rw.Header().Set("X-Cache", "MISS")
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(body)
}

func (api *RestApi) getStationAggregates(rw http.ResponseWriter, r *http.Request) {
	resolution := schema.RollupResolution(mux.Vars(r)["resolution"])
	if _, ok := resolution.ViewName(); !ok {
		handleError(apierr.BadRequestf("unknown resolution %q", resolution), rw)
		return
	}

	station, sensors, err := api.resolveStationAndSensors(r)
	if err != nil {
		handleError(err, rw)
		return
	}

	q := r.URL.Query()
	start, err := parseOptionalTime(q.Get("start"))
	if err != nil {
		handleError(err, rw)
		return
	}
	end, err := parseOptionalTime(q.Get("end"))
	if err != nil {
		handleError(err, rw)
		return
	}
	if start.IsZero() || end.IsZero() {
		handleError(apierr.BadRequestf("start and end are required"), rw)
		return
	}
	if !end.After(start) {
		handleError(apierr.BadRequestf("end must be after start"), rw)
		return
	}
	if end.Sub(start) > maxAggregateSpan {
		handleError(apierr.BadRequestf("span exceeds the 90-day maximum for aggregate queries"), rw)
		return
	}

	format := negotiateFormat(r)
	ids := sensorIDs(sensors)

	if format == formatJSON {
		api.serveAggregatesJSON(rw, r, station, sensors, ids, resolution, start, end)
		return
	}
	api.serveRollupStream(rw, r, format, sensors, ids, resolution, start, end)
}

func (api *RestApi) serveAggregatesJSON(rw http.ResponseWriter, r *http.Request, station schema.Station, sensors []schema.Sensor, ids []string, resolution schema.RollupResolution, start, end time.Time) {
	ctx := r.Context()
	key := cache.Key("aggregates", string(resolution), station.ID, strings.Join(ids, ","), start.Format(time.RFC3339), end.Format(time.RFC3339))

	if cached, hit := api.Cache.Get(ctx, key, ids, end); hit {
		rw.Header().Set("X-Cache", "HIT")
		rw.Header().Set("Content-Type", "application/json")
		rw.Write(cached)
		return
	}

	rows, err := api.Store.RollupRows(ctx, resolution, ids, start, end)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}

	resp := reshapeRollups(sensors, station.ID, station.Name, rows)
	body, err := json.Marshal(resp)
	if err != nil {
		handleError(apierr.Internalf(err, "encoding aggregates response"), rw)
		return
	}

	api.Cache.Store(key, body, time.Time{})

	rw.Header().Set("X-Cache", "MISS")
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(body)
}

// serveReadingsStream acquires the bulk semaphore and writes raw readings
// as CSV or NDJSON, one row per distinct sample time, respecting
// back-pressure via streamChannelDepth.
func (api *RestApi) serveReadingsStream(rw http.ResponseWriter, r *http.Request, format responseFormat, sensors []schema.Sensor, ids []string, start, end time.Time) {
	if !api.bulkSemaphore.TryAcquire(1) {
		handleError(apierr.ServiceUnavailablef("Too many concurrent bulk requests, retry later"), rw)
		return
	}
	defer api.bulkSemaphore.Release(1)

	readings, err := api.Store.ReadingsForSensors(r.Context(), ids, start, end)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	resp := reshapeReadings(sensors, "", "", readings)

	rowCount := len(resp.Times)
	rows := make(chan int, streamChannelDepth)
	go func() {
		defer close(rows)
		for i := 0; i < rowCount; i++ {
			select {
			case rows <- i:
			case <-r.Context().Done():
				return
			}
		}
	}()

	switch format {
	case formatCSV:
		writeReadingsCSV(rw, r.Context(), resp, rows)
	default:
		writeReadingsNDJSON(rw, r.Context(), resp, rows)
	}
}

func (api *RestApi) serveRollupStream(rw http.ResponseWriter, r *http.Request, format responseFormat, sensors []schema.Sensor, ids []string, resolution schema.RollupResolution, start, end time.Time) {
	if !api.bulkSemaphore.TryAcquire(1) {
		handleError(apierr.ServiceUnavailablef("Too many concurrent bulk requests, retry later"), rw)
		return
	}
	defer api.bulkSemaphore.Release(1)

	rowsData, err := api.Store.RollupRows(r.Context(), resolution, ids, start, end)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	resp := reshapeRollups(sensors, "", "", rowsData)

	rowCount := len(resp.Times)
	rows := make(chan int, streamChannelDepth)
	go func() {
		defer close(rows)
		for i := 0; i < rowCount; i++ {
			select {
			case rows <- i:
			case <-r.Context().Done():
				return
			}
		}
	}()

	switch format {
	case formatCSV:
		writeRollupsCSV(rw, r.Context(), resp, rows)
	default:
		writeRollupsNDJSON(rw, r.Context(), resp, rows)
	}
}

// flushToClient pushes w's buffered bytes to rw, then asks the underlying
// ResponseWriter to flush to the network if it supports it, so a slow
// reader applies back-pressure through the TCP connection itself rather
// than through Go-level buffering alone.
func flushToClient(rw http.ResponseWriter, w *bufio.Writer) error {
	if err := w.Flush(); err != nil {
		return err
	}
	if f, ok := rw.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func writeReadingsCSV(rw http.ResponseWriter, ctx context.Context, resp timeSeriesResponse, rows <-chan int) {
	rw.Header().Set("Content-Type", "text/csv")
	w := bufio.NewWriter(rw)
	defer w.Flush()

	header := make([]string, 0, len(resp.RawSeries)+1)
	header = append(header, "time")
	for _, s := range resp.RawSeries {
		header = append(header, s.SensorID)
	}
	fmt.Fprintln(w, strings.Join(header, ","))

	for i := range rows {
		fields := make([]string, 0, len(resp.RawSeries)+1)
		fields = append(fields, strconv.FormatInt(resp.Times[i], 10))
		for _, s := range resp.RawSeries {
			fields = append(fields, formatFloatPtr(s.Values[i]))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, ",")); err != nil {
			return
		}
		if err := flushToClient(rw, w); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func writeReadingsNDJSON(rw http.ResponseWriter, ctx context.Context, resp timeSeriesResponse, rows <-chan int) {
	rw.Header().Set("Content-Type", "application/x-ndjson")
	w := bufio.NewWriter(rw)
	defer w.Flush()
	enc := json.NewEncoder(w)

	for i := range rows {
		values := make(map[string]*float64, len(resp.RawSeries))
		for _, s := range resp.RawSeries {
			values[s.SensorID] = s.Values[i]
		}
		line := struct {
			Time   int64               `json:"time"`
			Values map[string]*float64 `json:"values"`
		}{Time: resp.Times[i], Values: values}

		if err := enc.Encode(line); err != nil {
			return
		}
		if err := flushToClient(rw, w); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func writeRollupsCSV(rw http.ResponseWriter, ctx context.Context, resp timeSeriesResponse, rows <-chan int) {
	rw.Header().Set("Content-Type", "text/csv")
	w := bufio.NewWriter(rw)
	defer w.Flush()

	header := []string{"time"}
	for _, s := range resp.RollupSeries {
		header = append(header, s.SensorID+"_avg", s.SensorID+"_min", s.SensorID+"_max", s.SensorID+"_count")
	}
	fmt.Fprintln(w, strings.Join(header, ","))

	for i := range rows {
		fields := []string{strconv.FormatInt(resp.Times[i], 10)}
		for _, s := range resp.RollupSeries {
			fields = append(fields, formatFloatPtr(s.Avg[i]), formatFloatPtr(s.Min[i]), formatFloatPtr(s.Max[i]), formatIntPtr(s.Count[i]))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, ",")); err != nil {
			return
		}
		if err := flushToClient(rw, w); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func writeRollupsNDJSON(rw http.ResponseWriter, ctx context.Context, resp timeSeriesResponse, rows <-chan int) {
	rw.Header().Set("Content-Type", "application/x-ndjson")
	w := bufio.NewWriter(rw)
	defer w.Flush()
	enc := json.NewEncoder(w)

	type bucket struct {
		Avg   *float64 `json:"avg"`
		Min   *float64 `json:"min"`
		Max   *float64 `json:"max"`
		Count *int64   `json:"count"`
	}

	for i := range rows {
		values := make(map[string]bucket, len(resp.RollupSeries))
		for _, s := range resp.RollupSeries {
			values[s.SensorID] = bucket{Avg: s.Avg[i], Min: s.Min[i], Max: s.Max[i], Count: s.Count[i]}
		}
		line := struct {
			Time    int64             `json:"time"`
			Rollups map[string]bucket `json:"rollups"`
		}{Time: resp.Times[i], Rollups: values}

		if err := enc.Encode(line); err != nil {
			return
		}
		if err := flushToClient(rw, w); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
