package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/epfl-river/river-backend/internal/apierr"
	"github.com/epfl-river/river-backend/internal/store"
)

func parseSeverity(q string) (*int16, error) {
	if q == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(q, 10, 16)
	if err != nil {
		return nil, apierr.BadRequestf("invalid severity %q", q)
	}
	s := int16(n)
	return &s, nil
}

// parseOptionalTime parses an RFC3339 timestamp, returning the zero time
// (meaning "unbounded") for an empty string.
func parseOptionalTime(q string) (time.Time, error) {
	if q == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, q)
	if err != nil {
		return time.Time{}, apierr.BadRequestf("invalid timestamp %q, want RFC3339", q)
	}
	return t, nil
}

func (api *RestApi) listAlarms(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	active, _ := strconv.ParseBool(q.Get("active"))
	severity, err := parseSeverity(q.Get("severity"))
	if err != nil {
		handleError(err, rw)
		return
	}
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

	alarms, err := api.Store.ListAlarms(r.Context(), store.AlarmListFilter{
		ActiveOnly: active,
		StationID:  q.Get("station_id"),
		Severity:   severity,
		Start:      start,
		End:        end,
	})
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, alarms)
}

func (api *RestApi) listActiveAlarms(rw http.ResponseWriter, r *http.Request) {
	alarms, err := api.Store.ListAlarms(r.Context(), store.AlarmListFilter{ActiveOnly: true})
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, alarms)
}

func (api *RestApi) getAlarm(rw http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	alarm, found, err := api.Store.AlarmByID(r.Context(), id)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	if !found {
		handleError(apierr.NotFoundf("alarm %q not found", id), rw)
		return
	}
	writeJSON(rw, alarm)
}

func (api *RestApi) listStationAlarms(rw http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["idOrName"]
	ctx := r.Context()

	station, found, err := api.Store.ResolveStation(ctx, "", ref)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	if !found {
		handleError(apierr.NotFoundf("station %q not found", ref), rw)
		return
	}

	active, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	alarms, err := api.Store.AlarmsForStation(ctx, station.ID, active)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, alarms)
}
