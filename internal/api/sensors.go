package api

import (
	"net/http"
	"strconv"

	"github.com/epfl-river/river-backend/internal/apierr"
	"github.com/epfl-river/river-backend/internal/store"
)

func (api *RestApi) listSensors(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))

	filter := store.SensorListFilter{
		StationID:       q.Get("station_id"),
		SensorType:      q.Get("sensor_type"),
		IncludeInactive: includeInactive,
	}

	sensors, err := api.Store.ListSensors(r.Context(), filter)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, sensors)
}
