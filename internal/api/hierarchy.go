package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/epfl-river/river-backend/internal/apierr"
	"github.com/epfl-river/river-backend/internal/store"
	"github.com/epfl-river/river-backend/pkg/schema"
)

func (api *RestApi) listZones(rw http.ResponseWriter, r *http.Request) {
	zones, err := api.Store.ListZones(r.Context())
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, zones)
}

func (api *RestApi) getZone(rw http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["idOrName"]
	zone, found, err := api.Store.ResolveZone(r.Context(), ref)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	if !found {
		handleError(apierr.NotFoundf("zone %q not found", ref), rw)
		return
	}
	writeJSON(rw, zone)
}

func (api *RestApi) listZoneStations(rw http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["idOrName"]
	zone, found, err := api.Store.ResolveZone(r.Context(), ref)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	if !found {
		handleError(apierr.NotFoundf("zone %q not found", ref), rw)
		return
	}

	stations, err := api.Store.ListStations(r.Context(), zone.ID)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, stations)
}

func (api *RestApi) listStations(rw http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zone_id")
	stations, err := api.Store.ListStations(r.Context(), zoneID)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, stations)
}

// stationDetail is the station endpoint's response shape: the station
// itself, its zone (if any), its active sensors, and the (min, max, count)
// summary of its readings, so a client can learn the data bounds without
// a separate readings call.
type stationDetail struct {
	schema.Station
	Zone         *schema.Zone     `json:"zone,omitempty"`
	Sensors      []schema.Sensor  `json:"sensors"`
	DataMinTime  *string          `json:"data_min_time,omitempty"`
	DataMaxTime  *string          `json:"data_max_time,omitempty"`
	DataCount    int64            `json:"data_count"`
}

func (api *RestApi) getStation(rw http.ResponseWriter, r *http.Request) {
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

	detail := stationDetail{Station: station}

	if station.ZoneID != nil {
		zone, found, err := api.Store.ResolveZone(ctx, *station.ZoneID)
		if err != nil {
			handleError(apierr.Db(err), rw)
			return
		}
		if found {
			detail.Zone = &zone
		}
	}

	sensors, err := api.Store.StationSensors(ctx, station.ID, store.SensorFilter{ActiveOnly: true})
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	detail.Sensors = sensors

	rng, err := api.Store.StationDataRange(ctx, station.ID)
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	detail.DataCount = rng.Count
	if rng.MinTime.Valid {
		s := rng.MinTime.Time.UTC().Format("2006-01-02T15:04:05Z")
		detail.DataMinTime = &s
	}
	if rng.MaxTime.Valid {
		s := rng.MaxTime.Time.UTC().Format("2006-01-02T15:04:05Z")
		detail.DataMaxTime = &s
	}

	writeJSON(rw, detail)
}

func (api *RestApi) listStationSensors(rw http.ResponseWriter, r *http.Request) {
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

	sensors, err := api.Store.StationSensors(ctx, station.ID, store.SensorFilter{ActiveOnly: true})
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}
	writeJSON(rw, sensors)
}
