package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/sync/semaphore"

	"github.com/epfl-river/river-backend/internal/cache"
	"github.com/epfl-river/river-backend/internal/config"
	"github.com/epfl-river/river-backend/internal/metrics"
	"github.com/epfl-river/river-backend/internal/store"
)

// RestApi holds every collaborator the query-surface handlers need and
// mounts the read-only HTTP surface onto a gorilla/mux router.
type RestApi struct {
	Store *store.Store
	Cache *cache.Cache
	Cfg   *config.Config

	bulkSemaphore *semaphore.Weighted
	metadataLimit *clientLimiters
	dataLimit     *clientLimiters
}

// New builds a RestApi from its collaborators, sizing the bulk semaphore
// and the two rate-limit governors from cfg. Passing DisableRateLimiting
// leaves both governors nil, which rateLimited treats as "always allow".
func New(cfg *config.Config, s *store.Store, c *cache.Cache) *RestApi {
	api := &RestApi{
		Store:         s,
		Cache:         c,
		Cfg:           cfg,
		bulkSemaphore: semaphore.NewWeighted(cfg.BulkConcurrentLimit),
	}
	if !cfg.DisableRateLimiting {
		api.metadataLimit = newClientLimiters(cfg.RateLimitMetadataPerSecond, cfg.RateLimitMetadataBurst)
		api.dataLimit = newClientLimiters(cfg.RateLimitDataPerSecond, cfg.RateLimitDataBurst)
	}
	return api
}

// MountRoutes wires every endpoint in the external-interfaces table. The
// two /healthz and /metrics probes are mounted outside the rate limiters
// and outside the /api prefix, exactly as the ambient stack requires.
func (api *RestApi) MountRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	if api.Cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	sub := r.PathPrefix("/api").Subrouter()
	sub.StrictSlash(true)

	sub.HandleFunc("/zones", rateLimited(api.metadataLimit, api.listZones)).Methods(http.MethodGet)
	sub.HandleFunc("/zones/{idOrName}", rateLimited(api.metadataLimit, api.getZone)).Methods(http.MethodGet)
	sub.HandleFunc("/zones/{idOrName}/stations", rateLimited(api.metadataLimit, api.listZoneStations)).Methods(http.MethodGet)
	sub.HandleFunc("/stations", rateLimited(api.metadataLimit, api.listStations)).Methods(http.MethodGet)
	sub.HandleFunc("/stations/{idOrName}", rateLimited(api.metadataLimit, api.getStation)).Methods(http.MethodGet)
	sub.HandleFunc("/stations/{idOrName}/sensors", rateLimited(api.metadataLimit, api.listStationSensors)).Methods(http.MethodGet)
	sub.HandleFunc("/stations/{idOrName}/readings", rateLimited(api.dataLimit, api.getStationReadings)).Methods(http.MethodGet)
	sub.HandleFunc("/stations/{idOrName}/aggregates/{resolution}", rateLimited(api.dataLimit, api.getStationAggregates)).Methods(http.MethodGet)
	sub.HandleFunc("/sensors", rateLimited(api.metadataLimit, api.listSensors)).Methods(http.MethodGet)
	sub.HandleFunc("/alarms", rateLimited(api.metadataLimit, api.listAlarms)).Methods(http.MethodGet)
	sub.HandleFunc("/alarms/active", rateLimited(api.metadataLimit, api.listActiveAlarms)).Methods(http.MethodGet)
	sub.HandleFunc("/alarms/{id}", rateLimited(api.metadataLimit, api.getAlarm)).Methods(http.MethodGet)
	sub.HandleFunc("/stations/{idOrName}/alarms", rateLimited(api.metadataLimit, api.listStationAlarms)).Methods(http.MethodGet)
	sub.HandleFunc("/events", rateLimited(api.dataLimit, api.listEvents)).Methods(http.MethodGet)
}
