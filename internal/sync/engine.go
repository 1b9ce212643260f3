// Package sync is the ingestion engine: a one-shot hierarchy discovery
// step followed by four independent schedulers (readings, device status,
// alarms, events), each on its own interval. Only the readings scheduler
// retries a failed upstream fetch within a tick (fetchHistoryWithRetry);
// the other three return the error and run again on their next tick.
package sync

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/epfl-river/river-backend/internal/cache"
	"github.com/epfl-river/river-backend/internal/config"
	"github.com/epfl-river/river-backend/internal/metrics"
	"github.com/epfl-river/river-backend/internal/store"
	"github.com/epfl-river/river-backend/internal/upstream"
	"github.com/epfl-river/river-backend/pkg/log"
	"github.com/epfl-river/river-backend/pkg/schema"
)

// TickPublisher is the optional event-notification sink; the sync engine
// calls it after every scheduler tick. A nil Engine.events disables this
// entirely, the same way the teacher's task manager skips notification
// when no webhook is configured.
type TickPublisher interface {
	PublishTick(stream, outcome string, rows int, duration time.Duration)
}

// Engine owns the store and upstream client handles every scheduler
// shares, plus the scheduler itself and the shared cache invalidation
// hook.
type Engine struct {
	store    *store.Store
	upstream *upstream.Client
	cache    *cache.Cache
	events   TickPublisher
	cfg      *config.Config

	scheduler gocron.Scheduler
}

// New wires an Engine from its already-constructed dependencies. c and
// events may be nil; a nil TickPublisher simply means ticks are not
// reported anywhere.
func New(cfg *config.Config, s *store.Store, up *upstream.Client, c *cache.Cache, events TickPublisher) (*Engine, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:     s,
		upstream:  up,
		cache:     c,
		events:    events,
		cfg:       cfg,
		scheduler: sched,
	}, nil
}

// noOpPatch returns a schema.SyncStatePatch with every field nil, which
// UpsertSyncState treats as "seed the row if absent, touch nothing else".
func noOpPatch() schema.SyncStatePatch {
	return schema.SyncStatePatch{}
}

// Start registers the four schedulers and begins running them, after
// running one synchronous Discover pass so the first scheduled tick has
// a populated hierarchy to work from.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Discover(ctx); err != nil {
		log.Errorf("sync: initial discovery failed, schedulers will still start: %v", err)
	}

	jobs := []struct {
		name     string
		interval time.Duration
		task     func(context.Context) (int, error)
	}{
		{"readings", time.Duration(e.cfg.SyncReadingsIntervalSeconds) * time.Second, e.syncReadings},
		{"device_status", time.Duration(e.cfg.SyncDeviceStatusIntervalSeconds) * time.Second, e.syncDeviceStatus},
		{"alarms", time.Duration(e.cfg.SyncAlarmsIntervalSeconds) * time.Second, e.syncAlarms},
		{"events", time.Duration(e.cfg.SyncEventsIntervalSeconds) * time.Second, e.syncEvents},
	}

	for _, j := range jobs {
		j := j
		_, err := e.scheduler.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() {
				if ctx.Err() != nil {
					return
				}
				start := time.Now()
				rows, err := j.task(ctx)
				elapsed := time.Since(start)
				outcome := "success"
				if err != nil {
					outcome = "error"
					log.Errorf("sync: %s tick failed: %v", j.name, err)
				}
				metrics.RecordSyncTick(j.name, outcome, rows, elapsed.Seconds())
				if e.events != nil {
					e.events.PublishTick(j.name, outcome, rows, elapsed)
				}
			}),
		)
		if err != nil {
			return err
		}
	}

	e.scheduler.Start()
	return nil
}

// Shutdown stops the scheduler, waiting for any in-flight tick to finish.
func (e *Engine) Shutdown() error {
	return e.scheduler.Shutdown()
}
