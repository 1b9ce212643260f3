package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/epfl-river/river-backend/internal/api"
	"github.com/epfl-river/river-backend/internal/cache"
	"github.com/epfl-river/river-backend/internal/config"
	"github.com/epfl-river/river-backend/internal/eventbus"
	"github.com/epfl-river/river-backend/internal/store"
	syncengine "github.com/epfl-river/river-backend/internal/sync"
	"github.com/epfl-river/river-backend/internal/upstream"
	"github.com/epfl-river/river-backend/pkg/log"
)

func main() {
	var flagGops bool
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("loading configuration: %s", err.Error())
	}
	log.SetLogLevel(cfg.LogLevel)

	if flagGops || cfg.GopsAgent {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	st, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connecting to database: %s", err.Error())
	}

	upstreamClient := upstream.New(cfg.VaisalaBaseURL, cfg.VaisalaBearerToken, cfg.VaisalaSkipTLSVerify)
	respCache := cache.New(st, int(cfg.CacheMaxBytes), time.Duration(cfg.CacheTTLSeconds)*time.Second)

	bus, err := eventbus.Connect(cfg.EventBusURL)
	if err != nil {
		log.Fatalf("connecting to event bus: %s", err.Error())
	}
	defer bus.Close()

	engine, err := syncengine.New(cfg, st, upstreamClient, respCache, bus)
	if err != nil {
		log.Fatalf("initializing sync engine: %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("starting sync engine: %s", err.Error())
	}

	restApi := api.New(cfg, st, respCache)

	router := mux.NewRouter()
	restApi.MountRoutes(router)

	router.Use(handlers.CompressHandler)
	router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	router.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization", "Origin"}),
		handlers.AllowedMethods([]string{"GET", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"})))

	loggedRouter := handlers.CustomLoggingHandler(io.Discard, router, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Infof("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})

	server := &http.Server{
		Addr:         cfg.BindAddress(),
		Handler:      loggedRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // bulk CSV/NDJSON streams can run long; the semaphore bounds concurrency instead
	}

	listener, err := net.Listen("tcp", cfg.BindAddress())
	if err != nil {
		log.Fatalf("binding %s: %s", cfg.BindAddress(), err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("river-backend listening at %s (deployment=%s)", cfg.BindAddress(), cfg.Deployment)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serving: %s", err.Error())
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("shutting down...")

	if err := engine.Shutdown(); err != nil {
		log.Warnf("shutting down sync engine: %s", err.Error())
	}
	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Warnf("shutting down http server: %s", err.Error())
	}
	wg.Wait()
}
