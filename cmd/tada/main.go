// Command tada runs the event pipeline runtime: it loads pipeline
// definitions, decodes on-chain transaction envelopes handed to it by an
// upstream source, and filters/transforms/delivers matching events to
// each pipeline's destinations.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wnt/tada/internal/config"
	"github.com/wnt/tada/internal/decoder"
	"github.com/wnt/tada/internal/dedupe"
	"github.com/wnt/tada/internal/dispatcher"
	"github.com/wnt/tada/internal/logger"
	"github.com/wnt/tada/internal/orchestrator"
	"github.com/wnt/tada/internal/pipelineindex"
	"github.com/wnt/tada/internal/pipelinestore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			bootLog := zerolog.New(os.Stderr)
			bootLog.Warn().Err(err).Msg("failed to load .env file")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("tada exited with error")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	index := pipelineindex.New()

	store, err := pipelinestore.Connect(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.WarmStart(index); err != nil {
		return err
	}
	log.Info().Int("pipelines", len(index.All())).Msg("pipeline index warm-started")

	dedupClient, err := dedupe.NewClient(cfg.RedisURL, "tada:dedupe", 10*time.Minute, log)
	if err != nil {
		return err
	}
	defer dedupClient.Close()

	registry := decoder.Default(log)

	var realtime dispatcher.RealtimeBackend = dispatcher.NewLocalBus(256)
	if cfg.RealtimeBackend == "nats" {
		nb, err := dispatcher.NewNATSBroadcaster(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		defer nb.Close()
		realtime = nb
	}

	hostPool := dispatcher.NewHostPool(log)
	dispatch := dispatcher.NewDispatcher(hostPool, realtime, log)

	manager := orchestrator.NewManager(cfg, registry, index, dispatch, dedupClient, log)
	if err := manager.Start(); err != nil {
		return err
	}
	defer manager.Stop()

	wsHandler := dispatcher.NewWSHandler(realtime, log)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/realtime/", func(w http.ResponseWriter, r *http.Request) {
		topic := strings.TrimPrefix(r.URL.Path, "/realtime/")
		wsHandler.ServeHTTP(w, r, topic)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: mux,
	}

	eg, egCtx := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("metrics/realtime server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sigCtx, stop := signal.NotifyContext(egCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics/realtime server shutdown error")
	}

	return eg.Wait()
}
