package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"timevault/internal/auth"
	"timevault/internal/ledger/cache"
	"timevault/internal/ledger/events"
	"timevault/internal/ledger/handler"
	"timevault/internal/ledger/metrics"
	"timevault/internal/ledger/service"
	"timevault/internal/ledger/store"
	memorystore "timevault/internal/ledger/store/memory"
	postgresstore "timevault/internal/ledger/store/postgres"
	"timevault/internal/platform/config"
	"timevault/internal/platform/httpserver"
	"timevault/internal/platform/logger"
	platformredis "timevault/internal/platform/redis"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/ledger packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var ledgerStore store.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgresstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		ledgerStore = pg
	} else {
		log.Warn("no database configured, ledger state is in-memory only")
		ledgerStore = memorystore.New()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka publisher setup failed", "error", err)
			os.Exit(1)
		}
		publisher = kafka
	}
	defer publisher.Close()

	var capsuleCache *cache.CapsuleCache
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		capsuleCache = cache.New(redisClient.Client, config.CapsuleCacheTTL)
	}

	svc := service.New(ledgerStore,
		service.WithPublisher(publisher),
		service.WithMetrics(metrics.New()),
		service.WithLogger(log),
	)

	tokens := auth.NewManager(cfg.JWTSigningKey, cfg.TokenTTL)
	router := handler.NewRouter(handler.New(svc, tokens, capsuleCache, log))
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting timevault", "addr", cfg.Addr)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("timevault stopped")
}
