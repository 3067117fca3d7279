package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	disbursementengine "kobo/contexts/payments-core/disbursement-engine"
	"kobo/contexts/payments-core/disbursement-engine/adapters/memory"
	"kobo/contexts/payments-core/disbursement-engine/adapters/ops"
	postgresadapter "kobo/contexts/payments-core/disbursement-engine/adapters/postgres"
	redisadapter "kobo/contexts/payments-core/disbursement-engine/adapters/redis"
	"kobo/contexts/payments-core/disbursement-engine/adapters/simbank"
	workerapp "kobo/contexts/payments-core/disbursement-engine/application/workers"
	"kobo/contexts/payments-core/disbursement-engine/ports"
	"kobo/internal/platform/config"
	"kobo/internal/platform/db"
	"kobo/internal/platform/httpserver"
	"kobo/internal/platform/messaging"
	"kobo/internal/shared/backoff"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	redis    *goredis.Client
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	redis        *goredis.Client
	kafka        *messaging.Kafka
	reconciler   workerapp.Reconciler
	outboxRelay  *workerapp.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

// storeSet bundles the adapters a chosen record store backend provides.
// Only postgres and memory back the transactional outbox; with redis the
// outbox ports stay nil and lifecycle events are not emitted.
type storeSet struct {
	records    ports.RecordStore
	outbox     ports.OutboxWriter
	outboxRepo ports.OutboxRepository
	postgres   *db.Postgres
	redis      *goredis.Client
}

func buildStores(cfg config.Config, logger *slog.Logger) (storeSet, error) {
	switch cfg.RecordStore {
	case "memory":
		store := memory.NewStore()
		return storeSet{records: store, outbox: store, outboxRepo: store}, nil
	case "redis":
		client, err := db.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			return storeSet{}, err
		}
		return storeSet{
			records: redisadapter.NewStore(client, logger),
			redis:   client,
		}, nil
	case "postgres":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return storeSet{}, fmt.Errorf("POSTGRES_DSN is required for record store %q", cfg.RecordStore)
		}
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return storeSet{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		return storeSet{records: repo, outbox: repo, outboxRepo: repo, postgres: pg}, nil
	default:
		return storeSet{}, fmt.Errorf("unsupported record store %q", cfg.RecordStore)
	}
}

func buildModule(cfg config.Config, stores storeSet, transport ports.TransportClient, logger *slog.Logger) disbursementengine.Module {
	return disbursementengine.NewModule(disbursementengine.Dependencies{
		Records:          stores.records,
		Transport:        transport,
		Outbox:           stores.outbox,
		Clock:            postgresadapter.SystemClock{},
		IDGenerator:      postgresadapter.UUIDGenerator{},
		Backoff:          backoff.NewExponentialWithJitter(cfg.BackoffInitial, cfg.BackoffMax),
		WaitTimeout:      cfg.WaitTimeout,
		WaitPollInterval: cfg.WaitPollInterval,
		ExecutorTimeout:  cfg.ExecutorTimeout,
		CASRetryLimit:    cfg.CASRetryLimit,
		Logger:           logger,
	})
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	stores, err := buildStores(cfg, logger)
	if err != nil {
		return nil, err
	}

	transport := simbank.NewClient(cfg.SimBankAmbiguousRate, cfg.SimBankRejectRate, logger)
	module := buildModule(cfg, stores, transport, logger)

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: stores.postgres,
		redis:    stores.redis,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	stores, err := buildStores(cfg, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	transport := simbank.NewClient(cfg.SimBankAmbiguousRate, cfg.SimBankRejectRate, logger)

	app := &WorkerApp{
		postgres: stores.postgres,
		redis:    stores.redis,
		kafka:    kafka,
		reconciler: workerapp.Reconciler{
			Records:   stores.records,
			Transport: transport,
			Sink: ops.PublisherSink{
				Publisher: kafka,
				IDGen:     postgresadapter.UUIDGenerator{},
				Topic:     cfg.OpsTopic,
				Logger:    logger,
			},
			Outbox:      stores.outbox,
			Clock:       postgresadapter.SystemClock{},
			IDGen:       postgresadapter.UUIDGenerator{},
			Backoff:     backoff.NewExponentialWithJitter(cfg.BackoffInitial, cfg.BackoffMax),
			MaxAttempts: cfg.ReconcileMaxAttempts,
			BatchSize:   cfg.ReconcileBatchSize,
			Logger:      logger,
		},
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}
	if stores.outboxRepo != nil {
		app.outboxRelay = &workerapp.OutboxRelay{
			Outbox:    stores.outboxRepo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.ReconcileBatchSize,
			Logger:    logger,
		}
	}
	return app, nil
}

func (a *APIApp) Run(_ context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.runLoop(ctx, w.reconciler.RunOnce)
	})
	if w.outboxRelay != nil {
		relay := w.outboxRelay
		g.Go(func() error {
			return w.runLoop(ctx, relay.RunOnce)
		})
	}
	return g.Wait()
}

func (w *WorkerApp) runLoop(ctx context.Context, step func(context.Context) error) error {
	interval := w.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := step(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.kafka != nil {
		_ = w.kafka.Close()
	}
	if w.redis != nil {
		_ = w.redis.Close()
	}
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
