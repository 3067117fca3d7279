package disbursementengine

import (
	"log/slog"
	"time"

	httpadapter "kobo/contexts/payments-core/disbursement-engine/adapters/http"
	"kobo/contexts/payments-core/disbursement-engine/adapters/memory"
	"kobo/contexts/payments-core/disbursement-engine/adapters/simbank"
	"kobo/contexts/payments-core/disbursement-engine/application"
	"kobo/contexts/payments-core/disbursement-engine/ports"
	"kobo/internal/shared/backoff"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Records          ports.RecordStore
	Transport        ports.TransportClient
	Outbox           ports.OutboxWriter
	Clock            ports.Clock
	IDGenerator      ports.IDGenerator
	Backoff          backoff.Strategy
	WaitTimeout      time.Duration
	WaitPollInterval time.Duration
	ExecutorTimeout  time.Duration
	CASRetryLimit    int
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Records: deps.Records,
		Executor: application.Executor{
			Transport: deps.Transport,
			Timeout:   deps.ExecutorTimeout,
			Logger:    deps.Logger,
		},
		Outbox:           deps.Outbox,
		Clock:            deps.Clock,
		IDGen:            deps.IDGenerator,
		Backoff:          deps.Backoff,
		WaitTimeout:      deps.WaitTimeout,
		WaitPollInterval: deps.WaitPollInterval,
		CASRetryLimit:    deps.CASRetryLimit,
		Logger:           deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires the engine against the in-memory record store
// and the simulated bank switch, for tests and local development.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Records:     store,
		Transport:   simbank.NewClient(0.2, 0.05, logger),
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Backoff:     backoff.NewExponentialWithJitter(30*time.Second, 15*time.Minute),
		Logger:      logger,
	})
	module.Store = store
	return module
}
