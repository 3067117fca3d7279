package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string

	// RecordStore selects the durable store backing the idempotency
	// records: postgres, redis, or memory (dev only).
	RecordStore string

	WaitTimeout          time.Duration
	WaitPollInterval     time.Duration
	ExecutorTimeout      time.Duration
	CASRetryLimit        int
	BackoffInitial       time.Duration
	BackoffMax           time.Duration
	ReconcileMaxAttempts int
	ReconcileBatchSize   int
	WorkerPollInterval   time.Duration
	OpsTopic             string

	SimBankAmbiguousRate float64
	SimBankRejectRate    float64
}

func Load() (Config, error) {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "kobo"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	store := strings.TrimSpace(strings.ToLower(os.Getenv("RECORD_STORE")))
	if store == "" {
		store = "postgres"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: brokers,
		RecordStore:  store,

		WaitTimeout:          envDuration("WAIT_TIMEOUT", 5*time.Second),
		WaitPollInterval:     envDuration("WAIT_POLL_INTERVAL", 100*time.Millisecond),
		ExecutorTimeout:      envDuration("EXECUTOR_TIMEOUT", 10*time.Second),
		CASRetryLimit:        envInt("CAS_RETRY_LIMIT", 5),
		BackoffInitial:       envDuration("RECONCILE_BACKOFF_INITIAL", 30*time.Second),
		BackoffMax:           envDuration("RECONCILE_BACKOFF_MAX", 15*time.Minute),
		ReconcileMaxAttempts: envInt("RECONCILE_MAX_ATTEMPTS", 10),
		ReconcileBatchSize:   envInt("RECONCILE_BATCH_SIZE", 100),
		WorkerPollInterval:   envDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		OpsTopic:             envString("OPS_TOPIC", "disbursement.ops.unknown"),

		SimBankAmbiguousRate: envFloat("SIMBANK_AMBIGUOUS_RATE", 0.2),
		SimBankRejectRate:    envFloat("SIMBANK_REJECT_RATE", 0.05),
	}, nil
}

func envString(name string, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
