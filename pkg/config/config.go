package config

import (
	"errors"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config carries the service configuration. Every field can be set through
// the environment; a .env file in the working directory is loaded first
// when present.
type Config struct {
	Addr        string `env:"ADDR" env-default:":3001"`
	DatabaseURL string `env:"POSTGRES_URL" env-default:"postgres://localhost:5432/ballotx"`

	// LedgerEndpoints is a comma-separated list of gateway base URLs.
	LedgerEndpoints []string      `env:"LEDGER_ENDPOINTS" env-default:"http://localhost:50051"`
	LedgerChannel   string        `env:"LEDGER_CHANNEL" env-default:"election-channel"`
	EvaluateTimeout time.Duration `env:"LEDGER_EVALUATE_TIMEOUT" env-default:"5s"`
	SubmitTimeout   time.Duration `env:"LEDGER_SUBMIT_TIMEOUT" env-default:"30s"`

	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// ReconcileCron uses the six-field spec (with seconds).
	ReconcileCron string `env:"RECONCILE_CRON" env-default:"0 */5 * * * *"`
	// ReconcileWorkers bounds concurrent per-election integrity runs.
	ReconcileWorkers int `env:"RECONCILE_WORKERS" env-default:"4"`
}

func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
