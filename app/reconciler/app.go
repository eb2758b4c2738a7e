package reconciler

import (
	"context"

	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/config"
	"github.com/ballot-network/ballotx/pkg/db/election"
	"github.com/ballot-network/ballotx/pkg/ledger"
	"github.com/ballot-network/ballotx/pkg/logging"
	"github.com/ballot-network/ballotx/pkg/reconcile"
	"github.com/ballot-network/ballotx/pkg/redis"
)

// App is the scheduled integrity reconciler: it sweeps every open
// election on a cron schedule and compares the ledger tally against the
// off-chain mirror.
type App struct {
	Config *config.Config
	Store  *election.DB
	Runner *reconcile.Runner
	Logger *zap.Logger

	redisClient *redis.Client
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	cfg, err := config.New()
	if err != nil {
		logger.Fatal("Unable to load configuration", zap.Error(err))
	}

	electionDb, err := election.New(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to initialize election database", zap.Error(err))
	}

	gateway := ledger.NewGateway(ledger.Opts{
		Endpoints:       cfg.LedgerEndpoints,
		Channel:         cfg.LedgerChannel,
		EvaluateTimeout: cfg.EvaluateTimeout,
		SubmitTimeout:   cfg.SubmitTimeout,
	}, logger)

	engine := reconcile.NewEngine(gateway, electionDb, logger)

	// Without Redis the sweep still runs and logs mismatches; it just has
	// nowhere to cache reports or publish notifications.
	var sink reconcile.ReportSink
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(ctx, logger, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - reports will not be cached", zap.Error(err))
		} else {
			sink = redisClient
		}
	}

	runner := reconcile.NewRunner(engine, electionDb, sink, cfg.ReconcileWorkers, cfg.ReconcileCron, logger)

	return &App{
		Config:      cfg,
		Store:       electionDb,
		Runner:      runner,
		Logger:      logger,
		redisClient: redisClient,
	}
}

// Start runs the scheduler until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	if err := a.Runner.Start(ctx); err != nil {
		a.Logger.Fatal("Unable to start reconciliation scheduler", zap.Error(err))
	}

	<-ctx.Done()

	a.Runner.Stop()
	a.Store.Close()
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	a.Logger.Info("Reconciler stopped")
}
