package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/app/server/types"
	"github.com/ballot-network/ballotx/pkg/audit"
	"github.com/ballot-network/ballotx/pkg/ballot"
	"github.com/ballot-network/ballotx/pkg/config"
	"github.com/ballot-network/ballotx/pkg/db/election"
	"github.com/ballot-network/ballotx/pkg/ledger"
	"github.com/ballot-network/ballotx/pkg/logging"
	"github.com/ballot-network/ballotx/pkg/reconcile"
	"github.com/ballot-network/ballotx/pkg/redis"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
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

	recorder := audit.NewRecorder(electionDb, logger)
	orchestrator := ballot.New(electionDb, gateway, recorder, logger)
	engine := reconcile.NewEngine(gateway, electionDb, logger)

	app := &types.App{
		Config:     cfg,
		Store:      electionDb,
		Ballots:    orchestrator,
		Integrity:  engine,
		Logger:     logger,
		ElectionDB: electionDb,
	}

	// Redis serves cached integrity reports when available (optional).
	if cfg.RedisEnabled {
		redisClient, redisErr := redis.NewClient(ctx, logger, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if redisErr != nil {
			logger.Warn("Failed to initialize Redis client - cached integrity reports will be disabled",
				zap.Error(redisErr))
		} else {
			app.Cache = redisClient
			app.RedisClient = redisClient
		}
	} else {
		logger.Info("Redis disabled - integrity reports are always computed on demand")
	}

	return app
}
