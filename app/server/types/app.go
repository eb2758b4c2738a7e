package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/ballot"
	"github.com/ballot-network/ballotx/pkg/config"
	"github.com/ballot-network/ballotx/pkg/db/election"
	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/ballot-network/ballotx/pkg/redis"
)

// VoteService accepts ballots and election lifecycle changes.
type VoteService interface {
	Submit(ctx context.Context, req ballot.SubmitRequest) (*ballot.SubmitResult, error)
	SetElectionStatus(ctx context.Context, electionID string, to models.ElectionStatus) (string, error)
}

// IntegrityService produces on-demand integrity reports.
type IntegrityService interface {
	Reconcile(ctx context.Context, electionID string) (*models.IntegrityReport, error)
}

// ElectionStore is the read surface the API needs from the off-chain store.
type ElectionStore interface {
	Ping(ctx context.Context) error
	GetElection(ctx context.Context, electionID string) (*models.Election, error)
	ListElections(ctx context.Context) ([]models.Election, error)
	GetPositions(ctx context.Context, electionID string) ([]models.Position, error)
	GetCandidates(ctx context.Context, electionID string) ([]models.Candidate, error)
	GetVoter(ctx context.Context, voterID string) (*models.Voter, error)
	ListVotes(ctx context.Context, electionID string) ([]models.Vote, error)
	ListAuditEntries(ctx context.Context, electionID string) ([]models.AuditEntry, error)
}

// ReportCache serves previously computed integrity reports.
type ReportCache interface {
	GetReport(ctx context.Context, electionID string) (*models.IntegrityReport, error)
}

type App struct {
	Config *config.Config
	// Store is the off-chain mirror database.
	Store ElectionStore
	// Ballots runs the vote submission saga.
	Ballots VoteService
	// Integrity computes fresh ledger-vs-mirror reports.
	Integrity IntegrityService
	// Cache holds the latest scheduled reports. Nil when Redis is disabled.
	Cache ReportCache
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server

	// ElectionDB keeps the concrete handle for shutdown.
	ElectionDB *election.DB
	// RedisClient keeps the concrete handle for shutdown. Nil when disabled.
	RedisClient *redis.Client
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.ElectionDB != nil {
		a.ElectionDB.Close()
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Server stopped")
}
