package election

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ballot-network/ballotx/pkg/db/postgres"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DB is the off-chain relational store: voter eligibility, vote mirrors,
// audit trail, and election metadata.
type DB struct {
	postgres.Client
}

// New connects to the store and ensures the schema exists.
func New(ctx context.Context, logger *zap.Logger, dbURL string, poolConfig ...*postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("db", "election")), dbURL, poolConfig...)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}

	if err := db.InitializeDB(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// InitializeDB ensures the required tables exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	inits := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"elections", db.initElections},
		{"positions", db.initPositions},
		{"candidates", db.initCandidates},
		{"voters", db.initVoters},
		{"votes", db.initVotes},
		{"audit_log", db.initAuditLog},
	}

	for _, init := range inits {
		if err := init.fn(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", init.name, err)
		}
	}

	db.Logger.Info("Election database initialized",
		zap.Duration("took", time.Since(initStart)))

	return nil
}

func (db *DB) initElections(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS elections (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT DEFAULT '',
			starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
			ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
			status TEXT NOT NULL DEFAULT 'DRAFT',
			created_by TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_elections_status ON elections(status);
	`
	return db.Exec(ctx, query)
}

func (db *DB) initPositions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			election_id TEXT NOT NULL REFERENCES elections(id),
			name TEXT NOT NULL,
			max_votes INTEGER NOT NULL DEFAULT 1,
			department TEXT DEFAULT '',
			display_order INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_positions_election ON positions(election_id);
	`
	return db.Exec(ctx, query)
}

func (db *DB) initCandidates(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			position_id TEXT NOT NULL REFERENCES positions(id),
			election_id TEXT NOT NULL REFERENCES elections(id),
			name TEXT NOT NULL,
			party TEXT DEFAULT '',
			program TEXT DEFAULT '',
			year TEXT DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_candidates_election ON candidates(election_id);
		CREATE INDEX IF NOT EXISTS idx_candidates_position ON candidates(position_id);
	`
	return db.Exec(ctx, query)
}

func (db *DB) initVoters(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS voters (
			id TEXT PRIMARY KEY,
			email TEXT DEFAULT '',
			department TEXT DEFAULT '',
			enrolled BOOLEAN NOT NULL DEFAULT false,
			eligible BOOLEAN NOT NULL DEFAULT false,
			has_voted BOOLEAN NOT NULL DEFAULT false,
			voted_at TIMESTAMP WITH TIME ZONE
		);
	`
	return db.Exec(ctx, query)
}

func (db *DB) initVotes(ctx context.Context) error {
	// The UNIQUE constraint on (election_id, voter_id) is a second line
	// of defense behind the has_voted gate.
	query := `
		CREATE TABLE IF NOT EXISTS votes (
			id TEXT PRIMARY KEY,
			election_id TEXT NOT NULL REFERENCES elections(id),
			voter_id TEXT NOT NULL REFERENCES voters(id),
			selections JSONB NOT NULL DEFAULT '[]',
			tx_id TEXT NOT NULL,
			cast_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			UNIQUE (election_id, voter_id)
		);

		CREATE INDEX IF NOT EXISTS idx_votes_election ON votes(election_id);
		CREATE INDEX IF NOT EXISTS idx_votes_tx ON votes(tx_id);
	`
	return db.Exec(ctx, query)
}

func (db *DB) initAuditLog(ctx context.Context) error {
	// Append-only: rows are only ever inserted.
	query := `
		CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			election_id TEXT NOT NULL,
			voter_id TEXT DEFAULT '',
			action TEXT NOT NULL,
			tx_id TEXT DEFAULT '',
			details JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_audit_election ON audit_log(election_id);
		CREATE INDEX IF NOT EXISTS idx_audit_tx ON audit_log(tx_id);
	`
	return db.Exec(ctx, query)
}
