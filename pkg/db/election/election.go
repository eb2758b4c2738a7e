package election

import (
	"context"
	"fmt"

	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/ballot-network/ballotx/pkg/db/postgres"
)

// GetElection fetches one election.
func (db *DB) GetElection(ctx context.Context, electionID string) (*models.Election, error) {
	query := `
		SELECT id, name, description, starts_at, ends_at, status, created_by, created_at
		FROM elections WHERE id = $1
	`

	var e models.Election
	err := db.QueryRow(ctx, query, electionID).Scan(
		&e.ID, &e.Name, &e.Description, &e.StartsAt, &e.EndsAt, &e.Status, &e.CreatedBy, &e.CreatedAt,
	)
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get election %s: %w", electionID, err)
	}
	return &e, nil
}

// ListElections returns all elections, newest first.
func (db *DB) ListElections(ctx context.Context) ([]models.Election, error) {
	return db.listElections(ctx, `
		SELECT id, name, description, starts_at, ends_at, status, created_by, created_at
		FROM elections ORDER BY created_at DESC
	`)
}

// ListElectionsByStatus returns all elections in the given lifecycle
// state, newest first.
func (db *DB) ListElectionsByStatus(ctx context.Context, status models.ElectionStatus) ([]models.Election, error) {
	return db.listElections(ctx, `
		SELECT id, name, description, starts_at, ends_at, status, created_by, created_at
		FROM elections WHERE status = $1 ORDER BY created_at DESC
	`, status)
}

func (db *DB) listElections(ctx context.Context, query string, args ...any) ([]models.Election, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	var elections []models.Election
	for rows.Next() {
		var e models.Election
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.StartsAt, &e.EndsAt, &e.Status, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		elections = append(elections, e)
	}
	return elections, rows.Err()
}

// UpsertElection creates or updates election metadata. Lifecycle status
// is excluded: status moves only through UpdateElectionStatus.
func (db *DB) UpsertElection(ctx context.Context, e *models.Election) error {
	query := `
		INSERT INTO elections (id, name, description, starts_at, ends_at, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at
	`
	if err := db.Exec(ctx, query, e.ID, e.Name, e.Description, e.StartsAt, e.EndsAt, e.Status, e.CreatedBy, e.CreatedAt); err != nil {
		return fmt.Errorf("upsert election %s: %w", e.ID, err)
	}
	return nil
}

// UpdateElectionStatus moves an election's lifecycle state. The WHERE
// clause pins the expected current status, so a concurrent transition
// loses cleanly instead of overwriting. Returns false when the election
// was not in the expected state.
func (db *DB) UpdateElectionStatus(ctx context.Context, electionID string, from, to models.ElectionStatus) (bool, error) {
	query := `
		UPDATE elections SET status = $3
		WHERE id = $1 AND status = $2
	`

	tag, err := db.ExecTag(ctx, query, electionID, from, to)
	if err != nil {
		return false, fmt.Errorf("update election %s status: %w", electionID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetPositions returns the positions of an election in display order.
func (db *DB) GetPositions(ctx context.Context, electionID string) ([]models.Position, error) {
	query := `
		SELECT id, election_id, name, max_votes, department, display_order
		FROM positions WHERE election_id = $1
		ORDER BY display_order ASC
	`

	rows, err := db.Query(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("get positions for election %s: %w", electionID, err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.ElectionID, &p.Name, &p.MaxVotes, &p.Department, &p.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetCandidates returns the candidates of an election.
func (db *DB) GetCandidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	query := `
		SELECT id, position_id, election_id, name, party, program, year
		FROM candidates WHERE election_id = $1
		ORDER BY name ASC
	`

	rows, err := db.Query(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("get candidates for election %s: %w", electionID, err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.PositionID, &c.ElectionID, &c.Name, &c.Party, &c.Program, &c.Year); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
