package election

import (
	"context"
	"fmt"
	"time"

	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/ballot-network/ballotx/pkg/db/postgres"
)

// GetVoter fetches one eligibility record.
func (db *DB) GetVoter(ctx context.Context, voterID string) (*models.Voter, error) {
	query := `
		SELECT id, email, department, enrolled, eligible, has_voted, voted_at
		FROM voters WHERE id = $1
	`

	var v models.Voter
	err := db.QueryRow(ctx, query, voterID).Scan(
		&v.ID, &v.Email, &v.Department, &v.Enrolled, &v.Eligible, &v.HasVoted, &v.VotedAt,
	)
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get voter %s: %w", voterID, err)
	}
	return &v, nil
}

// UpsertVoter creates or replaces an eligibility record. Used by roster
// loading, never by the submission path.
func (db *DB) UpsertVoter(ctx context.Context, v *models.Voter) error {
	query := `
		INSERT INTO voters (id, email, department, enrolled, eligible, has_voted, voted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			department = EXCLUDED.department,
			enrolled = EXCLUDED.enrolled,
			eligible = EXCLUDED.eligible
	`
	if err := db.Exec(ctx, query, v.ID, v.Email, v.Department, v.Enrolled, v.Eligible, v.HasVoted, v.VotedAt); err != nil {
		return fmt.Errorf("upsert voter %s: %w", v.ID, err)
	}
	return nil
}

// ClaimVoter flips the has_voted gate. The WHERE clause makes this a
// compare-and-set: of two concurrent claims for the same voter exactly
// one sees has_voted = false and wins. Returns false when the gate was
// already taken.
func (db *DB) ClaimVoter(ctx context.Context, voterID string, at time.Time) (bool, error) {
	query := `
		UPDATE voters SET has_voted = true, voted_at = $2
		WHERE id = $1 AND has_voted = false
	`

	tag, err := db.ExecTag(ctx, query, voterID, at)
	if err != nil {
		return false, fmt.Errorf("claim voter %s: %w", voterID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseVoter reverts the has_voted gate. This is the compensation
// write paired with ClaimVoter when the ledger write fails.
func (db *DB) ReleaseVoter(ctx context.Context, voterID string) error {
	query := `
		UPDATE voters SET has_voted = false, voted_at = NULL
		WHERE id = $1
	`
	if err := db.Exec(ctx, query, voterID); err != nil {
		return fmt.Errorf("release voter %s: %w", voterID, err)
	}
	return nil
}
