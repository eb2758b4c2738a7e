package election

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ballot-network/ballotx/pkg/db/models"
)

// InsertVote persists the off-chain mirror of a confirmed ledger vote.
func (db *DB) InsertVote(ctx context.Context, v *models.Vote) error {
	selections, err := json.Marshal(v.Selections)
	if err != nil {
		return fmt.Errorf("marshal selections for vote %s: %w", v.ID, err)
	}

	query := `
		INSERT INTO votes (id, election_id, voter_id, selections, tx_id, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if err := db.Exec(ctx, query, v.ID, v.ElectionID, v.VoterID, selections, v.TxID, v.CastAt); err != nil {
		return fmt.Errorf("insert vote %s: %w", v.ID, err)
	}
	return nil
}

// ListVotes returns every vote record for an election, oldest first.
func (db *DB) ListVotes(ctx context.Context, electionID string) ([]models.Vote, error) {
	query := `
		SELECT id, election_id, voter_id, selections, tx_id, cast_at
		FROM votes WHERE election_id = $1
		ORDER BY cast_at ASC
	`

	rows, err := db.Query(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("list votes for election %s: %w", electionID, err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		var selections []byte
		if err := rows.Scan(&v.ID, &v.ElectionID, &v.VoterID, &selections, &v.TxID, &v.CastAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if err := json.Unmarshal(selections, &v.Selections); err != nil {
			return nil, fmt.Errorf("unmarshal selections for vote %s: %w", v.ID, err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// CountVotesMissingAudit counts vote records whose transaction id has no
// matching audit entry. A non-zero count means the audit trail is
// incomplete for the election.
func (db *DB) CountVotesMissingAudit(ctx context.Context, electionID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM votes v
		WHERE v.election_id = $1
		AND NOT EXISTS (
			SELECT 1 FROM audit_log a WHERE a.tx_id = v.tx_id
		)
	`

	var count int
	if err := db.QueryRow(ctx, query, electionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count votes missing audit for election %s: %w", electionID, err)
	}
	return count, nil
}
