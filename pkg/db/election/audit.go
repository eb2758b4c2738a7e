package election

import (
	"context"
	"fmt"

	"github.com/ballot-network/ballotx/pkg/db/models"
)

// InsertAuditEntry appends one audit record. There is deliberately no
// update or delete counterpart.
func (db *DB) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, election_id, voter_id, action, tx_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if err := db.Exec(ctx, query, e.ID, e.ElectionID, e.VoterID, e.Action, e.TxID, []byte(e.Details), e.CreatedAt); err != nil {
		return fmt.Errorf("insert audit entry %s: %w", e.ID, err)
	}
	return nil
}

// ListAuditEntries returns the audit trail of an election, most recent
// first.
func (db *DB) ListAuditEntries(ctx context.Context, electionID string) ([]models.AuditEntry, error) {
	query := `
		SELECT id, election_id, voter_id, action, tx_id, details, created_at
		FROM audit_log WHERE election_id = $1
		ORDER BY created_at DESC
	`

	rows, err := db.Query(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries for election %s: %w", electionID, err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.ElectionID, &e.VoterID, &e.Action, &e.TxID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Details = details
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
