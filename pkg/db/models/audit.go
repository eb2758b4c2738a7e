package models

import (
	"encoding/json"
	"time"
)

// Audit action tags.
const (
	ActionCastVote          = "CAST_VOTE"
	ActionOpenElection      = "OPEN_ELECTION"
	ActionCloseElection     = "CLOSE_ELECTION"
	ActionUpdateElection    = "UPDATE_ELECTION"
	ActionRegisterCandidate = "REGISTER_CANDIDATE"
)

// AuditEntry is one append-only record of a state-changing action,
// linking the ledger transaction id to the triggering payload. Entries
// are never updated or deleted once written.
type AuditEntry struct {
	ID         string          `db:"id" json:"id"`
	ElectionID string          `db:"election_id" json:"electionId"`
	VoterID    string          `db:"voter_id" json:"voterId,omitempty"`
	Action     string          `db:"action" json:"action"`
	TxID       string          `db:"tx_id" json:"txId,omitempty"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}
