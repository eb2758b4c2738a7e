package models

import "time"

// Voter is the off-chain eligibility record. HasVoted is the optimistic
// single-writer gate: it is flipped before the ledger write and reverted
// by compensation if that write fails, so it must be true exactly when a
// confirmed vote record exists.
type Voter struct {
	ID         string     `db:"id" json:"id"`
	Email      string     `db:"email" json:"email"`
	Department string     `db:"department" json:"department"`
	Enrolled   bool       `db:"enrolled" json:"enrolled"`
	Eligible   bool       `db:"eligible" json:"eligible"`
	HasVoted   bool       `db:"has_voted" json:"hasVoted"`
	VotedAt    *time.Time `db:"voted_at" json:"votedAt,omitempty"`
}
