package models

import "time"

// AbstainCandidateID is the reserved candidate value for a deliberate
// non-choice. Abstentions are stored with the ballot but excluded from
// tallies on both stores.
const AbstainCandidateID = "ABSTAIN"

// Selection is one {position, candidate} pair of a ballot.
type Selection struct {
	PositionID  string `json:"positionId"`
	CandidateID string `json:"candidateId"`
}

// IsAbstain reports whether the selection is a deliberate non-choice.
func (s Selection) IsAbstain() bool { return s.CandidateID == AbstainCandidateID }

// Vote is the off-chain mirror of a confirmed ledger vote. It is created
// only after the ledger write commits, never mutated, and deleted only
// as part of compensation.
type Vote struct {
	ID         string      `db:"id" json:"id"`
	ElectionID string      `db:"election_id" json:"electionId"`
	VoterID    string      `db:"voter_id" json:"voterId"`
	Selections []Selection `db:"selections" json:"selections"`
	TxID       string      `db:"tx_id" json:"txId"`
	CastAt     time.Time   `db:"cast_at" json:"castAt"`
}
