package models

import "time"

// ElectionStatus is the lifecycle state of an election. Transitions are
// monotonic: DRAFT -> OPEN -> CLOSED, never backwards.
type ElectionStatus string

const (
	StatusDraft  ElectionStatus = "DRAFT"
	StatusOpen   ElectionStatus = "OPEN"
	StatusClosed ElectionStatus = "CLOSED"
)

// CanTransition reports whether the status change is a legal forward
// move in the lifecycle.
func CanTransition(from, to ElectionStatus) bool {
	switch from {
	case StatusDraft:
		return to == StatusOpen
	case StatusOpen:
		return to == StatusClosed
	default:
		return false
	}
}

type Election struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	StartsAt    time.Time      `db:"starts_at" json:"startsAt"`
	EndsAt      time.Time      `db:"ends_at" json:"endsAt"`
	Status      ElectionStatus `db:"status" json:"status"`
	CreatedBy   string         `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// Position is a seat voters select candidates for. A non-empty
// Department restricts the seat to voters of that department.
type Position struct {
	ID           string `db:"id" json:"id"`
	ElectionID   string `db:"election_id" json:"electionId"`
	Name         string `db:"name" json:"name"`
	MaxVotes     int    `db:"max_votes" json:"maxVotes"`
	Department   string `db:"department" json:"department,omitempty"`
	DisplayOrder int    `db:"display_order" json:"displayOrder"`
}

type Candidate struct {
	ID         string `db:"id" json:"id"`
	PositionID string `db:"position_id" json:"positionId"`
	ElectionID string `db:"election_id" json:"electionId"`
	Name       string `db:"name" json:"name"`
	Party      string `db:"party" json:"party,omitempty"`
	Program    string `db:"program" json:"program,omitempty"`
	Year       string `db:"year" json:"year,omitempty"`
}
