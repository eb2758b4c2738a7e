package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ballot-network/ballotx/pkg/db/election"
	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/ballot-network/ballotx/pkg/reconcile"
)

// HandleElections returns all known elections.
// GET /elections
func (c *Controller) HandleElections(w http.ResponseWriter, r *http.Request) {
	elections, err := c.App.Store.ListElections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"elections": elections,
	})
}

// ElectionDetail is an election with its ballot structure attached.
type ElectionDetail struct {
	models.Election
	Positions  []models.Position  `json:"positions"`
	Candidates []models.Candidate `json:"candidates"`
}

// HandleElectionDetail returns one election together with its positions
// and candidates.
// GET /elections/{id}
func (c *Controller) HandleElectionDetail(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]
	ctx := r.Context()

	el, err := c.App.Store.GetElection(ctx, electionID)
	if errors.Is(err, election.ErrNotFound) {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	positions, err := c.App.Store.GetPositions(ctx, electionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	candidates, err := c.App.Store.GetCandidates(ctx, electionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, ElectionDetail{
		Election:   *el,
		Positions:  positions,
		Candidates: candidates,
	})
}

type statusChangeRequest struct {
	Status string `json:"status"`
}

// HandleElectionStatus moves an election forward in its lifecycle, writing
// the transition to the ledger before the mirror.
// POST /elections/{id}/status
func (c *Controller) HandleElectionStatus(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var to models.ElectionStatus
	switch strings.ToUpper(req.Status) {
	case string(models.StatusOpen):
		to = models.StatusOpen
	case string(models.StatusClosed):
		to = models.StatusClosed
	default:
		writeError(w, http.StatusBadRequest, "status must be OPEN or CLOSED")
		return
	}

	txID, err := c.App.Ballots.SetElectionStatus(r.Context(), electionID, to)
	if err != nil {
		c.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"electionId":    electionID,
		"status":        string(to),
		"transactionId": txID,
	})
}

// HandleResults returns the off-chain tally for an election. Results are
// served from the mirror; the integrity endpoint is the place to check the
// mirror against the ledger.
// GET /elections/{id}/results
func (c *Controller) HandleResults(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]
	ctx := r.Context()

	el, err := c.App.Store.GetElection(ctx, electionID)
	if errors.Is(err, election.ErrNotFound) {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	votes, err := c.App.Store.ListVotes(ctx, electionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"electionId": electionID,
		"status":     el.Status,
		"totalVotes": len(votes),
		"tally":      reconcile.OffchainTally(votes),
	})
}

// HandleVoterDetail returns a voter's participation state without exposing
// ballot contents.
// GET /elections/{id}/voters/{voterId}
func (c *Controller) HandleVoterDetail(w http.ResponseWriter, r *http.Request) {
	voterID := mux.Vars(r)["voterId"]

	voter, err := c.App.Store.GetVoter(r.Context(), voterID)
	if errors.Is(err, election.ErrNotFound) {
		writeError(w, http.StatusNotFound, "voter not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"voterId":  voter.ID,
		"eligible": voter.Enrolled && voter.Eligible,
		"hasVoted": voter.HasVoted,
		"votedAt":  voter.VotedAt,
	})
}
