package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/ballot"
)

// httpStatusFor maps submission failure codes onto HTTP statuses. Conflicts
// with voter state (already voted, wrong election phase) are 409 so clients
// can tell "fix your request" apart from "the state says no".
func httpStatusFor(code ballot.Code) int {
	switch code {
	case ballot.CodeNotFound:
		return http.StatusNotFound
	case ballot.CodeNotEligible:
		return http.StatusForbidden
	case ballot.CodeAlreadyVoted, ballot.CodeElectionNotOpen, ballot.CodeElectionDraft, ballot.CodeInvalidTransition:
		return http.StatusConflict
	case ballot.CodeInvalidSelection:
		return http.StatusBadRequest
	case ballot.CodeLedgerWriteFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) writeSubmitError(w http.ResponseWriter, err error) {
	code, ok := ballot.CodeOf(err)
	if !ok {
		code = ballot.CodeInternal
	}
	status := httpStatusFor(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals to the caller.
		message = "internal error"
	}
	writeCodedError(w, status, string(code), message)
}

// HandleCastVote accepts one ballot for the election in the path.
// POST /elections/{id}/votes
func (c *Controller) HandleCastVote(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]
	if electionID == "" {
		writeError(w, http.StatusBadRequest, "missing election id")
		return
	}

	var req ballot.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The path owns the election id.
	req.ElectionID = electionID

	if req.VoterID == "" {
		writeError(w, http.StatusBadRequest, "missing voterId")
		return
	}

	result, err := c.App.Ballots.Submit(r.Context(), req)
	if err != nil {
		c.App.Logger.Debug("Vote submission rejected",
			zap.String("election_id", electionID),
			zap.String("voter_id", req.VoterID),
			zap.Error(err))
		c.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
