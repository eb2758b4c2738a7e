package controller

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/db/election"
)

// HandleIntegrity returns the integrity report for an election. By default
// the report is computed fresh against the ledger; ?cached=true serves the
// last scheduled report instead, falling back to a fresh run on a miss.
// GET /elections/{id}/integrity
func (c *Controller) HandleIntegrity(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]
	ctx := r.Context()

	if _, err := c.App.Store.GetElection(ctx, electionID); err != nil {
		if errors.Is(err, election.ErrNotFound) {
			writeError(w, http.StatusNotFound, "election not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	if r.URL.Query().Get("cached") == "true" && c.App.Cache != nil {
		report, err := c.App.Cache.GetReport(ctx, electionID)
		if err != nil {
			c.App.Logger.Warn("Failed to read cached integrity report",
				zap.String("election_id", electionID),
				zap.Error(err))
		} else if report != nil {
			writeJSON(w, http.StatusOK, report)
			return
		}
	}

	report, err := c.App.Integrity.Reconcile(ctx, electionID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "integrity check failed: ledger unavailable")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// HandleAudit returns the audit trail for an election, newest first.
// GET /elections/{id}/audit
func (c *Controller) HandleAudit(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]

	entries, err := c.App.Store.ListAuditEntries(r.Context(), electionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"electionId": electionID,
		"entries":    entries,
	})
}
