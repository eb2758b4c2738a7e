// Package audit appends durable records linking ledger transaction ids
// to the logical actions that produced them. The trail is append-only:
// entries are never edited or removed once written.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the recorder needs.
type Store interface {
	InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error
}

type Recorder struct {
	store  Store
	logger *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Entry describes one state-changing action to record.
type Entry struct {
	ElectionID string
	VoterID    string
	Action     string
	TxID       string
	// Details is a serializable snapshot of the triggering payload.
	Details any
}

// Record appends one audit entry and returns its generated id.
func (r *Recorder) Record(ctx context.Context, in Entry) (string, error) {
	var details json.RawMessage
	if in.Details != nil {
		b, err := json.Marshal(in.Details)
		if err != nil {
			return "", fmt.Errorf("marshal audit details: %w", err)
		}
		details = b
	}

	entry := &models.AuditEntry{
		ID:         uuid.NewString(),
		ElectionID: in.ElectionID,
		VoterID:    in.VoterID,
		Action:     in.Action,
		TxID:       in.TxID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.store.InsertAuditEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("record audit entry: %w", err)
	}

	r.logger.Debug("Audit entry recorded",
		zap.String("action", in.Action),
		zap.String("election_id", in.ElectionID),
		zap.String("tx_id", in.TxID))

	return entry.ID, nil
}
