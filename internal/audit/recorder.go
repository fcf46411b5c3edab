// Package audit projects ledger events into the append-only audit table.
// The in-record transaction history is capped and user-clearable; the audit
// table is neither, which is what makes it usable for reconciliation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epicbank/ledger/internal/events"
	"github.com/epicbank/ledger/internal/repository"
)

// Recorder is the event subscriber handler. Failures propagate so the
// consumer group redelivers the message.
type Recorder struct {
	repo *repository.AuditRepository
}

func NewRecorder(repo *repository.AuditRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var fields struct {
		CRN             string `json:"crn"`
		SourceCRN       string `json:"sourceCrn"`
		AccountID       string `json:"accountId"`
		SourceAccountID string `json:"sourceAccountId"`
	}
	// Data arrives as map[string]any after stream decoding; re-decode the
	// common identity fields regardless of the concrete event type.
	_ = json.Unmarshal(payload, &fields)

	crn := fields.CRN
	if crn == "" {
		crn = fields.SourceCRN
	}
	accountID := fields.AccountID
	if accountID == "" {
		accountID = fields.SourceAccountID
	}

	return r.repo.Append(ctx, &repository.AuditEntry{
		EventType: event.Type,
		CRN:       crn,
		AccountID: accountID,
		Payload:   payload,
		CreatedAt: event.Timestamp,
	})
}
