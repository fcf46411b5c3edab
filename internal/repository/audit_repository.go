package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEntry is one row of the append-only audit table. Unlike the capped
// in-record transaction history, audit rows are never trimmed or cleared.
type AuditEntry struct {
	ID        int64           `json:"id"`
	EventType string          `json:"eventType"`
	CRN       string          `json:"crn"`
	AccountID string          `json:"accountId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdTimestamp"`
}

// AuditRepository appends ledger events to PostgreSQL.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit_events (event_type, crn, account_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.EventType, entry.CRN, entry.AccountID, entry.Payload, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
