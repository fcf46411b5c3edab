package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/epicbank/ledger/internal/models"
	"github.com/epicbank/ledger/internal/normalize"
)

// RecordStore is the persistence port for user records. A save either fully
// succeeds or leaves the prior value untouched. Both save paths compare-and-
// swap on the record version: the per-CRN lock serializes a user's own
// mutations, but an incoming transfer credit can land on any record at any
// time, so an unconditional overwrite would stomp it. Writers retry from a
// fresh load on ErrVersionConflict.
type RecordStore interface {
	CreateRecord(ctx context.Context, record *models.UserRecord) error
	LoadRecord(ctx context.Context, crn string) (*models.UserRecord, error)
	SaveRecord(ctx context.Context, record *models.UserRecord) error
	LoadDirectory(ctx context.Context) ([]*models.UserRecord, error)
	SaveDirectoryRecord(ctx context.Context, record *models.UserRecord) error
	FindByEmail(ctx context.Context, email string) (*models.UserRecord, error)
}

// RecordRepository stores one JSON user record per CRN in PostgreSQL.
// Email, mobile and UPI are lifted into their own columns for login and
// transfer-destination lookups; everything else lives in the record blob.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) CreateRecord(ctx context.Context, record *models.UserRecord) error {
	raw, err := normalize.EncodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	query := `
		INSERT INTO user_records (crn, email, mobile, upi, record, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (crn) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		record.User.CRN, record.User.Email, record.User.Mobile, record.User.UPI,
		raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to create record: %v", models.ErrStorageUnavailable, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", models.ErrStorageUnavailable, err)
	}
	if rows == 0 {
		return models.ErrDuplicateUser
	}
	record.Version = 1
	return nil
}

func (r *RecordRepository) LoadRecord(ctx context.Context, crn string) (*models.UserRecord, error) {
	query := `SELECT record, version FROM user_records WHERE crn = $1`
	return r.scanRecord(r.db.QueryRowContext(ctx, query, crn))
}

// SaveRecord writes the caller's own record, guarded by the version read at
// load time. The per-CRN lock keeps the user's own mutations serial, but a
// transfer credit from another user bumps the version concurrently; a zero-row
// update means such a write landed and the caller must reload and re-apply.
func (r *RecordRepository) SaveRecord(ctx context.Context, record *models.UserRecord) error {
	raw, err := normalize.EncodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	query := `
		UPDATE user_records
		SET email = $2, mobile = $3, upi = $4, record = $5, version = version + 1, updated_at = $6
		WHERE crn = $1 AND version = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		record.User.CRN, record.User.Email, record.User.Mobile, record.User.UPI,
		raw, time.Now().UTC(), record.Version,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save record: %v", models.ErrStorageUnavailable, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", models.ErrStorageUnavailable, err)
	}
	if rows == 0 {
		// Deleted records surface as ErrUserNotFound on the retry's reload.
		return models.ErrVersionConflict
	}
	record.Version++
	return nil
}

func (r *RecordRepository) LoadDirectory(ctx context.Context) ([]*models.UserRecord, error) {
	query := `SELECT record, version FROM user_records ORDER BY crn`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load directory: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var records []*models.UserRecord
	for rows.Next() {
		var raw []byte
		var version int64
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, fmt.Errorf("%w: failed to scan record: %v", models.ErrStorageUnavailable, err)
		}
		record, err := normalize.NormalizeRecord(raw)
		if err != nil {
			return nil, err
		}
		record.Version = version
		records = append(records, record)
	}
	return records, rows.Err()
}

// SaveDirectoryRecord writes another user's record, guarded by the version
// read when the record was loaded. A concurrent writer wins the race and the
// caller gets ErrVersionConflict to retry from a fresh load.
func (r *RecordRepository) SaveDirectoryRecord(ctx context.Context, record *models.UserRecord) error {
	raw, err := normalize.EncodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	query := `
		UPDATE user_records
		SET record = $2, version = version + 1, updated_at = $3
		WHERE crn = $1 AND version = $4
	`
	result, err := r.db.ExecContext(ctx, query, record.User.CRN, raw, time.Now().UTC(), record.Version)
	if err != nil {
		return fmt.Errorf("%w: failed to save directory record: %v", models.ErrStorageUnavailable, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", models.ErrStorageUnavailable, err)
	}
	if rows == 0 {
		return models.ErrVersionConflict
	}
	record.Version++
	return nil
}

func (r *RecordRepository) FindByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	query := `SELECT record, version FROM user_records WHERE lower(email) = lower($1)`
	return r.scanRecord(r.db.QueryRowContext(ctx, query, email))
}

func (r *RecordRepository) scanRecord(row *sql.Row) (*models.UserRecord, error) {
	var raw []byte
	var version int64
	err := row.Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load record: %v", models.ErrStorageUnavailable, err)
	}
	record, err := normalize.NormalizeRecord(raw)
	if err != nil {
		return nil, err
	}
	record.Version = version
	return record, nil
}
