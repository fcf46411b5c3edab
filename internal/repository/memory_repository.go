package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/epicbank/ledger/internal/models"
	"github.com/epicbank/ledger/internal/normalize"
)

// MemoryRecordRepository is an in-memory RecordStore for tests and
// STORAGE=memory development runs. Records are kept as encoded JSON and pass
// through the normalizer on every load, exactly like the Postgres adapter, so
// tests exercise the same round-trip.
type MemoryRecordRepository struct {
	mu       sync.RWMutex
	records  map[string][]byte
	versions map[string]int64
	failIn   int
	failErr  error
}

func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{
		records:  make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// SeedRaw installs a raw JSON record under crn, bypassing EncodeRecord.
// Lets tests plant legacy-shaped records.
func (r *MemoryRecordRepository) SeedRaw(crn string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[crn] = raw
	r.versions[crn] = 1
}

// FailWrite arms a one-shot write failure: after skip successful writes, the
// next write returns err. FailWrite(0, err) fails the very next write. Lets
// tests exercise rollback and compensation paths.
func (r *MemoryRecordRepository) FailWrite(skip int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failIn = skip + 1
	r.failErr = err
}

func (r *MemoryRecordRepository) takeFailure() error {
	if r.failErr == nil {
		return nil
	}
	r.failIn--
	if r.failIn > 0 {
		return nil
	}
	err := r.failErr
	r.failErr = nil
	return err
}

func (r *MemoryRecordRepository) CreateRecord(ctx context.Context, record *models.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.records[record.User.CRN]; ok {
		return models.ErrDuplicateUser
	}
	raw, err := normalize.EncodeRecord(record)
	if err != nil {
		return err
	}
	r.records[record.User.CRN] = raw
	r.versions[record.User.CRN] = 1
	record.Version = 1
	return nil
}

func (r *MemoryRecordRepository) LoadRecord(ctx context.Context, crn string) (*models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadLocked(crn)
}

func (r *MemoryRecordRepository) loadLocked(crn string) (*models.UserRecord, error) {
	raw, ok := r.records[crn]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	record, err := normalize.NormalizeRecord(raw)
	if err != nil {
		return nil, err
	}
	record.Version = r.versions[crn]
	return record, nil
}

func (r *MemoryRecordRepository) SaveRecord(ctx context.Context, record *models.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	return r.saveLocked(record)
}

// saveLocked is the compare-and-swap shared by both save paths: the stored
// version must still match the version read at load time.
func (r *MemoryRecordRepository) saveLocked(record *models.UserRecord) error {
	if _, ok := r.records[record.User.CRN]; !ok {
		return models.ErrUserNotFound
	}
	if r.versions[record.User.CRN] != record.Version {
		return models.ErrVersionConflict
	}
	raw, err := normalize.EncodeRecord(record)
	if err != nil {
		return err
	}
	r.records[record.User.CRN] = raw
	r.versions[record.User.CRN]++
	record.Version = r.versions[record.User.CRN]
	return nil
}

func (r *MemoryRecordRepository) LoadDirectory(ctx context.Context) ([]*models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	crns := make([]string, 0, len(r.records))
	for crn := range r.records {
		crns = append(crns, crn)
	}
	sort.Strings(crns)

	var records []*models.UserRecord
	for _, crn := range crns {
		record, err := r.loadLocked(crn)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *MemoryRecordRepository) SaveDirectoryRecord(ctx context.Context, record *models.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	return r.saveLocked(record)
}

func (r *MemoryRecordRepository) FindByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for crn := range r.records {
		record, err := r.loadLocked(crn)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(record.User.Email, email) {
			return record, nil
		}
	}
	return nil, models.ErrUserNotFound
}
