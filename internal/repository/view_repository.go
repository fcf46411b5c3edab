package repository

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/epicbank/ledger/internal/cache"
	"github.com/epicbank/ledger/internal/models"
)

const (
	accountViewKeyPrefix   = "account:view:"
	processedXferKeyPrefix = "processed:transfer:"

	// processedMarkerTTL bounds how long a committed transfer ID stays
	// replay-protected. Reconciliation uses the same window when deciding
	// whether a missing marker means an uncommitted transfer.
	processedMarkerTTL = 72 * time.Hour
)

// accountCacheEntry is the internal Redis representation of an account view.
// Unlike models.AccountView it includes the owner's CRN so reads can perform
// ownership checks straight from the cache.
type accountCacheEntry struct {
	CRN  string             `json:"crn"`
	View models.AccountView `json:"view"`
}

// ViewRepository is the Redis side of the read model: per-account view
// entries refreshed after every mutation, plus the processed-transfer markers
// that make external transfers idempotent under retry.
type ViewRepository struct {
	views     *cache.ViewCache[accountCacheEntry]
	processed *cache.Markers
}

func NewViewRepository(redisClient *goredis.Client) *ViewRepository {
	return &ViewRepository{
		views:     cache.NewViewCache[accountCacheEntry](redisClient, accountViewKeyPrefix, 0),
		processed: cache.NewMarkers(redisClient, processedXferKeyPrefix, processedMarkerTTL),
	}
}

// GetAccountView returns the cached view and its owner CRN, if present.
func (r *ViewRepository) GetAccountView(ctx context.Context, accountID string) (*models.AccountView, string, bool) {
	entry, ok := r.views.Get(ctx, accountID)
	if !ok {
		return nil, "", false
	}
	return &entry.View, entry.CRN, true
}

// CacheAccountView stores or refreshes the read model entry for an account.
// Called by the command service after every successful mutation.
func (r *ViewRepository) CacheAccountView(ctx context.Context, crn string, view *models.AccountView) {
	r.views.Set(ctx, view.ID, &accountCacheEntry{CRN: crn, View: *view})
}

// InvalidateAccountView removes the entry for a closed account.
func (r *ViewRepository) InvalidateAccountView(ctx context.Context, accountID string) {
	r.views.Delete(ctx, accountID)
}

// IsTransferProcessed returns true if this transfer ID has already been
// committed. Guards against double-applying a replayed transfer attempt.
func (r *ViewRepository) IsTransferProcessed(ctx context.Context, transferID string) bool {
	return r.processed.Has(ctx, transferID)
}

// MarkTransferProcessed records that a transfer has been committed.
func (r *ViewRepository) MarkTransferProcessed(ctx context.Context, transferID string) {
	r.processed.Mark(ctx, transferID)
}
