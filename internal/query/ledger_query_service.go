package query

import (
	"context"
	"strings"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/models"
	"github.com/epicbank/ledger/internal/repository"
	"github.com/epicbank/ledger/internal/session"
)

// ViewSource is the query side's view of the Redis read model.
type ViewSource interface {
	GetAccountView(ctx context.Context, accountID string) (*models.AccountView, string, bool)
	CacheAccountView(ctx context.Context, crn string, view *models.AccountView)
}

// LedgerQueryService serves reads: cache-first account views with a
// write-store fallback that warms the cache, transaction history with
// filters, and balance aggregates.
type LedgerQueryService struct {
	store    repository.RecordStore
	views    ViewSource
	sessions *session.Manager
}

func NewLedgerQueryService(store repository.RecordStore, views ViewSource, sessions *session.Manager) *LedgerQueryService {
	return &LedgerQueryService{store: store, views: views, sessions: sessions}
}

// GetAccount fetches a single account view and enforces ownership.
func (s *LedgerQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	if view, crn, ok := s.views.GetAccountView(ctx, q.AccountID); ok {
		if crn != q.CRN {
			return nil, models.ErrForbidden
		}
		// The session pointer can move after the view was cached; the cached
		// flag is only trusted when no explicit unlock happened.
		if id, unlocked := s.sessions.Active(q.CRN); unlocked {
			view.Active = id == q.AccountID
		}
		return view, nil
	}

	record, err := s.store.LoadRecord(ctx, q.CRN)
	if err != nil {
		return nil, err
	}
	account := record.AccountByID(q.AccountID)
	if account == nil {
		return nil, models.ErrAccountNotFound
	}

	view := models.NewAccountView(account, s.isActive(q.CRN, q.AccountID, len(record.Accounts)))
	s.views.CacheAccountView(ctx, q.CRN, view)
	return view, nil
}

// ListAccounts returns all of a user's accounts. With exactly one account the
// session auto-activates it, so no MPIN prompt is needed.
func (s *LedgerQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	record, err := s.store.LoadRecord(ctx, q.CRN)
	if err != nil {
		return nil, err
	}

	views := make([]models.AccountView, 0, len(record.Accounts))
	for i := range record.Accounts {
		account := &record.Accounts[i]
		view := models.NewAccountView(account, s.isActive(q.CRN, account.ID, len(record.Accounts)))
		s.views.CacheAccountView(ctx, q.CRN, view)
		views = append(views, *view)
	}
	return views, nil
}

// ListTransactions returns an account's history newest first, optionally
// bounded by date range and filtered by search text over description and
// counterparty.
func (s *LedgerQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	record, err := s.store.LoadRecord(ctx, q.CRN)
	if err != nil {
		return nil, err
	}
	if record.AccountByID(q.AccountID) == nil {
		return nil, models.ErrAccountNotFound
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	views := make([]models.TransactionView, 0, len(record.Transactions))
	for i := range record.Transactions {
		t := &record.Transactions[i]
		if t.AccountID != q.AccountID {
			continue
		}
		if !q.From.IsZero() && t.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && t.CreatedAt.After(q.To) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.Counterparty), search) {
			continue
		}
		views = append(views, *models.NewTransactionView(t))
	}
	return views, nil
}

// TotalBalance sums all account balances for a user.
func (s *LedgerQueryService) TotalBalance(ctx context.Context, q cqrs.TotalBalanceQuery) (float64, error) {
	record, err := s.store.LoadRecord(ctx, q.CRN)
	if err != nil {
		return 0, err
	}
	var total models.Amount
	for _, acc := range record.Accounts {
		total += acc.Balance
	}
	return total.Decimal(), nil
}

// isActive applies the session pointer plus the single-account auto-unlock
// shortcut: a user with exactly one account never sees an MPIN prompt.
func (s *LedgerQueryService) isActive(crn, accountID string, accountCount int) bool {
	if id, ok := s.sessions.Active(crn); ok {
		return id == accountID
	}
	return accountCount == 1
}
