package command

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/events"
	"github.com/epicbank/ledger/internal/models"
	"github.com/epicbank/ledger/internal/repository"
	"github.com/epicbank/ledger/internal/session"
	"github.com/epicbank/ledger/internal/utils"
)

// ReadModel is the command side's view of the Redis read model: account view
// refresh/invalidation plus the processed-transfer markers that make external
// transfers idempotent.
type ReadModel interface {
	CacheAccountView(ctx context.Context, crn string, view *models.AccountView)
	InvalidateAccountView(ctx context.Context, accountID string)
	IsTransferProcessed(ctx context.Context, transferID string) bool
	MarkTransferProcessed(ctx context.Context, transferID string)
}

// EventPublisher publishes ledger events. Publish failures never fail the
// mutation; the write store is the source of truth.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

const (
	openAccountNumberRetries = 5
	casRetries               = 3
)

// LedgerCommandService owns every state mutation. Mutations for one CRN are
// serialized behind a per-CRN mutex so a balance check and the write it guards
// can never interleave with another mutation on the same record; each
// operation is load -> validate -> apply -> persist -> publish and either
// fully applies or fully rejects.
type LedgerCommandService struct {
	store     repository.RecordStore
	readModel ReadModel
	publisher EventPublisher
	sessions  *session.Manager

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedgerCommandService(
	store repository.RecordStore,
	readModel ReadModel,
	publisher EventPublisher,
	sessions *session.Manager,
) *LedgerCommandService {
	return &LedgerCommandService{
		store:     store,
		readModel: readModel,
		publisher: publisher,
		sessions:  sessions,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *LedgerCommandService) lockCRN(crn string) func() {
	s.mu.Lock()
	l, ok := s.locks[crn]
	if !ok {
		l = &sync.Mutex{}
		s.locks[crn] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// updateRecord runs load -> apply -> save with compare-and-swap retries. The
// per-CRN lock keeps a user's own mutations serial, but an incoming transfer
// credit from another user can bump the record version at any moment; on a
// version conflict the mutation re-applies against the fresh state so the
// credit survives.
func (s *LedgerCommandService) updateRecord(ctx context.Context, crn string, apply func(*models.UserRecord) error) (*models.UserRecord, error) {
	for attempt := 0; ; attempt++ {
		record, err := s.store.LoadRecord(ctx, crn)
		if err != nil {
			return nil, err
		}
		if err := apply(record); err != nil {
			return nil, err
		}
		err = s.store.SaveRecord(ctx, record)
		if err == nil {
			return record, nil
		}
		if err != models.ErrVersionConflict || attempt >= casRetries-1 {
			return nil, err
		}
	}
}

// RegisterUser creates a fresh user record with no accounts.
func (s *LedgerCommandService) RegisterUser(ctx context.Context, cmd cqrs.RegisterUserCommand) (*models.UserRecord, error) {
	if _, err := s.store.FindByEmail(ctx, cmd.Email); err == nil {
		return nil, models.ErrDuplicateUser
	}
	hash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, err
	}
	record := &models.UserRecord{
		User: models.User{
			CRN:          utils.GenerateCRN(),
			Name:         cmd.Name,
			Mobile:       cmd.Mobile,
			Email:        cmd.Email,
			PasswordHash: hash,
			PIN:          cmd.PIN,
			UPI:          cmd.UPI,
		},
	}
	for attempt := 0; ; attempt++ {
		err = s.store.CreateRecord(ctx, record)
		if err == nil {
			return record, nil
		}
		if err != models.ErrDuplicateUser || attempt >= 2 {
			return nil, err
		}
		record.User.CRN = utils.GenerateCRN()
	}
}

// OpenAccount creates an account with a globally unique account number.
func (s *LedgerCommandService) OpenAccount(ctx context.Context, cmd cqrs.OpenAccountCommand) (*models.AccountView, error) {
	if !utils.ValidMpin(cmd.Mpin) {
		return nil, models.ErrInvalidMpin
	}
	if cmd.InitialBalance < 0 {
		return nil, models.ErrInvalidAmount
	}

	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	number, err := s.uniqueAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:            utils.GenerateID("acc"),
		AccountNumber: number,
		BankName:      cmd.BankName,
		AccountType:   cmd.AccountType,
		Balance:       cmd.InitialBalance,
		Currency:      "INR",
		MPIN:          cmd.Mpin,
		Status:        models.AccountStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if account.BankName == "" {
		account.BankName = "Epic Bank"
	}
	if account.AccountType == "" {
		account.AccountType = models.AccountTypeSavings
	}

	if _, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		r.Accounts = append(r.Accounts, account)
		return nil
	}); err != nil {
		return nil, err
	}

	view := s.refreshView(ctx, cmd.CRN, &account)
	s.publish(ctx, events.AccountOpened, events.AccountOpenedEvent{
		CRN:           cmd.CRN,
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		AccountType:   account.AccountType,
		BankName:      account.BankName,
	})
	return view, nil
}

// uniqueAccountNumber generates an account number not present anywhere in the
// directory, retrying on collision.
func (s *LedgerCommandService) uniqueAccountNumber(ctx context.Context) (string, error) {
	directory, err := s.store.LoadDirectory(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]struct{})
	for _, record := range directory {
		for _, acc := range record.Accounts {
			taken[acc.AccountNumber] = struct{}{}
		}
	}
	for i := 0; i < openAccountNumberRetries; i++ {
		number := utils.GenerateAccountNumber()
		if _, ok := taken[number]; !ok {
			return number, nil
		}
	}
	return "", models.ErrDuplicateAccountNumber
}

// CloseAccount removes an account. The balance must be exactly zero and the
// account must be active; a deactivated account has to be reactivated first.
func (s *LedgerCommandService) CloseAccount(ctx context.Context, cmd cqrs.CloseAccountCommand) error {
	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		account := r.AccountByID(cmd.AccountID)
		if account == nil {
			return models.ErrAccountNotFound
		}
		if account.Status != models.AccountStatusActive {
			return models.ErrAccountInactive
		}
		if account.Balance != 0 {
			return models.ErrNonZeroBalance
		}
		kept := r.Accounts[:0]
		for _, acc := range r.Accounts {
			if acc.ID != cmd.AccountID {
				kept = append(kept, acc)
			}
		}
		r.Accounts = kept
		return nil
	})
	if err != nil {
		return err
	}

	s.sessions.Forget(cmd.CRN, cmd.AccountID)
	s.readModel.InvalidateAccountView(ctx, cmd.AccountID)
	s.publish(ctx, events.AccountClosed, events.AccountClosedEvent{CRN: cmd.CRN, AccountID: cmd.AccountID})
	return nil
}

// Deposit increases an account balance and appends a deposit transaction.
func (s *LedgerCommandService) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (*models.AccountView, error) {
	if cmd.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	var account *models.Account
	var txn models.Transaction
	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		account = r.AccountByID(cmd.AccountID)
		if account == nil {
			return models.ErrAccountNotFound
		}
		account.Balance += cmd.Amount
		account.UpdatedAt = time.Now().UTC()
		txn = newTransaction(account.ID, models.TxnDeposit, cmd.Amount, "", memoOr(cmd.Memo, "Cash Deposit"), "")
		r.AppendTransaction(txn)
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.refreshView(ctx, cmd.CRN, account)
	s.publish(ctx, events.DepositMade, events.BalanceChangedEvent{
		CRN:           cmd.CRN,
		AccountID:     account.ID,
		TransactionID: txn.ID,
		AmountMinor:   int64(cmd.Amount),
		NewBalance:    int64(account.Balance),
	})
	return view, nil
}

// Withdraw decreases an account balance. No overdraft: the full amount must
// be covered by the current balance.
func (s *LedgerCommandService) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*models.AccountView, error) {
	if cmd.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	var account *models.Account
	var txn models.Transaction
	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		account = r.AccountByID(cmd.AccountID)
		if account == nil {
			return models.ErrAccountNotFound
		}
		if account.Balance < cmd.Amount {
			return models.ErrInsufficientFunds
		}
		account.Balance -= cmd.Amount
		account.UpdatedAt = time.Now().UTC()
		txn = newTransaction(account.ID, models.TxnWithdrawal, cmd.Amount, "", memoOr(cmd.Memo, "Cash Withdrawal"), "")
		r.AppendTransaction(txn)
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.refreshView(ctx, cmd.CRN, account)
	s.publish(ctx, events.WithdrawalMade, events.BalanceChangedEvent{
		CRN:           cmd.CRN,
		AccountID:     account.ID,
		TransactionID: txn.ID,
		AmountMinor:   int64(cmd.Amount),
		NewBalance:    int64(account.Balance),
	})
	return view, nil
}

// UnlockAccount verifies the MPIN and makes the account the session's active
// account. Five consecutive failures lock the unlock path for fifteen
// minutes.
func (s *LedgerCommandService) UnlockAccount(ctx context.Context, cmd cqrs.UnlockAccountCommand) error {
	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	record, err := s.store.LoadRecord(ctx, cmd.CRN)
	if err != nil {
		return err
	}
	account := record.AccountByID(cmd.AccountID)
	if account == nil {
		return models.ErrAccountNotFound
	}
	if s.sessions.IsLocked(cmd.AccountID) {
		return models.ErrMpinLocked
	}
	if account.MPIN != cmd.Mpin {
		if s.sessions.RecordFailure(cmd.AccountID) {
			log.Printf("unlock: account %s locked out after repeated mpin failures", cmd.AccountID)
			return models.ErrMpinLocked
		}
		return models.ErrInvalidMpin
	}
	s.sessions.ResetFailures(cmd.AccountID)
	s.sessions.Activate(cmd.CRN, cmd.AccountID)
	return nil
}

// LockSession clears the active account.
func (s *LedgerCommandService) LockSession(ctx context.Context, cmd cqrs.LockSessionCommand) {
	s.sessions.Deactivate(cmd.CRN)
}

// ChangeMpin replaces an account's MPIN after a format check.
func (s *LedgerCommandService) ChangeMpin(ctx context.Context, cmd cqrs.ChangeMpinCommand) error {
	if !utils.ValidMpin(cmd.NewMpin) {
		return models.ErrInvalidMpin
	}

	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		account := r.AccountByID(cmd.AccountID)
		if account == nil {
			return models.ErrAccountNotFound
		}
		account.MPIN = cmd.NewMpin
		account.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.MpinChanged, events.MpinChangedEvent{CRN: cmd.CRN, AccountID: cmd.AccountID})
	return nil
}

// SetAccountStatus toggles between active and deactivated. The enum is
// enforced here as well as at the HTTP boundary so no caller can persist an
// arbitrary status string.
func (s *LedgerCommandService) SetAccountStatus(ctx context.Context, cmd cqrs.SetAccountStatusCommand) (*models.AccountView, error) {
	if cmd.Status != models.AccountStatusActive && cmd.Status != models.AccountStatusDeactivated {
		return nil, models.ErrInvalidStatus
	}

	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	var account *models.Account
	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		account = r.AccountByID(cmd.AccountID)
		if account == nil {
			return models.ErrAccountNotFound
		}
		account.Status = cmd.Status
		account.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.refreshView(ctx, cmd.CRN, account)
	s.publish(ctx, events.AccountStatus, events.AccountStatusEvent{
		CRN:       cmd.CRN,
		AccountID: cmd.AccountID,
		Status:    cmd.Status,
	})
	return view, nil
}

// ClearHistory wipes the in-record transaction history. Administrative and
// destructive; audit rows are untouched.
func (s *LedgerCommandService) ClearHistory(ctx context.Context, cmd cqrs.ClearHistoryCommand) error {
	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		r.Transactions = nil
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.HistoryCleared, events.HistoryClearedEvent{CRN: cmd.CRN})
	return nil
}

func (s *LedgerCommandService) refreshView(ctx context.Context, crn string, account *models.Account) *models.AccountView {
	activeID, _ := s.sessions.Active(crn)
	view := models.NewAccountView(account, account.ID == activeID)
	s.readModel.CacheAccountView(ctx, crn, view)
	return view
}

func (s *LedgerCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}

func newTransaction(accountID, kind string, amount models.Amount, counterparty, memo, transferID string) models.Transaction {
	return models.Transaction{
		ID:           utils.GenerateID("txn"),
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		Description:  memo,
		TransferID:   transferID,
		Status:       "completed",
		CreatedAt:    time.Now().UTC(),
	}
}

func memoOr(memo, fallback string) string {
	if memo != "" {
		return memo
	}
	return fallback
}

func newTransferID() string {
	return uuid.NewString()
}
