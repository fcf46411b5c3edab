package cqrs

import "github.com/epicbank/ledger/internal/models"

type RegisterUserCommand struct {
	Name     string
	Mobile   string
	Email    string
	Password string
	PIN      string
	UPI      string
}

type OpenAccountCommand struct {
	CRN            string
	BankName       string
	AccountType    string
	InitialBalance models.Amount
	Mpin           string
}

type CloseAccountCommand struct {
	CRN       string
	AccountID string
}

type DepositCommand struct {
	CRN       string
	AccountID string
	Amount    models.Amount
	Memo      string
}

type WithdrawCommand struct {
	CRN       string
	AccountID string
	Amount    models.Amount
	Memo      string
}

// TransferCommand moves money from a source account to a destination
// identified by account number, phone, UPI handle or email. TransferID is the
// idempotency key; the handler generates one when the client does not supply
// its own.
type TransferCommand struct {
	CRN         string
	AccountID   string
	Destination string
	Amount      models.Amount
	Memo        string
	TransferID  string
}

type UnlockAccountCommand struct {
	CRN       string
	AccountID string
	Mpin      string
}

type LockSessionCommand struct {
	CRN string
}

type ChangeMpinCommand struct {
	CRN       string
	AccountID string
	NewMpin   string
}

type SetAccountStatusCommand struct {
	CRN       string
	AccountID string
	Status    string
}

type ClearHistoryCommand struct {
	CRN string
}

type LoginCommand struct {
	Email    string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}
