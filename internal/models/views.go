package models

import "time"

// AccountView is the read-optimised projection of an account returned by the
// API. Balance is projected back to major units; MPIN is never exposed.
// Active reports whether this account is the session's unlocked account.
type AccountView struct {
	ID            string    `json:"id"`
	AccountNumber string    `json:"accountNumber"`
	BankName      string    `json:"bankName"`
	AccountType   string    `json:"accountType"`
	Balance       float64   `json:"balance"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdTimestamp"`
	UpdatedAt     time.Time `json:"updatedTimestamp"`
}

// TransactionView is the read-optimised projection of a transaction.
type TransactionView struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	Kind         string    `json:"kind"`
	Amount       float64   `json:"amount"`
	Counterparty string    `json:"counterparty,omitempty"`
	Description  string    `json:"description,omitempty"`
	TransferID   string    `json:"transferId,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdTimestamp"`
}

// NewAccountView projects an account; active marks the unlocked account.
func NewAccountView(a *Account, active bool) *AccountView {
	return &AccountView{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		BankName:      a.BankName,
		AccountType:   a.AccountType,
		Balance:       a.Balance.Decimal(),
		Currency:      a.Currency,
		Status:        a.Status,
		Active:        active,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// NewTransactionView projects a transaction.
func NewTransactionView(t *Transaction) *TransactionView {
	return &TransactionView{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Kind:         t.Kind,
		Amount:       t.Amount.Decimal(),
		Counterparty: t.Counterparty,
		Description:  t.Description,
		TransferID:   t.TransferID,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
	}
}
