package models

import "time"

// Account types offered at open time.
const (
	AccountTypeSavings = "Savings"
	AccountTypeCurrent = "Current"
	AccountTypeSalary  = "Salary"
)

// Account statuses. There is no persisted "closed" status: closing an account
// removes it from its owner's record entirely.
const (
	AccountStatusActive      = "active"
	AccountStatusDeactivated = "deactivated"
)

// Transaction kinds.
const (
	TxnDeposit     = "deposit"
	TxnWithdrawal  = "withdrawal"
	TxnTransferOut = "transfer-out"
	TxnTransferIn  = "transfer-in"
)

type User struct {
	CRN          string `json:"crn"`
	Name         string `json:"name"`
	Mobile       string `json:"mobile"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	PIN          string `json:"-"`
	UPI          string `json:"upi,omitempty"`
}

type Account struct {
	ID            string    `json:"id"`
	AccountNumber string    `json:"accountNumber"`
	BankName      string    `json:"bankName"`
	AccountType   string    `json:"accountType"`
	Balance       Amount    `json:"balance"`
	Currency      string    `json:"currency"`
	MPIN          string    `json:"-"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdTimestamp"`
	UpdatedAt     time.Time `json:"updatedTimestamp"`
}

// Transaction is one immutable leg of a balance-affecting event. The two legs
// of a transfer share a TransferID.
type Transaction struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	Kind         string    `json:"kind"`
	Amount       Amount    `json:"amount"`
	Counterparty string    `json:"counterparty,omitempty"`
	Description  string    `json:"description,omitempty"`
	TransferID   string    `json:"transferId,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdTimestamp"`
}

// UserRecord is the unit of persistence: one user, their accounts and the
// capped most-recent-first transaction history, all stored as a single JSON
// document keyed by CRN. Version backs the compare-and-swap on directory
// writes.
type UserRecord struct {
	User         User          `json:"user"`
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
	Version      int64         `json:"-"`
}

// MaxHistory caps the in-record transaction history. Older entries survive in
// the audit table only.
const MaxHistory = 100

// AccountByID returns a pointer into the record's account slice, or nil.
func (r *UserRecord) AccountByID(accountID string) *Account {
	for i := range r.Accounts {
		if r.Accounts[i].ID == accountID {
			return &r.Accounts[i]
		}
	}
	return nil
}

// AccountByNumber returns a pointer into the record's account slice, or nil.
func (r *UserRecord) AccountByNumber(accountNumber string) *Account {
	for i := range r.Accounts {
		if r.Accounts[i].AccountNumber == accountNumber {
			return &r.Accounts[i]
		}
	}
	return nil
}

// AppendTransaction prepends t and trims history to MaxHistory.
func (r *UserRecord) AppendTransaction(t Transaction) {
	r.Transactions = append([]Transaction{t}, r.Transactions...)
	if len(r.Transactions) > MaxHistory {
		r.Transactions = r.Transactions[:MaxHistory]
	}
}
