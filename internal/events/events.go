package events

import "time"

// Event types
const (
	AccountOpened  = "ledger.account.opened"
	AccountClosed  = "ledger.account.closed"
	AccountStatus  = "ledger.account.status"
	MpinChanged    = "ledger.mpin.changed"
	DepositMade    = "ledger.deposit"
	WithdrawalMade = "ledger.withdrawal"
	TransferMade   = "ledger.transfer"
	HistoryCleared = "ledger.history.cleared"
)

// Stream names
const (
	LedgerEventsStream = "ledger.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type AccountOpenedEvent struct {
	CRN           string `json:"crn"`
	AccountID     string `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"`
	BankName      string `json:"bankName"`
}

type AccountClosedEvent struct {
	CRN       string `json:"crn"`
	AccountID string `json:"accountId"`
}

type AccountStatusEvent struct {
	CRN       string `json:"crn"`
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

type MpinChangedEvent struct {
	CRN       string `json:"crn"`
	AccountID string `json:"accountId"`
}

type BalanceChangedEvent struct {
	CRN           string `json:"crn"`
	AccountID     string `json:"accountId"`
	TransactionID string `json:"transactionId"`
	AmountMinor   int64  `json:"amountMinor"`
	NewBalance    int64  `json:"newBalanceMinor"`
}

type TransferMadeEvent struct {
	TransferID      string `json:"transferId"`
	SourceCRN       string `json:"sourceCrn"`
	SourceAccountID string `json:"sourceAccountId"`
	DestinationCRN  string `json:"destinationCrn"`
	DestinationID   string `json:"destinationAccountId"`
	AmountMinor     int64  `json:"amountMinor"`
	External        bool   `json:"external"`
}

type HistoryClearedEvent struct {
	CRN string `json:"crn"`
}
