package cqrs

import "time"

// ---------- Account queries ----------

// GetAccountQuery fetches a single account, subject to ownership check.
type GetAccountQuery struct {
	CRN       string
	AccountID string
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	CRN string
}

// TotalBalanceQuery sums the balances of all of a user's accounts.
type TotalBalanceQuery struct {
	CRN string
}

// ---------- Transaction queries ----------

// ListTransactionsQuery fetches an account's history, newest first.
// From/To bound the date range when non-zero; Search filters on description
// and counterparty, case-insensitively.
type ListTransactionsQuery struct {
	CRN       string
	AccountID string
	From      time.Time
	To        time.Time
	Search    string
}
