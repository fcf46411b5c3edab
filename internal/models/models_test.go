package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFromDecimal(t *testing.T) {
	tests := []struct {
		decimal float64
		want    Amount
	}{
		{0, 0},
		{1, 100},
		{1000.50, 100050},
		{0.01, 1},
		{99.99, 9999},
		// Float noise must round to the nearest paisa, not truncate.
		{0.1 + 0.2, 30},
		{-25.50, -2550},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AmountFromDecimal(tt.decimal), "decimal %v", tt.decimal)
	}
}

func TestAmountDecimal(t *testing.T) {
	assert.Equal(t, 1000.50, Amount(100050).Decimal())
	assert.Equal(t, 0.0, Amount(0).Decimal())
	assert.Equal(t, 0.01, Amount(1).Decimal())
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "1000.50", Amount(100050).String())
	assert.Equal(t, "0.00", Amount(0).String())
}

func TestAccountLookups(t *testing.T) {
	record := &UserRecord{
		Accounts: []Account{
			{ID: "acc-1", AccountNumber: "910000000001"},
			{ID: "acc-2", AccountNumber: "910000000002"},
		},
	}

	acc := record.AccountByID("acc-2")
	require.NotNil(t, acc)
	assert.Equal(t, "910000000002", acc.AccountNumber)
	assert.Nil(t, record.AccountByID("acc-9"))

	acc = record.AccountByNumber("910000000001")
	require.NotNil(t, acc)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Nil(t, record.AccountByNumber("000000000000"))

	// Lookups return pointers into the slice so callers can mutate in place.
	acc.Balance = 500
	assert.Equal(t, Amount(500), record.Accounts[0].Balance)
}

func TestAppendTransactionPrependsAndTrims(t *testing.T) {
	record := &UserRecord{}
	for i := 0; i < MaxHistory+5; i++ {
		record.AppendTransaction(Transaction{ID: fmt.Sprintf("txn-%d", i)})
	}

	require.Len(t, record.Transactions, MaxHistory)
	// Newest first; the five oldest fell off the end.
	assert.Equal(t, fmt.Sprintf("txn-%d", MaxHistory+4), record.Transactions[0].ID)
	assert.Equal(t, "txn-5", record.Transactions[MaxHistory-1].ID)
}
