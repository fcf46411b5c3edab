package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicbank/ledger/internal/models"
)

func directoryRecord(crn, name, mobile, email, upi string, numbers ...string) *models.UserRecord {
	record := &models.UserRecord{
		User: models.User{CRN: crn, Name: name, Mobile: mobile, Email: email, UPI: upi},
	}
	for i, number := range numbers {
		record.Accounts = append(record.Accounts, models.Account{
			ID:            "acc-" + crn + "-" + string(rune('a'+i)),
			AccountNumber: number,
		})
	}
	return record
}

func TestResolveOwnAccount(t *testing.T) {
	record := directoryRecord("CRN1", "Asha", "9876543210", "asha@example.com", "", "910000000001")

	assert.NotNil(t, resolveOwnAccount(record, "910000000001"))
	assert.NotNil(t, resolveOwnAccount(record, "  910000000001  "))
	assert.Nil(t, resolveOwnAccount(record, "910000000999"))
	assert.Nil(t, resolveOwnAccount(record, ""))
	assert.Nil(t, resolveOwnAccount(record, "   "))
}

func TestResolveDirectoryRecord(t *testing.T) {
	directory := []*models.UserRecord{
		directoryRecord("CRN1", "Asha", "+91 98765 43210", "asha@example.com", "asha@epic", "910000000001"),
		directoryRecord("CRN2", "Ravi", "9123456789", "Ravi@Example.com", "ravi@epic", "910000000002"),
	}

	tests := []struct {
		name        string
		destination string
		exclude     string
		wantCRN     string
	}{
		{"account number", "910000000002", "CRN1", "CRN2"},
		{"bare phone", "9876543210", "CRN2", "CRN1"},
		{"phone with country code", "919876543210", "CRN2", "CRN1"},
		{"formatted phone", "+91 91234 56789", "CRN1", "CRN2"},
		{"upi case-insensitive", "ASHA@EPIC", "CRN2", "CRN1"},
		{"email case-insensitive", "ravi@example.COM", "CRN1", "CRN2"},
		{"own crn excluded", "910000000001", "CRN1", ""},
		{"short digit string never matches phone", "876543210", "CRN2", ""},
		{"unknown", "nobody@nowhere.com", "CRN1", ""},
		{"blank", "   ", "CRN1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := resolveDirectoryRecord(directory, tt.destination, tt.exclude)
			if tt.wantCRN == "" {
				assert.Nil(t, match)
				return
			}
			require.NotNil(t, match)
			assert.Equal(t, tt.wantCRN, match.User.CRN)
		})
	}
}

func TestResolveDirectoryRecordAmbiguityKeepsFirst(t *testing.T) {
	// Two records sharing a mobile number should never happen, but resolution
	// must still be deterministic.
	directory := []*models.UserRecord{
		directoryRecord("CRN1", "Asha", "9876543210", "asha@example.com", "", "910000000001"),
		directoryRecord("CRN2", "Clone", "9876543210", "clone@example.com", "", "910000000002"),
	}

	match := resolveDirectoryRecord(directory, "9876543210", "CRN9")
	require.NotNil(t, match)
	assert.Equal(t, "CRN1", match.User.CRN)
}

func TestDestinationAccount(t *testing.T) {
	record := directoryRecord("CRN2", "Ravi", "9123456789", "ravi@example.com", "ravi@epic",
		"910000000002", "910000000003")

	byNumber := destinationAccount(record, "910000000003")
	require.NotNil(t, byNumber)
	assert.Equal(t, "910000000003", byNumber.AccountNumber)

	byHandle := destinationAccount(record, "ravi@epic")
	require.NotNil(t, byHandle)
	assert.Equal(t, "910000000002", byHandle.AccountNumber)

	empty := directoryRecord("CRN3", "Noaccount", "9000000000", "no@example.com", "")
	assert.Nil(t, destinationAccount(empty, "no@example.com"))
}

func TestDigitsOf(t *testing.T) {
	assert.Equal(t, "919876543210", digitsOf("+91 98765-43210"))
	assert.Equal(t, "", digitsOf("abc"))
	assert.Equal(t, "1234", digitsOf("1234"))
}
