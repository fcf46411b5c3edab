package command

import (
	"log"
	"strings"

	"github.com/epicbank/ledger/internal/models"
)

// Destination resolution order: the caller's own accounts by account number
// (self-transfer), then the directory by account number, mobile, UPI handle
// or email (external transfer). Phone matching strips non-digits and accepts
// a suffix match of at least ten digits so country-code prefixes don't break
// lookups; UPI and email compare case-insensitively.

func resolveOwnAccount(record *models.UserRecord, destination string) *models.Account {
	dest := strings.TrimSpace(destination)
	if dest == "" {
		return nil
	}
	return record.AccountByNumber(dest)
}

func resolveDirectoryRecord(directory []*models.UserRecord, destination, excludeCRN string) *models.UserRecord {
	dest := strings.TrimSpace(destination)
	if dest == "" {
		return nil
	}
	destDigits := digitsOf(dest)

	var match *models.UserRecord
	for _, record := range directory {
		if record.User.CRN == excludeCRN {
			continue
		}
		if !recordMatches(record, dest, destDigits) {
			continue
		}
		if match != nil {
			// Uniqueness invariants should make this impossible; pick the
			// first by directory order and flag the collision.
			log.Printf("transfer: destination %q matches both %s and %s, using first",
				dest, match.User.CRN, record.User.CRN)
			continue
		}
		match = record
	}
	return match
}

func recordMatches(record *models.UserRecord, dest, destDigits string) bool {
	if record.AccountByNumber(dest) != nil {
		return true
	}
	if len(destDigits) >= 10 {
		stored := digitsOf(record.User.Mobile)
		if stored == destDigits || strings.HasSuffix(stored, destDigits) {
			return true
		}
	}
	if record.User.UPI != "" && strings.EqualFold(record.User.UPI, dest) {
		return true
	}
	return strings.EqualFold(record.User.Email, dest)
}

// destinationAccount picks the credited account within a matched record: the
// exact account-number match when the destination was a number, otherwise the
// recipient's first account (phone/UPI/email transfers).
func destinationAccount(record *models.UserRecord, destination string) *models.Account {
	if acc := record.AccountByNumber(strings.TrimSpace(destination)); acc != nil {
		return acc
	}
	if len(record.Accounts) > 0 {
		return &record.Accounts[0]
	}
	return nil
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
