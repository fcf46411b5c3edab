// Package normalize migrates persisted user records into the canonical shape.
// Three historical shapes exist in the wild: the canonical one written by this
// service (schemaVersion 2, minor-unit balances), an older one where account
// fields are nested under "accountDetails" with a {available, currency}
// balance object, and the oldest with a single top-level "account" object.
// Every load goes through NormalizeRecord exactly once; nothing downstream
// ever sees a legacy shape.
package normalize

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/epicbank/ledger/internal/models"
	"github.com/epicbank/ledger/internal/utils"
)

// currentSchema marks records written by this service. Records without it are
// legacy: their balances are decimal major units and their users may carry a
// plaintext password.
const currentSchema = 2

// fallbackMpin is assigned when an account has no MPIN and the user has no
// login PIN either. Kept for behavioural parity with the prototype; a warning
// is logged on every assignment.
const fallbackMpin = "1234"

type persistedUser struct {
	CRN          string `json:"crn"`
	Name         string `json:"name"`
	Mobile       string `json:"mobile"`
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
	PIN          string `json:"pin,omitempty"`
	UPI          string `json:"upi,omitempty"`
}

type persistedAccount struct {
	ID            string `json:"id"`
	AccountNumber string `json:"accountNumber"`
	BankName      string `json:"bankName"`
	AccountType   string `json:"accountType"`
	Balance       int64  `json:"balance"`
	Currency      string `json:"currency"`
	MPIN          string `json:"mpin"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdTimestamp,omitempty"`
	UpdatedAt     string `json:"updatedTimestamp,omitempty"`
}

type persistedTransaction struct {
	ID           string `json:"id"`
	AccountID    string `json:"accountId,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Type         string `json:"type,omitempty"` // legacy field name
	Counterparty string `json:"counterparty,omitempty"`
	Description  string `json:"description,omitempty"`
	TransferID   string `json:"transferId,omitempty"`
	Status       string `json:"status,omitempty"`
	CreatedAt    string `json:"createdTimestamp,omitempty"`
}

type persistedRecord struct {
	Schema       int                    `json:"schemaVersion,omitempty"`
	User         persistedUser          `json:"user"`
	Accounts     []json.RawMessage      `json:"accounts,omitempty"`
	Transactions []rawTransaction       `json:"transactions,omitempty"`
	Account      map[string]any         `json:"account,omitempty"` // legacy singular
	Balance      map[string]json.Number `json:"balance,omitempty"` // legacy singular
}

// rawAccount tolerates every shape an account sub-record has been stored in.
// MPIN and account numbers are decoded as any because old writers stored them
// as either strings or numbers.
type rawAccount struct {
	ID             string          `json:"id"`
	AccountNumber  any             `json:"accountNumber"`
	BankName       string          `json:"bankName"`
	AccountType    string          `json:"accountType"`
	Balance        json.RawMessage `json:"balance"`
	Currency       string          `json:"currency"`
	MPIN           any             `json:"mpin"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"createdTimestamp"`
	LegacyCreated  string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedTimestamp"`
	LegacyUpdated  string          `json:"lastUpdated"`
	AccountDetails *struct {
		AccountNumber any    `json:"accountNumber"`
		AccountType   string `json:"accountType"`
		BankName      string `json:"bankName"`
		MPIN          any    `json:"mpin"`
	} `json:"accountDetails"`
}

type rawTransaction struct {
	persistedTransaction
	AmountRaw       json.Number `json:"amount"`
	Title           string      `json:"title,omitempty"`
	BeneficiaryName string      `json:"beneficiaryName,omitempty"`
	Timestamp       string      `json:"timestamp,omitempty"`
}

// NormalizeRecord converts a raw persisted record of any historical shape into
// the canonical UserRecord. Legacy plaintext passwords are hashed on the way
// in; accounts without an MPIN get the user's login PIN, then fallbackMpin.
func NormalizeRecord(raw []byte) (*models.UserRecord, error) {
	var pr persistedRecord
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}
	if pr.User.CRN == "" {
		return nil, fmt.Errorf("user record has no crn")
	}

	legacy := pr.Schema < currentSchema

	user := models.User{
		CRN:          pr.User.CRN,
		Name:         pr.User.Name,
		Mobile:       pr.User.Mobile,
		Email:        pr.User.Email,
		PasswordHash: pr.User.PasswordHash,
		PIN:          pr.User.PIN,
		UPI:          pr.User.UPI,
	}
	if user.PasswordHash == "" && pr.User.Password != "" {
		hash, err := utils.HashPassword(pr.User.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash legacy password: %w", err)
		}
		log.Printf("normalize: hashed legacy plaintext password for %s", user.CRN)
		user.PasswordHash = hash
	}

	defaultMpin := user.PIN
	if !utils.ValidMpin(defaultMpin) {
		defaultMpin = fallbackMpin
	}

	record := &models.UserRecord{User: user}

	for i, rawAcc := range pr.Accounts {
		acc, err := normalizeAccount(rawAcc, legacy, defaultMpin, user.CRN)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize account %d: %w", i, err)
		}
		record.Accounts = append(record.Accounts, *acc)
	}

	// Oldest shape: a single top-level "account" object with the balance held
	// alongside it as {available}.
	if len(record.Accounts) == 0 && pr.Account != nil {
		acc := legacySingularAccount(pr.Account, pr.Balance, defaultMpin, user.CRN)
		record.Accounts = append(record.Accounts, *acc)
	}

	for _, rt := range pr.Transactions {
		record.Transactions = append(record.Transactions, normalizeTransaction(rt, legacy))
	}
	if len(record.Transactions) > models.MaxHistory {
		record.Transactions = record.Transactions[:models.MaxHistory]
	}

	return record, nil
}

// EncodeRecord serializes a canonical record for persistence, stamping the
// current schema version so future loads skip the legacy conversions.
func EncodeRecord(record *models.UserRecord) ([]byte, error) {
	pr := persistedRecord{
		Schema: currentSchema,
		User: persistedUser{
			CRN:          record.User.CRN,
			Name:         record.User.Name,
			Mobile:       record.User.Mobile,
			Email:        record.User.Email,
			PasswordHash: record.User.PasswordHash,
			PIN:          record.User.PIN,
			UPI:          record.User.UPI,
		},
	}
	for _, a := range record.Accounts {
		pa := persistedAccount{
			ID:            a.ID,
			AccountNumber: a.AccountNumber,
			BankName:      a.BankName,
			AccountType:   a.AccountType,
			Balance:       int64(a.Balance),
			Currency:      a.Currency,
			MPIN:          a.MPIN,
			Status:        a.Status,
			CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339Nano),
			UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
		b, err := json.Marshal(pa)
		if err != nil {
			return nil, err
		}
		pr.Accounts = append(pr.Accounts, b)
	}
	for _, t := range record.Transactions {
		pr.Transactions = append(pr.Transactions, rawTransaction{
			persistedTransaction: persistedTransaction{
				ID:           t.ID,
				AccountID:    t.AccountID,
				Kind:         t.Kind,
				Counterparty: t.Counterparty,
				Description:  t.Description,
				TransferID:   t.TransferID,
				Status:       t.Status,
				CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339Nano),
			},
			AmountRaw: json.Number(fmt.Sprintf("%d", int64(t.Amount))),
		})
	}
	return json.Marshal(pr)
}

func normalizeAccount(raw json.RawMessage, legacy bool, defaultMpin, crn string) (*models.Account, error) {
	var ra rawAccount
	if err := json.Unmarshal(raw, &ra); err != nil {
		return nil, err
	}

	acc := &models.Account{
		ID:          ra.ID,
		BankName:    ra.BankName,
		AccountType: ra.AccountType,
		Currency:    ra.Currency,
		Status:      ra.Status,
	}
	acc.AccountNumber = stringify(ra.AccountNumber)
	acc.MPIN = stringify(ra.MPIN)

	// Nested shape: the interesting fields live under accountDetails and the
	// balance is an {available, currency} object.
	if ra.AccountDetails != nil {
		acc.AccountNumber = stringify(ra.AccountDetails.AccountNumber)
		acc.AccountType = ra.AccountDetails.AccountType
		acc.BankName = ra.AccountDetails.BankName
		acc.MPIN = stringify(ra.AccountDetails.MPIN)
	}

	balance, currency, err := normalizeBalance(ra.Balance, legacy)
	if err != nil {
		return nil, err
	}
	acc.Balance = balance
	if currency != "" {
		acc.Currency = currency
	}

	applyAccountDefaults(acc, defaultMpin, crn)
	acc.CreatedAt = parseTime(ra.CreatedAt, ra.LegacyCreated)
	acc.UpdatedAt = parseTime(ra.UpdatedAt, ra.LegacyUpdated)
	return acc, nil
}

func legacySingularAccount(raw map[string]any, balance map[string]json.Number, defaultMpin, crn string) *models.Account {
	acc := &models.Account{
		AccountNumber: stringify(raw["accountNumber"]),
		BankName:      stringify(raw["bankName"]),
		AccountType:   stringify(raw["accountType"]),
		MPIN:          stringify(raw["mpin"]),
	}
	if available, ok := balance["available"]; ok {
		if f, err := available.Float64(); err == nil {
			acc.Balance = models.AmountFromDecimal(f)
		}
	}
	if acc.ID == "" {
		acc.ID = "acc-primary"
	}
	applyAccountDefaults(acc, defaultMpin, crn)
	acc.CreatedAt = time.Now().UTC()
	acc.UpdatedAt = acc.CreatedAt
	return acc
}

// applyAccountDefaults fills the gaps every legacy shape leaves behind.
func applyAccountDefaults(acc *models.Account, defaultMpin, crn string) {
	if acc.ID == "" {
		acc.ID = "acc-" + acc.AccountNumber
	}
	if acc.BankName == "" {
		acc.BankName = "Epic Bank"
	}
	if acc.AccountType == "" {
		acc.AccountType = models.AccountTypeSavings
	}
	if acc.Currency == "" {
		acc.Currency = "INR"
	}
	if acc.Status != models.AccountStatusActive && acc.Status != models.AccountStatusDeactivated {
		acc.Status = models.AccountStatusActive
	}
	if !utils.ValidMpin(acc.MPIN) {
		log.Printf("normalize: account %s of %s has no valid mpin, assigning default", acc.AccountNumber, crn)
		acc.MPIN = defaultMpin
	}
}

func normalizeBalance(raw json.RawMessage, legacy bool) (models.Amount, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, "", nil
	}
	// Nested shape: {"available": 123.45, "currency": "INR"}
	if raw[0] == '{' {
		var obj struct {
			Available json.Number `json:"available"`
			Currency  string      `json:"currency"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, "", err
		}
		f, _ := obj.Available.Float64()
		return models.AmountFromDecimal(f), obj.Currency, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, "", err
	}
	if legacy {
		f, err := num.Float64()
		if err != nil {
			return 0, "", err
		}
		return models.AmountFromDecimal(f), "", nil
	}
	v, err := num.Int64()
	if err != nil {
		return 0, "", err
	}
	return models.Amount(v), "", nil
}

func normalizeTransaction(rt rawTransaction, legacy bool) models.Transaction {
	t := models.Transaction{
		ID:           rt.ID,
		AccountID:    rt.AccountID,
		Kind:         rt.Kind,
		Counterparty: rt.Counterparty,
		Description:  rt.Description,
		TransferID:   rt.TransferID,
		Status:       rt.Status,
	}
	if t.Kind == "" {
		t.Kind = legacyKind(rt.Type)
	}
	if t.Counterparty == "" {
		t.Counterparty = rt.BeneficiaryName
	}
	if t.Description == "" {
		t.Description = rt.Title
	}
	if t.Status == "" {
		t.Status = "completed"
	}
	if legacy {
		f, _ := rt.AmountRaw.Float64()
		t.Amount = models.AmountFromDecimal(f)
	} else {
		v, _ := rt.AmountRaw.Int64()
		t.Amount = models.Amount(v)
	}
	t.CreatedAt = parseTime(rt.persistedTransaction.CreatedAt, rt.Timestamp)
	return t
}

func legacyKind(legacyType string) string {
	switch strings.ToUpper(legacyType) {
	case "DEPOSIT":
		return models.TxnDeposit
	case "WITHDRAW", "WITHDRAWAL":
		return models.TxnWithdrawal
	case "TRANSFER", "DEBIT":
		return models.TxnTransferOut
	case "CREDIT":
		return models.TxnTransferIn
	default:
		return models.TxnDeposit
	}
}

func parseTime(candidates ...string) time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339Nano, c); err == nil {
			return ts
		}
		if ts, err := time.Parse(time.RFC3339, c); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
