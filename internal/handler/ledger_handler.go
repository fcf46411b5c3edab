package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/middleware"
	"github.com/epicbank/ledger/internal/models"
)

// LedgerCommander defines the write-side operations used by LedgerHandler.
type LedgerCommander interface {
	OpenAccount(context.Context, cqrs.OpenAccountCommand) (*models.AccountView, error)
	CloseAccount(context.Context, cqrs.CloseAccountCommand) error
	Deposit(context.Context, cqrs.DepositCommand) (*models.AccountView, error)
	Withdraw(context.Context, cqrs.WithdrawCommand) (*models.AccountView, error)
	Transfer(context.Context, cqrs.TransferCommand) error
	UnlockAccount(context.Context, cqrs.UnlockAccountCommand) error
	LockSession(context.Context, cqrs.LockSessionCommand)
	ChangeMpin(context.Context, cqrs.ChangeMpinCommand) error
	SetAccountStatus(context.Context, cqrs.SetAccountStatusCommand) (*models.AccountView, error)
	ClearHistory(context.Context, cqrs.ClearHistoryCommand) error
}

// LedgerQuerier defines the read-side operations used by LedgerHandler.
type LedgerQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountView, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
	TotalBalance(context.Context, cqrs.TotalBalanceQuery) (float64, error)
}

// LedgerHandler handles the account and money-movement HTTP surface.
type LedgerHandler struct {
	commands LedgerCommander
	queries  LedgerQuerier
}

func NewLedgerHandler(commands LedgerCommander, queries LedgerQuerier) *LedgerHandler {
	return &LedgerHandler{commands: commands, queries: queries}
}

type OpenAccountRequest struct {
	BankName       string  `json:"bankName"`
	AccountType    string  `json:"accountType" validate:"omitempty,oneof=Savings Current Salary"`
	InitialBalance float64 `json:"initialBalance" validate:"gte=0"`
	Mpin           string  `json:"mpin" validate:"required,len=4,numeric"`
}

type AmountRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Memo   string  `json:"memo"`
}

type TransferRequest struct {
	Destination string  `json:"destination" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Memo        string  `json:"memo"`
	TransferID  string  `json:"transferId"`
}

type UnlockRequest struct {
	Mpin string `json:"mpin" validate:"required"`
}

type ChangeMpinRequest struct {
	NewMpin string `json:"newMpin" validate:"required,len=4,numeric"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active deactivated"`
}

type ListAccountsResponse struct {
	Accounts []models.AccountView `json:"accounts"`
}

type ListTransactionsResponse struct {
	Transactions []models.TransactionView `json:"transactions"`
}

func (h *LedgerHandler) OpenAccount(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.OpenAccount(c.Request.Context(), cqrs.OpenAccountCommand{
		CRN:            crn,
		BankName:       req.BankName,
		AccountType:    req.AccountType,
		InitialBalance: models.AmountFromDecimal(req.InitialBalance),
		Mpin:           req.Mpin,
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to open account")
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	views, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{CRN: crn})
	if err != nil {
		respondLedgerError(c, err, "Failed to list accounts")
		return
	}

	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: views})
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{
		CRN:       crn,
		AccountID: c.Param("accountId"),
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to get account")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *LedgerHandler) CloseAccount(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	err := h.commands.CloseAccount(c.Request.Context(), cqrs.CloseAccountCommand{
		CRN:       crn,
		AccountID: c.Param("accountId"),
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to close account")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) Deposit(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.Deposit(c.Request.Context(), cqrs.DepositCommand{
		CRN:       crn,
		AccountID: c.Param("accountId"),
		Amount:    models.AmountFromDecimal(req.Amount),
		Memo:      req.Memo,
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to deposit")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *LedgerHandler) Withdraw(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.Withdraw(c.Request.Context(), cqrs.WithdrawCommand{
		CRN:       crn,
		AccountID: c.Param("accountId"),
		Amount:    models.AmountFromDecimal(req.Amount),
		Memo:      req.Memo,
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to withdraw")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *LedgerHandler) Transfer(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.Transfer(c.Request.Context(), cqrs.TransferCommand{
		CRN:         crn,
		AccountID:   c.Param("accountId"),
		Destination: req.Destination,
		Amount:      models.AmountFromDecimal(req.Amount),
		Memo:        req.Memo,
		TransferID:  req.TransferID,
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to transfer")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transfer successful"})
}

func (h *LedgerHandler) UnlockAccount(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.UnlockAccount(c.Request.Context(), cqrs.UnlockAccountCommand{
		CRN:       crn,
		AccountID: c.Param("accountId"),
		Mpin:      req.Mpin,
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to unlock account")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account unlocked"})
}

func (h *LedgerHandler) LockSession(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)
	h.commands.LockSession(c.Request.Context(), cqrs.LockSessionCommand{CRN: crn})
	c.JSON(http.StatusOK, gin.H{"message": "Session locked"})
}

func (h *LedgerHandler) ChangeMpin(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	var req ChangeMpinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.ChangeMpin(c.Request.Context(), cqrs.ChangeMpinCommand{
		CRN:       crn,
		AccountID: c.Param("accountId"),
		NewMpin:   req.NewMpin,
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to change MPIN")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "MPIN updated successfully"})
}

func (h *LedgerHandler) SetAccountStatus(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.SetAccountStatus(c.Request.Context(), cqrs.SetAccountStatusCommand{
		CRN:       crn,
		AccountID: c.Param("accountId"),
		Status:    req.Status,
	})
	if err != nil {
		respondLedgerError(c, err, "Failed to update account status")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	q := cqrs.ListTransactionsQuery{
		CRN:       crn,
		AccountID: c.Param("accountId"),
		Search:    c.Query("search"),
	}
	var ok bool
	if q.From, ok = parseDateParam(c.Query("from")); !ok {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid 'from' date")
		return
	}
	if q.To, ok = parseDateParam(c.Query("to")); !ok {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid 'to' date")
		return
	}

	views, err := h.queries.ListTransactions(c.Request.Context(), q)
	if err != nil {
		respondLedgerError(c, err, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: views})
}

func (h *LedgerHandler) ClearHistory(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	if err := h.commands.ClearHistory(c.Request.Context(), cqrs.ClearHistoryCommand{CRN: crn}); err != nil {
		respondLedgerError(c, err, "Failed to clear history")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) TotalBalance(c *gin.Context) {
	crn, _ := middleware.GetCRN(c)

	total, err := h.queries.TotalBalance(c.Request.Context(), cqrs.TotalBalanceQuery{CRN: crn})
	if err != nil {
		respondLedgerError(c, err, "Failed to compute total balance")
		return
	}

	c.JSON(http.StatusOK, gin.H{"totalBalance": total})
}

// parseDateParam accepts RFC3339 or plain dates. Plain "to" dates are treated
// as inclusive by the query layer receiving end-of-day semantics from callers;
// here a bare date parses to midnight UTC.
func parseDateParam(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, true
	}
	if ts, err := time.Parse("2006-01-02", v); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// respondLedgerError maps sentinel ledger errors onto HTTP statuses.
func respondLedgerError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, models.ErrDestinationNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Destination not found")
	case errors.Is(err, models.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, models.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You can only access your own accounts")
	case errors.Is(err, models.ErrInvalidMpin):
		middleware.RespondWithError(c, http.StatusForbidden, "Invalid MPIN")
	case errors.Is(err, models.ErrMpinLocked):
		middleware.RespondWithError(c, http.StatusTooManyRequests, "Too many failed attempts, try again later")
	case errors.Is(err, models.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, "Amount must be greater than zero")
	case errors.Is(err, models.ErrInvalidStatus):
		middleware.RespondWithError(c, http.StatusBadRequest, "Status must be active or deactivated")
	case errors.Is(err, models.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, models.ErrNonZeroBalance):
		middleware.RespondWithError(c, http.StatusConflict, "Account balance must be zero before closing")
	case errors.Is(err, models.ErrAccountInactive):
		middleware.RespondWithError(c, http.StatusConflict, "Account must be active")
	case errors.Is(err, models.ErrDuplicateAccountNumber):
		middleware.RespondWithError(c, http.StatusConflict, "Could not allocate a unique account number")
	case errors.Is(err, models.ErrStorageUnavailable):
		middleware.RespondWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
