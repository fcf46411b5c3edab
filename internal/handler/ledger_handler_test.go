package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/models"
)

type mockCommander struct {
	openAccountFunc  func(context.Context, cqrs.OpenAccountCommand) (*models.AccountView, error)
	closeAccountFunc func(context.Context, cqrs.CloseAccountCommand) error
	depositFunc      func(context.Context, cqrs.DepositCommand) (*models.AccountView, error)
	withdrawFunc     func(context.Context, cqrs.WithdrawCommand) (*models.AccountView, error)
	transferFunc     func(context.Context, cqrs.TransferCommand) error
	unlockFunc       func(context.Context, cqrs.UnlockAccountCommand) error
	lockSessionFunc  func(context.Context, cqrs.LockSessionCommand)
	changeMpinFunc   func(context.Context, cqrs.ChangeMpinCommand) error
	setStatusFunc    func(context.Context, cqrs.SetAccountStatusCommand) (*models.AccountView, error)
	clearHistoryFunc func(context.Context, cqrs.ClearHistoryCommand) error
}

func (m *mockCommander) OpenAccount(ctx context.Context, cmd cqrs.OpenAccountCommand) (*models.AccountView, error) {
	return m.openAccountFunc(ctx, cmd)
}
func (m *mockCommander) CloseAccount(ctx context.Context, cmd cqrs.CloseAccountCommand) error {
	return m.closeAccountFunc(ctx, cmd)
}
func (m *mockCommander) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (*models.AccountView, error) {
	return m.depositFunc(ctx, cmd)
}
func (m *mockCommander) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*models.AccountView, error) {
	return m.withdrawFunc(ctx, cmd)
}
func (m *mockCommander) Transfer(ctx context.Context, cmd cqrs.TransferCommand) error {
	return m.transferFunc(ctx, cmd)
}
func (m *mockCommander) UnlockAccount(ctx context.Context, cmd cqrs.UnlockAccountCommand) error {
	return m.unlockFunc(ctx, cmd)
}
func (m *mockCommander) LockSession(ctx context.Context, cmd cqrs.LockSessionCommand) {
	if m.lockSessionFunc != nil {
		m.lockSessionFunc(ctx, cmd)
	}
}
func (m *mockCommander) ChangeMpin(ctx context.Context, cmd cqrs.ChangeMpinCommand) error {
	return m.changeMpinFunc(ctx, cmd)
}
func (m *mockCommander) SetAccountStatus(ctx context.Context, cmd cqrs.SetAccountStatusCommand) (*models.AccountView, error) {
	return m.setStatusFunc(ctx, cmd)
}
func (m *mockCommander) ClearHistory(ctx context.Context, cmd cqrs.ClearHistoryCommand) error {
	return m.clearHistoryFunc(ctx, cmd)
}

type mockQuerier struct {
	getAccountFunc       func(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	listAccountsFunc     func(context.Context, cqrs.ListAccountsQuery) ([]models.AccountView, error)
	listTransactionsFunc func(context.Context, cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
	totalBalanceFunc     func(context.Context, cqrs.TotalBalanceQuery) (float64, error)
}

func (m *mockQuerier) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	return m.getAccountFunc(ctx, q)
}
func (m *mockQuerier) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	return m.listAccountsFunc(ctx, q)
}
func (m *mockQuerier) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	return m.listTransactionsFunc(ctx, q)
}
func (m *mockQuerier) TotalBalance(ctx context.Context, q cqrs.TotalBalanceQuery) (float64, error) {
	return m.totalBalanceFunc(ctx, q)
}

// testRouter wires the handler behind a stub auth middleware that injects the
// caller's CRN the way AuthMiddleware does after verifying a token.
func testRouter(h *LedgerHandler, crn string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("crn", crn)
		c.Next()
	})

	v1 := router.Group("/v1")
	v1.POST("/accounts", h.OpenAccount)
	v1.GET("/accounts", h.ListAccounts)
	v1.GET("/accounts/:accountId", h.GetAccount)
	v1.DELETE("/accounts/:accountId", h.CloseAccount)
	v1.POST("/accounts/:accountId/deposit", h.Deposit)
	v1.POST("/accounts/:accountId/withdraw", h.Withdraw)
	v1.POST("/accounts/:accountId/transfer", h.Transfer)
	v1.POST("/accounts/:accountId/unlock", h.UnlockAccount)
	v1.PUT("/accounts/:accountId/mpin", h.ChangeMpin)
	v1.PUT("/accounts/:accountId/status", h.SetAccountStatus)
	v1.GET("/accounts/:accountId/transactions", h.ListTransactions)
	v1.POST("/session/lock", h.LockSession)
	v1.DELETE("/transactions", h.ClearHistory)
	v1.GET("/balance", h.TotalBalance)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOpenAccountHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		commandErr error
		wantStatus int
	}{
		{
			name:       "success",
			body:       gin.H{"mpin": "1234", "accountType": "Savings", "initialBalance": 100},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing mpin",
			body:       gin.H{"accountType": "Savings"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non numeric mpin",
			body:       gin.H{"mpin": "12a4"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad account type",
			body:       gin.H{"mpin": "1234", "accountType": "Offshore"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative initial balance",
			body:       gin.H{"mpin": "1234", "initialBalance": -5},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "storage down",
			body:       gin.H{"mpin": "1234"},
			commandErr: models.ErrStorageUnavailable,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commands := &mockCommander{
				openAccountFunc: func(_ context.Context, cmd cqrs.OpenAccountCommand) (*models.AccountView, error) {
					if tt.commandErr != nil {
						return nil, tt.commandErr
					}
					assert.Equal(t, "CRN1", cmd.CRN)
					return &models.AccountView{ID: "acc-1", Balance: cmd.InitialBalance.Decimal()}, nil
				},
			}
			router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

			w := doJSON(router, http.MethodPost, "/v1/accounts", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDepositHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		commandErr error
		wantStatus int
	}{
		{"success", gin.H{"amount": 25.50}, nil, http.StatusOK},
		{"zero amount", gin.H{"amount": 0}, nil, http.StatusBadRequest},
		{"negative amount", gin.H{"amount": -10}, nil, http.StatusBadRequest},
		{"malformed body", "not-json", nil, http.StatusBadRequest},
		{"unknown account", gin.H{"amount": 10}, models.ErrAccountNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commands := &mockCommander{
				depositFunc: func(_ context.Context, cmd cqrs.DepositCommand) (*models.AccountView, error) {
					if tt.commandErr != nil {
						return nil, tt.commandErr
					}
					assert.Equal(t, "acc-1", cmd.AccountID)
					assert.Equal(t, models.Amount(2550), cmd.Amount)
					return &models.AccountView{ID: "acc-1", Balance: 125.50}, nil
				},
			}
			router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

			w := doJSON(router, http.MethodPost, "/v1/accounts/acc-1/deposit", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				var view models.AccountView
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
				assert.Equal(t, 125.50, view.Balance)
			}
		})
	}
}

func TestWithdrawHandlerInsufficientFunds(t *testing.T) {
	commands := &mockCommander{
		withdrawFunc: func(context.Context, cqrs.WithdrawCommand) (*models.AccountView, error) {
			return nil, models.ErrInsufficientFunds
		},
	}
	router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

	w := doJSON(router, http.MethodPost, "/v1/accounts/acc-1/withdraw", gin.H{"amount": 9999})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTransferHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		commandErr error
		wantStatus int
	}{
		{"success", gin.H{"destination": "910000000002", "amount": 100}, nil, http.StatusOK},
		{"missing destination", gin.H{"amount": 100}, nil, http.StatusBadRequest},
		{"unknown destination", gin.H{"destination": "x@y.com", "amount": 100}, models.ErrDestinationNotFound, http.StatusNotFound},
		{"insufficient funds", gin.H{"destination": "910000000002", "amount": 100}, models.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commands := &mockCommander{
				transferFunc: func(_ context.Context, cmd cqrs.TransferCommand) error {
					if tt.commandErr != nil {
						return tt.commandErr
					}
					assert.Equal(t, "CRN1", cmd.CRN)
					assert.Equal(t, models.Amount(10000), cmd.Amount)
					return nil
				},
			}
			router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

			w := doJSON(router, http.MethodPost, "/v1/accounts/acc-1/transfer", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestTransferHandlerForwardsIdempotencyKey(t *testing.T) {
	var got string
	commands := &mockCommander{
		transferFunc: func(_ context.Context, cmd cqrs.TransferCommand) error {
			got = cmd.TransferID
			return nil
		},
	}
	router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

	w := doJSON(router, http.MethodPost, "/v1/accounts/acc-1/transfer", gin.H{
		"destination": "910000000002", "amount": 50, "transferId": "client-key-7",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-key-7", got)
}

func TestUnlockHandler(t *testing.T) {
	tests := []struct {
		name       string
		commandErr error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"wrong mpin", models.ErrInvalidMpin, http.StatusForbidden},
		{"locked out", models.ErrMpinLocked, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commands := &mockCommander{
				unlockFunc: func(context.Context, cqrs.UnlockAccountCommand) error {
					return tt.commandErr
				},
			}
			router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

			w := doJSON(router, http.MethodPost, "/v1/accounts/acc-1/unlock", gin.H{"mpin": "1234"})
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCloseAccountHandler(t *testing.T) {
	tests := []struct {
		name       string
		commandErr error
		wantStatus int
	}{
		{"success", nil, http.StatusNoContent},
		{"non zero balance", models.ErrNonZeroBalance, http.StatusConflict},
		{"inactive", models.ErrAccountInactive, http.StatusConflict},
		{"not found", models.ErrAccountNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commands := &mockCommander{
				closeAccountFunc: func(context.Context, cqrs.CloseAccountCommand) error {
					return tt.commandErr
				},
			}
			router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

			w := doJSON(router, http.MethodDelete, "/v1/accounts/acc-1", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestChangeMpinHandlerValidation(t *testing.T) {
	router := testRouter(NewLedgerHandler(&mockCommander{}, &mockQuerier{}), "CRN1")

	w := doJSON(router, http.MethodPut, "/v1/accounts/acc-1/mpin", gin.H{"newMpin": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetStatusHandlerValidation(t *testing.T) {
	router := testRouter(NewLedgerHandler(&mockCommander{}, &mockQuerier{}), "CRN1")

	w := doJSON(router, http.MethodPut, "/v1/accounts/acc-1/status", gin.H{"status": "frozen"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccountHandlerForbidden(t *testing.T) {
	queries := &mockQuerier{
		getAccountFunc: func(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error) {
			return nil, models.ErrForbidden
		},
	}
	router := testRouter(NewLedgerHandler(&mockCommander{}, queries), "CRN2")

	w := doJSON(router, http.MethodGet, "/v1/accounts/acc-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListTransactionsHandler(t *testing.T) {
	queries := &mockQuerier{
		listTransactionsFunc: func(_ context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
			assert.Equal(t, "acc-1", q.AccountID)
			assert.Equal(t, "rent", q.Search)
			assert.Equal(t, 2024, q.From.Year())
			return []models.TransactionView{{ID: "t1"}}, nil
		},
	}
	router := testRouter(NewLedgerHandler(&mockCommander{}, queries), "CRN1")

	w := doJSON(router, http.MethodGet, "/v1/accounts/acc-1/transactions?search=rent&from=2024-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListTransactionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Transactions, 1)
}

func TestListTransactionsHandlerBadDate(t *testing.T) {
	router := testRouter(NewLedgerHandler(&mockCommander{}, &mockQuerier{}), "CRN1")

	w := doJSON(router, http.MethodGet, "/v1/accounts/acc-1/transactions?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTotalBalanceHandler(t *testing.T) {
	queries := &mockQuerier{
		totalBalanceFunc: func(context.Context, cqrs.TotalBalanceQuery) (float64, error) {
			return 1234.56, nil
		},
	}
	router := testRouter(NewLedgerHandler(&mockCommander{}, queries), "CRN1")

	w := doJSON(router, http.MethodGet, "/v1/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1234.56, resp["totalBalance"])
}

func TestLockSessionHandler(t *testing.T) {
	locked := false
	commands := &mockCommander{
		lockSessionFunc: func(_ context.Context, cmd cqrs.LockSessionCommand) {
			locked = true
			assert.Equal(t, "CRN1", cmd.CRN)
		},
	}
	router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

	w := doJSON(router, http.MethodPost, "/v1/session/lock", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, locked)
}

func TestClearHistoryHandler(t *testing.T) {
	commands := &mockCommander{
		clearHistoryFunc: func(context.Context, cqrs.ClearHistoryCommand) error {
			return nil
		},
	}
	router := testRouter(NewLedgerHandler(commands, &mockQuerier{}), "CRN1")

	w := doJSON(router, http.MethodDelete, "/v1/transactions", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
