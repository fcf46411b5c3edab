package query

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/models"
	"github.com/epicbank/ledger/internal/repository"
	"github.com/epicbank/ledger/internal/utils"
)

const testSecret = "test-jwt-secret"

func newAuthEnv(t *testing.T, password string) *AuthQueryService {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)

	hash, err := utils.HashPassword(password)
	require.NoError(t, err)

	store := repository.NewMemoryRecordRepository()
	require.NoError(t, store.CreateRecord(context.Background(), &models.UserRecord{
		User: models.User{
			CRN:          "CRN00000001",
			Name:         "Asha",
			Email:        "asha@example.com",
			PasswordHash: hash,
		},
	}))
	return NewAuthQueryService(store)
}

func parseClaims(t *testing.T, token string) *Claims {
	t.Helper()
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return claims
}

func TestLogin(t *testing.T) {
	svc := newAuthEnv(t, "correct-password")

	token, err := svc.Login(context.Background(), cqrs.LoginCommand{
		Email: "asha@example.com", Password: "correct-password",
	})
	require.NoError(t, err)

	claims := parseClaims(t, token)
	assert.Equal(t, "CRN00000001", claims.CRN)
	assert.Equal(t, "asha@example.com", claims.Email)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newAuthEnv(t, "correct-password")

	_, err := svc.Login(context.Background(), cqrs.LoginCommand{
		Email: "asha@example.com", Password: "wrong-password",
	})
	assert.Error(t, err)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc := newAuthEnv(t, "correct-password")

	_, err := svc.Login(context.Background(), cqrs.LoginCommand{
		Email: "ghost@example.com", Password: "correct-password",
	})
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	svc := newAuthEnv(t, "correct-password")

	token, err := svc.Login(context.Background(), cqrs.LoginCommand{
		Email: "asha@example.com", Password: "correct-password",
	})
	require.NoError(t, err)

	fresh, err := svc.RefreshToken(context.Background(), cqrs.RefreshTokenCommand{Token: token})
	require.NoError(t, err)

	claims := parseClaims(t, fresh)
	assert.Equal(t, "CRN00000001", claims.CRN)
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	svc := newAuthEnv(t, "correct-password")

	_, err := svc.RefreshToken(context.Background(), cqrs.RefreshTokenCommand{Token: "not.a.jwt"})
	assert.Error(t, err)
}
