package query

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/repository"
	"github.com/epicbank/ledger/internal/utils"
)

var (
	jwtSecretOnce sync.Once
	jwtSecretVal  []byte
)

func jwtSecret() []byte {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			panic("JWT_SECRET environment variable is not set")
		}
		jwtSecretVal = []byte(secret)
	})
	return jwtSecretVal
}

// Claims is the JWT payload.
type Claims struct {
	CRN   string `json:"crn"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthQueryService handles login and token refresh. There's no CommandService
// for auth because these operations don't mutate ledger state.
type AuthQueryService struct {
	store repository.RecordStore
}

func NewAuthQueryService(store repository.RecordStore) *AuthQueryService {
	return &AuthQueryService{store: store}
}

func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (string, error) {
	record, err := s.store.FindByEmail(ctx, cmd.Email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}
	if !utils.CheckPassword(cmd.Password, record.User.PasswordHash) {
		return "", fmt.Errorf("invalid credentials")
	}
	return s.generateToken(record.User.CRN, record.User.Email)
}

func (s *AuthQueryService) RefreshToken(ctx context.Context, cmd cqrs.RefreshTokenCommand) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(cmd.Token, claims, func(token *jwt.Token) (any, error) {
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return s.generateToken(claims.CRN, claims.Email)
}

func (s *AuthQueryService) generateToken(crn, email string) (string, error) {
	claims := Claims{
		CRN:   crn,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret())
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}
