package middleware

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	crnContextKey   = "crn"
	emailContextKey = "email"
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

// Claims is the token payload issued at login: the customer reference number
// identifies the user record, the email is carried for logging.
type Claims struct {
	CRN   string `json:"crn"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// parseBearer extracts and verifies the bearer token from an Authorization
// header value.
func parseBearer(header string) (*Claims, error) {
	scheme, tokenString, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return nil, errors.New("malformed authorization header")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller's CRN in the request context for handlers.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}
		claims, err := parseBearer(header)
		if err != nil {
			RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}
		c.Set(crnContextKey, claims.CRN)
		c.Set(emailContextKey, claims.Email)
		c.Next()
	}
}

// GetCRN returns the authenticated customer reference number.
func GetCRN(c *gin.Context) (string, bool) {
	crn, exists := c.Get(crnContextKey)
	if !exists {
		return "", false
	}
	return crn.(string), true
}
