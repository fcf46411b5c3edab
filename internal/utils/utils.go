package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 10

	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}

	return fmt.Sprintf("%s-%s", prefix, string(result))
}

// GenerateAccountNumber generates a 12-digit account number starting with 91
func GenerateAccountNumber() string {
	num, _ := rand.Int(rand.Reader, big.NewInt(10000000000))
	return fmt.Sprintf("91%010d", num.Int64())
}

// GenerateCRN generates a customer reference number
func GenerateCRN() string {
	num, _ := rand.Int(rand.Reader, big.NewInt(100000000))
	return fmt.Sprintf("CRN%08d", num.Int64())
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidMpin reports whether mpin is exactly four numeric digits.
func ValidMpin(mpin string) bool {
	if len(mpin) != 4 {
		return false
	}
	for _, c := range mpin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
