package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the salted bcrypt hash of password. Costs outside
// bcrypt's range fall back to bcrypt.DefaultCost. Passwords bcrypt cannot
// take (over 72 bytes) are common.ErrorInvalidInput.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password longer than 72 bytes", common.ErrorInvalidInput)
		}
		return "", err
	}
	return string(h), nil
}

// CheckPassword compares password with hash in constant time. A mismatch is
// reported as common.ErrorUnauthorized.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return common.ErrorUnauthorized
	}
	return err
}
