package security

import (
	"errors"
	"fmt"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

// HashCost is fixed so hashes stay comparable across deployments.
const HashCost = 10

// MaxPasswordBytes is the bcrypt input limit.
const MaxPasswordBytes = 72

var ErrWeakPassword = errors.New("password is not strong enough")

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), HashCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// CheckStrength rejects passwords below minEntropy bits.
func CheckStrength(plain string, minEntropy float64) error {
	if minEntropy <= 0 {
		return nil
	}

	err := passwordvalidator.Validate(plain, minEntropy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	return nil
}
