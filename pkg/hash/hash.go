package hash

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Cost matches the ten rounds the inventory backend has always used.
const Cost = 10

var ErrEmptyPassword = errors.New("empty password")

// dummyHash is compared against when the account does not exist so a missing
// e-mail costs the same bcrypt round as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("pharmacy-dummy-password"), Cost)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnCompare spends one bcrypt comparison and always reports false.
func BurnCompare(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}
