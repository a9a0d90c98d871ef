// Package barcode generates and checks the 12-digit UPC-A codes printed on
// medicine labels.
package barcode

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

const Length = 12

var ErrInvalid = errors.New("invalid UPC-A barcode")

// CheckDigit computes the 12th digit from the first 11. Even (0-based)
// positions weigh 3, odd positions weigh 1.
func CheckDigit(digits string) (byte, error) {
	if len(digits) != Length-1 {
		return 0, ErrInvalid
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return 0, ErrInvalid
		}
		w := 1
		if i%2 == 0 {
			w = 3
		}
		sum += int(d-'0') * w
	}
	return byte('0' + (10-sum%10)%10), nil
}

// Generate draws 11 random digits from r (crypto/rand when nil) and appends
// the check digit.
func Generate(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, Length)
	ten := big.NewInt(10)
	for i := 0; i < Length-1; i++ {
		n, err := rand.Int(r, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	check, err := CheckDigit(string(buf[:Length-1]))
	if err != nil {
		return "", err
	}
	buf[Length-1] = check
	return string(buf), nil
}

func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	check, err := CheckDigit(code[:Length-1])
	if err != nil {
		return false
	}
	return code[Length-1] == check
}
