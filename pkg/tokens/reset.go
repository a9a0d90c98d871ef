package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultResetTTL = 15 * time.Minute

	PurposePasswordReset = "password_reset"
)

// ResetClaims bind a reset link to the password it may replace: Stamp is
// derived from the stored hash, so the link dies once the password changes.
type ResetClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
	Stamp   string `json:"stamp"`
}

type ResetSubject struct {
	UserID uint
	Stamp  string
}

// deriveResetSecret keeps reset links unverifiable as refresh tokens when no
// dedicated secret is configured.
func deriveResetSecret(refreshSecret []byte) []byte {
	mac := hmac.New(sha256.New, refreshSecret)
	mac.Write([]byte(PurposePasswordReset))
	return mac.Sum(nil)
}

// PasswordStamp shortens a password hash into the value reset links carry.
func PasswordStamp(passwordHash string) string {
	return Fingerprint(passwordHash)[:16]
}

func (i *Issuer) ResetTTL() time.Duration { return i.resetTTL }

func (i *Issuer) IssueResetToken(userID uint, stamp string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.resetTTL)
	claims := ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Purpose: PurposePasswordReset,
		Stamp:   stamp,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.resetSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *Issuer) VerifyReset(token string) (*ResetSubject, error) {
	var claims ResetClaims
	if err := i.parse(token, &claims, i.resetSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposePasswordReset || claims.Stamp == "" {
		return nil, fmt.Errorf("%w: not a password reset token", ErrTokenInvalid)
	}
	id, err := subjectID(claims.Subject)
	if err != nil {
		return nil, err
	}
	return &ResetSubject{UserID: id, Stamp: claims.Stamp}, nil
}
