package tokens

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified payload of an access token.
type Identity struct {
	UserID uint
	Email  string
	Role   string
	Expiry time.Time
}

func (i *Issuer) IssueAccessToken(userID uint, email, role string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.accessTTL)
	claims := AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess returns the identity or ErrTokenExpired / ErrTokenInvalid.
func (i *Issuer) VerifyAccess(token string) (*Identity, error) {
	var claims AccessClaims
	if err := i.parse(token, &claims, i.accessSecret); err != nil {
		return nil, err
	}
	id, err := subjectID(claims.Subject)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID: id,
		Email:  claims.Email,
		Role:   claims.Role,
		Expiry: claims.ExpiresAt.Time,
	}, nil
}
