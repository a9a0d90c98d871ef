package tokens

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type RefreshClaims struct {
	jwt.RegisteredClaims
}

// IssuedRefresh carries what the token store needs to persist a new token.
type IssuedRefresh struct {
	Token     string
	JTI       string
	UserID    uint
	ExpiresAt time.Time
}

// IssueRefreshToken embeds only the user id; the random JTI keeps two tokens
// minted in the same second distinct.
func (i *Issuer) IssueRefreshToken(userID uint) (*IssuedRefresh, error) {
	now := i.now()
	exp := now.Add(i.refreshTTL)
	jti := uuid.NewString()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return nil, err
	}
	return &IssuedRefresh{Token: signed, JTI: jti, UserID: userID, ExpiresAt: exp}, nil
}

type RefreshSubject struct {
	UserID uint
	JTI    string
}

func (i *Issuer) VerifyRefresh(token string) (*RefreshSubject, error) {
	var claims RefreshClaims
	if err := i.parse(token, &claims, i.refreshSecret); err != nil {
		return nil, err
	}
	id, err := subjectID(claims.Subject)
	if err != nil {
		return nil, err
	}
	return &RefreshSubject{UserID: id, JTI: claims.ID}, nil
}
