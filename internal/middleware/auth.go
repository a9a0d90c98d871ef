package middleware

import (
	"errors"
	"net/http"
	"slices"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy/pkg/logging"
	"github.com/Skotchmaster/pharmacy/pkg/tokens"
)

const (
	identityKey = "identity"
	UserIDKey   = "user_id"
	EmailKey    = "email"
	RoleKey     = "role"
)

type Verifier interface {
	VerifyAccess(token string) (*tokens.Identity, error)
}

// RequireAuth verifies "Authorization: Bearer <access token>". A missing or
// expired token answers 401 so clients can refresh; anything else that fails
// verification answers 403.
func RequireAuth(v Verifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  identityKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return v.VerifyAccess(auth)
		},
		SuccessHandler: func(c echo.Context) {
			id := c.Get(identityKey).(*tokens.Identity)
			c.Set(UserIDKey, id.UserID)
			c.Set(EmailKey, id.Email)
			c.Set(RoleKey, id.Role)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			l := logging.FromContext(c.Request().Context()).With("mw", "require_auth")
			switch {
			case errors.Is(err, tokens.ErrTokenExpired):
				l.Info("auth_rejected", "status", 401, "reason", "access token expired")
				return echo.NewHTTPError(http.StatusUnauthorized, "access token expired")
			case errors.Is(err, tokens.ErrTokenInvalid):
				l.Warn("auth_rejected", "status", 403, "reason", "invalid access token")
				return echo.NewHTTPError(http.StatusForbidden, "invalid access token")
			default:
				l.Info("auth_rejected", "status", 401, "reason", "missing access token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
		},
	})
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(RoleKey).(string)
			if !slices.Contains(roles, role) {
				logging.FromContext(c.Request().Context()).Warn("auth_rejected",
					"status", 403, "reason", "role not allowed", "role", role)
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			return next(c)
		}
	}
}

func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(UserIDKey).(uint)
	return id, ok
}

func Role(c echo.Context) string {
	role, _ := c.Get(RoleKey).(string)
	return role
}
