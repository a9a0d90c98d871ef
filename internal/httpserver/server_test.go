package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/internal/mykafka"
	"github.com/Skotchmaster/pharmacy/internal/repo"
	"github.com/Skotchmaster/pharmacy/internal/service"
	"github.com/Skotchmaster/pharmacy/internal/testutil"
	"github.com/Skotchmaster/pharmacy/pkg/logging"
	"github.com/Skotchmaster/pharmacy/pkg/tokens"
)

type testServer struct {
	t  *testing.T
	e  *echo.Echo
	db *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	r := repo.New(db)
	iss := testutil.NewIssuer(t)

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: &service.AuthService{
			Users: r, Tokens: r, Issuer: iss, Events: mykafka.Nop{}, UserTopic: "user_events",
		}},
		InventoryHandler: &InventoryHTTP{Svc: &service.InventoryService{
			Repo: r, Events: mykafka.Nop{}, Topic: "inventory_events",
		}},
		Verifier: iss,
	})

	testutil.CreateUser(t, db, "Alice", "a@b.com", "secret", models.RoleAdmin)
	testutil.CreateUser(t, db, "Mel", "member@b.com", "secret", models.RoleMember)
	return &testServer{t: t, e: e, db: db}
}

func (s *testServer) do(method, path, bearer string, body any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (s *testServer) login(email string) (access, refresh string) {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "secret"})
	require.Equal(s.t, http.StatusOK, code, body)
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func TestLoginThenMe(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "secret"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Login success", body["message"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "admin", user["role"])

	code, me := s.do(http.MethodGet, "/auth/me", body["accessToken"].(string), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, user["id"], me["id"])
	assert.Equal(t, "a@b.com", me["email"])
	assert.NotContains(t, me, "password")
	assert.NotContains(t, me, "password_hash")
	assert.NotContains(t, me, "PasswordHash")
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@b.com", "password": "secret"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", body["message"])

	code, body = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Wrong password", body["message"])
}

func TestRefreshTokenRotation(t *testing.T) {
	s := newTestServer(t)
	_, refresh := s.login("a@b.com")

	code, body := s.do(http.MethodPost, "/auth/refresh-token", "", map[string]string{"token": refresh})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEqual(t, refresh, body["refreshToken"])

	code, _ = s.do(http.MethodPost, "/auth/refresh-token", "", map[string]string{"token": refresh})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/auth/refresh-token", "", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/auth/refresh-token", "", map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	_, refresh := s.login("a@b.com")

	for i := 0; i < 2; i++ {
		code, body := s.do(http.MethodPost, "/auth/logout", "", map[string]string{"token": refresh})
		require.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, body["message"])
	}

	code, _ := s.do(http.MethodPost, "/auth/logout", "", map[string]string{"token": "unknown"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/auth/refresh-token", "", map[string]string{"token": refresh})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	s := newTestServer(t)
	access, refreshA := s.login("a@b.com")
	_, refreshB := s.login("a@b.com")

	code, _ := s.do(http.MethodPost, "/auth/logout-all", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(http.MethodPost, "/auth/logout-all", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logged out from all sessions", body["message"])

	for _, tok := range []string{refreshA, refreshB} {
		code, _ = s.do(http.MethodPost, "/auth/refresh-token", "", map[string]string{"token": tok})
		assert.Equal(t, http.StatusForbidden, code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "a@b.com"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Password reset link sent to your email", body["message"])

	code, _ = s.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ghost@b.com"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/auth/reset-password", "", map[string]string{"token": "garbage", "newPassword": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	var user models.User
	require.NoError(t, s.db.Where("email = ?", "a@b.com").First(&user).Error)
	token, _, err := testutil.NewIssuer(t).IssueResetToken(user.ID, tokens.PasswordStamp(user.PasswordHash))
	require.NoError(t, err)

	code, body = s.do(http.MethodPost, "/auth/reset-password", "", map[string]string{"token": token, "newPassword": "changed"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Password reset successful", body["message"])

	code, body = s.do(http.MethodPost, "/auth/reset-password", "", map[string]string{"token": token, "newPassword": "again"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid or expired token", body["message"])

	code, _ = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "changed"})
	assert.Equal(t, http.StatusOK, code)
}

func TestMeRequiresValidToken(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRegisterAndProvisioning(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login("a@b.com")
	member, _ := s.login("member@b.com")

	payload := map[string]string{"name": "Bob", "email": "bob@b.com", "password": "pw"}

	code, _ := s.do(http.MethodPost, "/auth/register", member, payload)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(http.MethodPost, "/auth/register", admin, payload)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "member", body["role"])

	code, _ = s.do(http.MethodPost, "/auth/register", admin, payload)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodPost, "/auth/register", admin, map[string]string{
		"name": "Eve", "email": "eve@b.com", "password": "pw", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.do(http.MethodPost, "/auth/create-superadmin", "", payload)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Super admin already created!", body["message"])
}

func TestInventoryFlow(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login("a@b.com")
	member, _ := s.login("member@b.com")

	code, _ := s.do(http.MethodGet, "/categories", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/categories", member, map[string]string{"name": "Analgesics"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/categories", admin, map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, cat := s.do(http.MethodPost, "/categories", admin, map[string]string{"name": "Analgesics"})
	require.Equal(t, http.StatusCreated, code)
	catID := cat["id"]

	code, _ = s.do(http.MethodPost, "/medicines", admin, map[string]any{"name": "Paracetamol", "company": "Acme"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/medicines", admin, map[string]any{
		"name": "Paracetamol", "company": "Acme", "cost_price": 1.5, "sale_price": 3, "category_id": 999,
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, med := s.do(http.MethodPost, "/medicines", admin, map[string]any{
		"name": "Paracetamol", "company": "Acme", "qty": 4, "cost_price": 1.5, "sale_price": 3,
		"category_id": catID, "expiry_date": "2030-01-01",
	})
	require.Equal(t, http.StatusCreated, code, med)
	medID := med["id"]
	code12 := med["barcode"].(string)
	assert.Len(t, code12, 12)

	code, got := s.do(http.MethodGet, fmt.Sprintf("/medicines/%v", medID), member, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Analgesics", got["category"].(map[string]any)["name"])

	code, got = s.do(http.MethodGet, "/medicines/barcode/"+code12, member, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, medID, got["id"])

	code, _ = s.do(http.MethodGet, "/medicines/barcode/123", member, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, list := s.do(http.MethodGet, "/medicines?low_stock=true&page=1&size=10", member, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list["data"], 1)
	assert.EqualValues(t, 1, list["meta"].(map[string]any)["total"])

	code, list = s.do(http.MethodGet, "/medicines?sort=sale_price&order=desc", member, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list["data"], 1)

	code, _ = s.do(http.MethodGet, "/medicines?sort=password_hash", member, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, got = s.do(http.MethodPatch, fmt.Sprintf("/medicines/%v", medID), admin, map[string]any{"qty": 40})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 40, got["qty"])

	code, stats := s.do(http.MethodGet, "/medicines/stats", member, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, stats["total_medicines"])
	assert.InDelta(t, 60.0, stats["total_value"], 1e-9)
	assert.EqualValues(t, 0, stats["low_stock"])

	code, found := s.do(http.MethodGet, "/medicines/search?q=parac", member, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, found["data"], 1)

	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/categories/%v", catID), admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/medicines/%v", medID), admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, fmt.Sprintf("/medicines/%v", medID), admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/medicines/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCommonMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Common(logging.NewWithWriter(io.Discard, "error"), []string{"http://localhost:3000"})...)
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
