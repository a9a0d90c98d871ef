package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	r := prometheus.NewRegistry()
	Register(r)
	Register(r)
}

func TestRecorder_CountsAuthEvents(t *testing.T) {
	before := testutil.ToFloat64(AuthEvents.WithLabelValues("login", "success"))
	Recorder{}.AuthEvent("login", "success")
	assert.Equal(t, before+1, testutil.ToFloat64(AuthEvents.WithLabelValues("login", "success")))
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/medicines/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "medicine not found")
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/medicines/:id", "404"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/medicines/7", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	after := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/medicines/:id", "404"))
	assert.Equal(t, before+1, after)
}
