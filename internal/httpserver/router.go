package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy/internal/metrics"
	"github.com/Skotchmaster/pharmacy/internal/middleware"
	"github.com/Skotchmaster/pharmacy/internal/models"
)

type Deps struct {
	AuthHandler      *AuthHTTP
	InventoryHandler *InventoryHTTP
	Verifier         middleware.Verifier
	// Ready reports whether dependencies answer; nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", metrics.Handler())

	authMw := middleware.RequireAuth(d.Verifier)
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)

	a := e.Group("/auth")
	a.POST("/login", d.AuthHandler.Login)
	a.POST("/refresh-token", d.AuthHandler.RefreshToken)
	a.POST("/logout", d.AuthHandler.Logout)
	a.POST("/create-superadmin", d.AuthHandler.CreateSuperAdmin)
	a.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	a.POST("/reset-password", d.AuthHandler.ResetPassword)
	a.GET("/me", d.AuthHandler.Me, authMw)
	a.POST("/logout-all", d.AuthHandler.LogoutAll, authMw)
	a.POST("/register", d.AuthHandler.Register, authMw, staff)

	inv := d.InventoryHandler

	categories := e.Group("/categories", authMw)
	categories.GET("", inv.ListCategories)
	categories.POST("", inv.CreateCategory, staff)
	categories.PUT("/:id", inv.UpdateCategory, staff)
	categories.DELETE("/:id", inv.DeleteCategory, staff)

	medicines := e.Group("/medicines", authMw)
	medicines.GET("", inv.ListMedicines)
	medicines.GET("/search", inv.SearchMedicines)
	medicines.GET("/stats", inv.MedicineStats)
	medicines.GET("/barcode/:code", inv.GetMedicineByBarcode)
	medicines.GET("/:id", inv.GetMedicine)
	medicines.POST("", inv.CreateMedicine, staff)
	medicines.PUT("/:id", inv.UpdateMedicine, staff)
	medicines.PATCH("/:id", inv.UpdateMedicine, staff)
	medicines.DELETE("/:id", inv.DeleteMedicine, staff)
}
