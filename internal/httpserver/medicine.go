package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/pharmacy/internal/service"
	"github.com/Skotchmaster/pharmacy/internal/transport"
	"github.com/Skotchmaster/pharmacy/pkg/logging"
	"github.com/Skotchmaster/pharmacy/pkg/util"
)

// medicineError maps service failures shared by the medicine handlers.
func medicineError(c echo.Context, event string, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidBarcode):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid barcode")
	case errors.Is(err, service.ErrCategoryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Category not found")
	case errors.Is(err, service.ErrMedicineNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Medicine not found")
	}
	logging.FromContext(c.Request().Context()).Error(event, "status", 500, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func boolParam(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}

func (h *InventoryHTTP) ListMedicines(c echo.Context) error {
	q := transport.MedicineQuery{
		Query:        c.QueryParam("q"),
		Company:      c.QueryParam("company"),
		ExpiringSoon: boolParam(c, "expiring_soon"),
		LowStock:     boolParam(c, "low_stock"),
		Sort:         c.QueryParam("sort"),
		Order:        c.QueryParam("order"),
		Page:         util.ParseIntDefault(c.QueryParam("page"), 1),
		Size:         util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
	}
	if raw := c.QueryParam("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "category_id must be an integer")
		}
		cid := uint(id)
		q.CategoryID = &cid
	}

	page, err := h.Svc.ListMedicines(c.Request().Context(), q)
	if err != nil {
		return medicineError(c, "list_medicines_error", err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *InventoryHTTP) SearchMedicines(c echo.Context) error {
	page, err := h.Svc.Search(c.Request().Context(),
		c.QueryParam("q"),
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
	)
	if err != nil {
		return medicineError(c, "search_medicines_error", err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *InventoryHTTP) MedicineStats(c echo.Context) error {
	stats, err := h.Svc.Stats(c.Request().Context())
	if err != nil {
		return medicineError(c, "medicine_stats_error", err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *InventoryHTTP) GetMedicine(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.Svc.GetMedicine(c.Request().Context(), id)
	if err != nil {
		return medicineError(c, "get_medicine_error", err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *InventoryHTTP) GetMedicineByBarcode(c echo.Context) error {
	m, err := h.Svc.GetMedicineByBarcode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return medicineError(c, "get_medicine_by_barcode_error", err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *InventoryHTTP) CreateMedicine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_medicine")

	var req transport.CreateMedicineRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("medicine_create_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	m, err := h.Svc.CreateMedicine(ctx, actor(c), req)
	if err != nil {
		return medicineError(c, "medicine_create_error", err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *InventoryHTTP) UpdateMedicine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_medicine")

	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req transport.PatchMedicineRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("medicine_update_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	m, err := h.Svc.UpdateMedicine(ctx, actor(c), id, req)
	if err != nil {
		return medicineError(c, "medicine_update_error", err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *InventoryHTTP) DeleteMedicine(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteMedicine(c.Request().Context(), actor(c), id); err != nil {
		return medicineError(c, "medicine_delete_error", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Medicine deleted"})
}
