package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/service"
)

type HistoryHandler struct {
	History *service.HistoryService
}

func NewHistoryHandler(h *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{History: h}
}

// All handles GET /history.
func (h *HistoryHandler) All(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	views, err := h.History.ListAll(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"history": views})
}

// ForUser handles GET /history/user?phone=.
func (h *HistoryHandler) ForUser(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	views, err := h.History.ListForPhone(ctx, c.QueryParam("phone"))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"history": views})
}
