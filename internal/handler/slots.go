package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/service"
)

// SlotsHandler serves the mock availability feed.
type SlotsHandler struct {
	Now func() time.Time
}

func NewSlotsHandler() *SlotsHandler {
	return &SlotsHandler{Now: func() time.Time { return time.Now().UTC() }}
}

// List handles GET /slots?start=YYYY-MM-DD&days=N.
func (h *SlotsHandler) List(c echo.Context) error {
	today := h.Now()
	start := today
	if raw := c.QueryParam("start"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return badRequest(c, "Invalid 'start' date format. Use YYYY-MM-DD.")
		}
		start = t
	}
	days := service.DefaultSlotDays
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "days must be a number")
		}
		days = n
	}
	days = service.ClampSlotDays(days)

	return ok(c, http.StatusOK, "", echo.Map{
		"start": start.Format("2006-01-02"),
		"days":  days,
		"slots": service.SlotAvailability(start, today, days),
	})
}
