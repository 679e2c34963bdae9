package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/service"
)

// DevHandler exposes development-only maintenance endpoints.  Routes are
// registered only when DEV_ENDPOINTS is on.
type DevHandler struct {
	Users    *service.UserService
	Bookings *service.BookingService
}

func NewDevHandler(u *service.UserService, b *service.BookingService) *DevHandler {
	return &DevHandler{Users: u, Bookings: b}
}

// ListUsers handles GET /dev/users.
func (h *DevHandler) ListUsers(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	users, err := h.Users.ListUsers(ctx)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]userPart, len(users))
	for i, u := range users {
		out[i] = toUserPart(u)
	}
	return ok(c, http.StatusOK, "", echo.Map{"users": out})
}

// ClearBookings handles POST /dev/clear-bookings.
func (h *DevHandler) ClearBookings(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Bookings.ClearAll(ctx); err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "All bookings & notifications cleared (DEV)", nil)
}
