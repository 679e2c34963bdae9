package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/service"
)

type NotificationHandler struct {
	Notifier *service.Notifier
}

func NewNotificationHandler(n *service.Notifier) *NotificationHandler {
	return &NotificationHandler{Notifier: n}
}

// List handles GET /notifications?limit=N.
func (h *NotificationHandler) List(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit must be a number")
		}
		limit = n
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	notes, err := h.Notifier.ListRecent(ctx, limit)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"notifications": notes})
}

// MarkRead handles PUT /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid notification id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Notifier.MarkRead(ctx, id); err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "Notification marked as read", nil)
}
