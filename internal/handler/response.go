package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

// ok writes the success envelope.  Keys from payload are merged in next to
// success and message.
func ok(c echo.Context, status int, message string, payload echo.Map) error {
	body := echo.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(status, body)
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"success": false, "error": code, "message": message})
}

// writeError maps a service error onto the error envelope.  Storage
// failures are logged with their cause and reported generically.
func writeError(c echo.Context, err error) error {
	var (
		ve service.ValidationError
		nf service.NotFoundError
		ce service.ConflictError
		ue service.UnauthorizedError
	)
	switch {
	case errors.As(err, &ve):
		return fail(c, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.As(err, &nf):
		return fail(c, http.StatusNotFound, "not_found", nf.Error())
	case errors.As(err, &ce):
		return fail(c, http.StatusConflict, "conflict", ce.Error())
	case errors.As(err, &ue):
		return fail(c, http.StatusUnauthorized, "unauthorized", ue.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("handler: %s %s timed out: %v", c.Request().Method, c.Path(), err)
		return fail(c, http.StatusServiceUnavailable, "timeout", "request timed out")
	default:
		log.Printf("handler: %s %s failed: %v", c.Request().Method, c.Path(), err)
		return fail(c, http.StatusInternalServerError, "storage_error", "internal server error")
	}
}

func badRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, "validation_error", message)
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
