package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/database"
)

// Health is the liveness probe used by load balancers.  It returns plain
// text "ok" with 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// DiagnosticsHandler serves the banner and the schema check.
type DiagnosticsHandler struct {
	DB      *sql.DB
	DBName  string
	Env     string
	DevOTP  bool
	Service string
}

// Home handles GET / with a short status banner.
func (h *DiagnosticsHandler) Home(c echo.Context) error {
	mode := "PRODUCTION"
	if h.DevOTP {
		mode = "DEVELOPMENT - Dummy OTP"
	}
	return ok(c, http.StatusOK, h.Service+" server is running!", echo.Map{
		"mode":     mode,
		"env":      h.Env,
		"database": h.DBName,
	})
}

// CheckTables handles GET /check-tables and reports which of the service's
// tables exist.
func (h *DiagnosticsHandler) CheckTables(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status, err := database.TableStatus(ctx, h.DB)
	if err != nil {
		return writeError(c, err)
	}
	present := make([]string, 0, len(status))
	payload := echo.Map{}
	for _, t := range database.Tables {
		if status[t] {
			present = append(present, t)
		}
		payload[t+"_table_exists"] = status[t]
	}
	payload["tables"] = present
	return ok(c, http.StatusOK, "", payload)
}
