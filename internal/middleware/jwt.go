// Package middleware holds the echo middleware shared by the HTTP routes:
// bearer authentication, Redis token-bucket rate limiting and a Redis
// response cache.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxPhone  = "phone"
)

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized", "message": msg})
}

// JWTAuth validates a Bearer access token and stores the user id (uint64)
// and phone in the request context under CtxUserID and CtxPhone.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return unauthorized(c, "invalid token")
			}
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxPhone, claims.Phone)
			return next(c)
		}
	}
}
