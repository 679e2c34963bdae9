// Package router registers the HTTP routes on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/handler"
	"github.com/iliyamo/visitor-slot-booking/internal/middleware"
)

// Handlers groups every handler the router wires.
type Handlers struct {
	Diagnostics   *handler.DiagnosticsHandler
	Bookings      *handler.BookingHandler
	Notifications *handler.NotificationHandler
	History       *handler.HistoryHandler
	Slots         *handler.SlotsHandler
	OTP           *handler.OTPHandler
	Auth          *handler.AuthHandler
	Dev           *handler.DevHandler
}

// Middleware carries the Redis-backed middleware built in main.
type Middleware struct {
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes registers the diagnostics endpoints.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/", h.Diagnostics.Home)
	e.GET("/healthz", handler.Health)
	e.GET("/check-tables", h.Diagnostics.CheckTables)
}

// RegisterBooking registers booking, payment, notification, history and
// availability routes.  None of them require a session.
func RegisterBooking(e *echo.Echo, h Handlers, mw Middleware) {
	e.POST("/book", h.Bookings.Create)
	e.POST("/payment", h.Bookings.ConfirmPayment)
	e.GET("/booking/:id", h.Bookings.Get)
	e.GET("/booking/:id/qr", h.Bookings.QR)
	e.GET("/booking/:id/ticket", h.Bookings.Ticket)

	e.GET("/notifications", h.Notifications.List)
	e.PUT("/notifications/:id/read", h.Notifications.MarkRead)

	e.GET("/history", h.History.All)
	e.GET("/history/user", h.History.ForUser)

	e.GET("/slots", h.Slots.List, mw.Cache)
}

// RegisterAuth registers the challenge and user directory routes.  The
// challenge endpoints and login are rate limited; /me requires a valid
// access token.
func RegisterAuth(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	e.POST("/send-otp", h.OTP.Send, mw.RateLimit)
	e.POST("/verify-otp", h.OTP.Verify, mw.RateLimit)

	e.POST("/register", h.Auth.Register)
	e.POST("/login", h.Auth.Login, mw.RateLimit)
	e.GET("/profile/:phone", h.Auth.Profile)
	e.PUT("/profile", h.Auth.UpdateProfile)
	e.POST("/reset-password", h.Auth.ResetPassword)

	e.POST("/auth/refresh", h.Auth.Refresh)
	e.POST("/logout", h.Auth.Logout)
	e.GET("/me", h.Auth.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterDev registers development-only maintenance routes.
func RegisterDev(e *echo.Echo, h Handlers) {
	g := e.Group("/dev")
	g.GET("/users", h.Dev.ListUsers)
	g.POST("/clear-bookings", h.Dev.ClearBookings)
}
