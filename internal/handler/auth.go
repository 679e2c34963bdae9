package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
	"github.com/iliyamo/visitor-slot-booking/internal/service"
	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

// AuthHandler bundles the user directory endpoints.
type AuthHandler struct {
	Users     *service.UserService
	JWTSecret string
}

func NewAuthHandler(users *service.UserService, jwtSecret string) *AuthHandler {
	return &AuthHandler{Users: users, JWTSecret: jwtSecret}
}

// ----- DTOs -----

type registerReq struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	DOB      string `json:"dob"`
	Gender   string `json:"gender"`
	Address  string `json:"address"`
	Password string `json:"password"`
}
type loginReq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}
type profileReq struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	Gender  string `json:"gender"`
	Address string `json:"address"`
}
type resetReq struct {
	Phone       string `json:"phone"`
	NewPassword string `json:"new_password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID        uint64    `json:"id"`
	Ref       string    `json:"user_ref"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	DOB       string    `json:"dob"`
	Gender    string    `json:"gender"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID: u.ID, Ref: u.Ref, Phone: u.Phone, Name: u.Name,
		DOB: u.DOB, Gender: u.Gender, Address: u.Address, CreatedAt: u.CreatedAt,
	}
}

func sessionPayload(s service.Session) echo.Map {
	return echo.Map{
		"user":    toUserPart(s.User),
		"access":  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		"refresh": tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw back to client
	}
}

// Register creates an account.  No tokens are issued; clients log in next.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "No JSON data received")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.Register(ctx, service.RegisterInput{
		Name: req.Name, Phone: req.Phone, DOB: req.DOB,
		Gender: req.Gender, Address: req.Address, Password: req.Password,
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusCreated, "User registered successfully", echo.Map{"user": toUserPart(u)})
}

// Login verifies the password and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "No JSON data received")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Users.Login(ctx, req.Phone, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "Login successful", sessionPayload(sess))
}

// Refresh rotates the refresh token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Users.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "", sessionPayload(sess))
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when no token is supplied.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if claims, err := utils.ParseAccessToken(h.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			uid = claims.UserID
		}
	}
	// an unreadable body just leaves the refresh token empty
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Users.Logout(ctx, req.RefreshToken, uid); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	return ok(c, http.StatusOK, "", echo.Map{
		"user_id": c.Get("user_id"),
		"phone":   c.Get("phone"),
	})
}

// Profile handles GET /profile/:phone.
func (h *AuthHandler) Profile(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.Profile(ctx, c.Param("phone"))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"user": toUserPart(u)})
}

// UpdateProfile handles PUT /profile.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "No JSON data received")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, service.ProfileInput{
		Phone: req.Phone, Name: req.Name, DOB: req.DOB, Gender: req.Gender, Address: req.Address,
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "Profile updated successfully", echo.Map{"user": toUserPart(u)})
}

// ResetPassword handles POST /reset-password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "No JSON data received")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Users.ResetPassword(ctx, req.Phone, req.NewPassword); err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "Password reset successfully", nil)
}
