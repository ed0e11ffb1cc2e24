// Package handlers provides HTTP API handlers for the chat server.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/canchat/canchat/internal/auth"
	"github.com/canchat/canchat/internal/users"
)

// AuthHandler serves registration, login, and email verification.
type AuthHandler struct {
	userService *users.Service
	jwtSecret   string
	expiresIn   time.Duration
	logger      *slog.Logger
}

// LoginRequest is the body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the success body (access_token, user info, expires_at).
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   string     `json:"expires_at"`
	User        users.User `json:"user"`
}

// SendCodeRequest is the body for POST /api/send_verification_code.
type SendCodeRequest struct {
	Email string `json:"email"`
}

// VerifyEmailRequest is the body for POST /api/verify_email.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// NewAuthHandler creates an auth handler with user service and JWT config.
func NewAuthHandler(log *slog.Logger, userService *users.Service, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtSecret:   jwtSecret,
		expiresIn:   expiresIn,
		logger:      log.With(slog.String("handler", "auth")),
	}
}

// Register mounts the public auth routes on the Echo instance.
func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/api/register", h.RegisterUser)
	e.POST("/api/login", h.Login)
	e.POST("/api/send_verification_code", h.SendVerificationCode)
	e.POST("/api/verify_email", h.VerifyEmail)
}

// SendVerificationCode godoc
// @Summary Send verification code
// @Description Issue a registration code to the given email address
// @Tags auth
// @Param payload body SendCodeRequest true "Email"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /api/send_verification_code [post].
func (h *AuthHandler) SendVerificationCode(c echo.Context) error {
	var req SendCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "a valid email is required")
	}
	if err := h.userService.IssueVerificationCode(c.Request().Context(), req.Email); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}

// RegisterUser godoc
// @Summary Register
// @Description Create an account after email code verification
// @Tags auth
// @Param payload body users.RegisterRequest true "Registration payload"
// @Success 201 {object} users.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/register [post].
func (h *AuthHandler) RegisterUser(c echo.Context) error {
	var req users.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Password == "" || req.Email == "" || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, password, email, and code are required")
	}

	user, err := h.userService.Register(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrCodeMismatch), errors.Is(err, users.ErrCodeExpired):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired verification code")
		case errors.Is(err, users.ErrUsernameTaken):
			return echo.NewHTTPError(http.StatusConflict, "username already taken")
		case errors.Is(err, users.ErrEmailTaken):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary Login
// @Description Validate user credentials and issue a JWT
// @Tags auth
// @Param payload body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/login [post].
func (h *AuthHandler) Login(c echo.Context) error {
	if strings.TrimSpace(h.jwtSecret) == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "jwt secret not configured")
	}
	if h.expiresIn <= 0 {
		return echo.NewHTTPError(http.StatusInternalServerError, "jwt expiry not configured")
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || strings.TrimSpace(req.Password) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	user, err := h.userService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	token, expiresAt, err := auth.GenerateToken(user.ID, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	return c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		User:        user,
	})
}

// VerifyEmail godoc
// @Summary Verify email
// @Description Confirm an existing account's email with a code
// @Tags auth
// @Param payload body VerifyEmailRequest true "Verification payload"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /api/verify_email [post].
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.Code) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and code are required")
	}
	if err := h.userService.VerifyEmail(c.Request().Context(), req.Email, req.Code); err != nil {
		switch {
		case errors.Is(err, users.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		case errors.Is(err, users.ErrEmailAlreadyVerified):
			return echo.NewHTTPError(http.StatusConflict, "email already verified")
		case errors.Is(err, users.ErrCodeMismatch), errors.Is(err, users.ErrCodeExpired):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired verification code")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "verified"})
}
