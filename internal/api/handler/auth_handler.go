package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/verimail/verimail/internal/api/metrics"
	"github.com/verimail/verimail/internal/core/domain"
	"github.com/verimail/verimail/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Message string            `json:"message"`
	User    domain.PublicUser `json:"user"`
}

// Signup creates an unverified account and emails a verification link.
//
// @Summary      Sign up a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  messageResponse
// @Failure      409   {object}  messageResponse
// @Failure      500   {object}  messageResponse
// @Router       /api/auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		metrics.SignupsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.SignupsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	_, err := h.authService.Signup(c.Request().Context(), req.Name, req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput):
		metrics.SignupsTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Name, email and password are required"})
	case errors.Is(err, domain.ErrEmailTaken):
		metrics.SignupsTotal.WithLabelValues("conflict").Inc()
		return c.JSON(http.StatusConflict, messageResponse{Message: "Email already registered"})
	default:
		metrics.SignupsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.SignupsTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, messageResponse{
		Message: "User created. Please check your email to verify your account.",
	})
}

// Verify confirms the email address a verification token was issued for.
// Expired tokens, malformed tokens, and unknown subjects all produce the
// same response, and re-verifying an account is a harmless success.
//
// @Summary      Verify an email address
// @Tags         auth
// @Produce      json
// @Param        token  path      string  true  "Verification token"
// @Success      200    {object}  messageResponse
// @Failure      400    {object}  messageResponse
// @Router       /api/auth/verify/{token} [get]
func (h *AuthHandler) Verify(c echo.Context) error {
	alreadyVerified, err := h.authService.VerifyEmail(c.Request().Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) || errors.Is(err, domain.ErrTokenInvalid) {
			metrics.VerificationsTotal.WithLabelValues("invalid_token").Inc()
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid or expired token"})
		}
		// Storage failures render the same response the token errors do,
		// but keep the cause for the error-handler log.
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid or expired token").SetInternal(err)
	}

	if alreadyVerified {
		metrics.VerificationsTotal.WithLabelValues("already_verified").Inc()
		return c.JSON(http.StatusOK, messageResponse{Message: "Email already verified"})
	}

	metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	return c.JSON(http.StatusOK, messageResponse{
		Message: "Email verified successfully. You can now log in.",
	})
}

// Login authenticates an email/password pair and queues a login alert.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  messageResponse
// @Failure      403   {object}  messageResponse
// @Failure      500   {object}  messageResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput):
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Email and password are required"})
	case errors.Is(err, domain.ErrInvalidCredentials):
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid email or password"})
	case errors.Is(err, domain.ErrNotVerified):
		metrics.LoginsTotal.WithLabelValues("not_verified").Inc()
		return c.JSON(http.StatusForbidden, messageResponse{Message: "Please verify your email before login"})
	default:
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, loginResponse{
		Message: "Login successful",
		User:    user.Public(),
	})
}
