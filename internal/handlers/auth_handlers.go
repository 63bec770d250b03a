package handlers

import (
	"net/http"
	"strings"

	"userhub/internal/common"
	"userhub/internal/services"

	"github.com/labstack/echo/v4"
)

type AuthHandlers struct {
	accounts services.AccountService
}

func NewAuthHandlers(accounts services.AccountService) *AuthHandlers {
	return &AuthHandlers{accounts: accounts}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns it together with a fresh
// token, so the client is signed in immediately.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req services.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.accounts.Register(c.Request().Context(), &req)
	if err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "User registered successfully",
		"user":         result.User,
		"access_token": result.Credential.AccessToken,
		"token_type":   result.Credential.TokenType,
	})
}

func (h *AuthHandlers) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"user":         result.User,
		"access_token": result.Credential.AccessToken,
		"token_type":   result.Credential.TokenType,
	})
}

// Logout revokes the token that authenticated this request.
func (h *AuthHandlers) Logout(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
	}
	if err := h.accounts.Logout(c.Request().Context(), token); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me returns the authenticated account's own record.
func (h *AuthHandlers) Me(c echo.Context) error {
	actor, ok := common.GetActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
	}

	view, err := h.accounts.Profile(c.Request().Context(), actor)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": view})
}

// CreateAdmin provisions a new administrator account. Unlike Register
// it never issues a token.
func (h *AuthHandlers) CreateAdmin(c echo.Context) error {
	actor, ok := common.GetActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
	}

	var req services.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	view, err := h.accounts.CreateAdmin(c.Request().Context(), actor, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Admin user created successfully",
		"user":    view,
	})
}

// bearerToken extracts the credential from the Authorization header,
// empty when the header is missing or malformed.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
