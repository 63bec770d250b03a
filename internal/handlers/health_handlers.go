package handlers

import (
	"net/http"
	"time"

	"userhub/internal/repositories"

	"github.com/labstack/echo/v4"
)

type HealthHandlers struct {
	db     repositories.Database
	tokens repositories.TokenStore
}

func NewHealthHandlers(db repositories.Database, tokens repositories.TokenStore) *HealthHandlers {
	return &HealthHandlers{db: db, tokens: tokens}
}

// Liveness reports that the process is up.
func (h *HealthHandlers) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness checks the database and the token store. Any failing
// dependency turns the whole response into a 503.
func (h *HealthHandlers) Readiness(c echo.Context) error {
	ctx := c.Request().Context()
	checks := map[string]string{
		"database":    "ok",
		"token_store": "ok",
	}
	healthy := true

	if _, err := h.db.Exec(ctx, "SELECT 1"); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.tokens.Ping(ctx); err != nil {
		checks["token_store"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	return c.JSON(status, map[string]interface{}{
		"status":    overall,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
