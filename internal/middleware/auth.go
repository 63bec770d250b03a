package middleware

import (
	"net/http"
	"strings"

	"userhub/internal/common"
	"userhub/internal/repositories"
	"userhub/internal/services"

	"github.com/labstack/echo/v4"
)

// BearerAuth resolves the Authorization header into a user and stores
// it on the request context as the actor. Revoked, expired, and unknown
// tokens all fail the same way.
func BearerAuth(tokens services.TokenService, users repositories.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
			}
			token := strings.TrimSpace(header[len(prefix):])
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
			}

			ctx := c.Request().Context()
			userID, ok, err := tokens.Resolve(ctx, token)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication temporarily unavailable")
			}
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
			}

			user, err := users.GetByID(ctx, userID)
			if err != nil {
				// The account may have been deleted after the token was
				// issued; that token no longer authenticates anyone.
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
			}

			c.SetRequest(c.Request().WithContext(common.WithActor(ctx, user)))
			return next(c)
		}
	}
}
