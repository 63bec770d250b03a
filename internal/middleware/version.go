package middleware

import "github.com/labstack/echo/v4"

// APIVersion is the version reported on every response. There is a
// single live version; bump this when a breaking surface change ships.
const APIVersion = "v1"

// VersionHeader stamps responses with the API version.
func VersionHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", APIVersion)
			return next(c)
		}
	}
}
