package middleware

import (
	"log"
	"net/http"

	"userhub/internal/common"

	"github.com/labstack/echo/v4"
)

// AdminAudit logs every mutating request on the protected surface with
// the acting account, so role changes and deletions leave a trail. The
// request body is never logged; bodies carry passwords.
func AdminAudit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			method := c.Request().Method
			if method == http.MethodGet || method == http.MethodHead {
				return err
			}

			actor := "anonymous"
			if user, ok := common.GetActorFromContext(c.Request().Context()); ok {
				actor = user.ID.String()
			}

			if err != nil {
				log.Printf("audit: %s %s actor=%s error=%v", method, c.Path(), actor, err)
			} else {
				log.Printf("audit: %s %s actor=%s status=%d", method, c.Path(), actor, c.Response().Status)
			}
			return err
		}
	}
}
