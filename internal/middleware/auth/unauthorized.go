package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/guard"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/session"
)

const SessionExpiredMessage = "Your session has expired. Please sign in again."

// ExpireOnUnauthorized handles a 401 from the backend for every page: the
// token is dropped and the browser is sent to the login page.
func ExpireOnUnauthorized(f *flash.Flasher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil || !apiclient.IsUnauthorized(err) {
				return err
			}

			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("middleware", "expire_on_unauthorized")
			l.Info("session_rejected_by_backend", "error", err)

			if st := StoreFrom(c); st != nil {
				if cerr := session.ClearToken(ctx, st); cerr != nil {
					l.Error("clear_token_failed", "error", cerr)
				}
			}
			if f != nil {
				if ferr := f.Error(c.Response(), c.Request(), SessionExpiredMessage); ferr != nil {
					l.Warn("flash_failed", "error", ferr)
				}
			}
			return c.Redirect(http.StatusSeeOther, guard.LoginPath)
		}
	}
}
