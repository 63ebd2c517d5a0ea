package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/session"
	"github.com/Skotchmaster/agromarket/internal/storage"
)

const (
	ctxSession = "session"
	ctxStore   = "store"
)

// LoadSession opens the browser's store, resolves its session and attaches
// the token to the request context so that backend calls carry it.
func LoadSession(opener storage.Opener, loader *session.Loader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context()).With("middleware", "load_session")

			st, err := opener.Open(c.Response(), c.Request())
			if err != nil {
				l.Error("open_store_failed", "error", err)
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session storage unavailable")
			}
			ctx := c.Request().Context()

			// a form post cannot be replayed by a refresh, so it waits for the user
			wait := loader.Wait
			if m := c.Request().Method; m != http.MethodGet && m != http.MethodHead {
				wait = 0
			}
			sess, token, err := loader.LoadWait(ctx, st, wait)
			if err != nil {
				if errors.Is(err, ctx.Err()) {
					return err
				}
				l.Error("load_session_failed", "error", err)
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session storage unavailable")
			}

			c.Set(ctxStore, st)
			c.Set(ctxSession, sess)
			if token != "" {
				c.SetRequest(c.Request().WithContext(apiclient.WithToken(ctx, token)))
			}
			if sess.User != nil {
				c.SetRequest(c.Request().WithContext(logging.IntoContext(
					c.Request().Context(),
					logging.FromContext(c.Request().Context()).With("user_id", sess.User.ID),
				)))
			}
			return next(c)
		}
	}
}

func SessionFrom(c echo.Context) session.Session {
	s, _ := c.Get(ctxSession).(session.Session)
	return s
}

// StoreFrom returns the store opened by LoadSession, or nil outside of it.
func StoreFrom(c echo.Context) storage.Store {
	st, _ := c.Get(ctxStore).(storage.Store)
	return st
}

// SetSession replaces the session of the current request, e.g. right after
// logging in.
func SetSession(c echo.Context, s session.Session) {
	c.Set(ctxSession, s)
}
