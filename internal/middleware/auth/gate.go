package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/agromarket/internal/guard"
	"github.com/Skotchmaster/agromarket/internal/models"
)

// Gate applies guard decisions to echo routes.
type Gate struct {
	// Loading renders the placeholder shown while the session is resolved.
	Loading echo.HandlerFunc
}

func (g *Gate) apply(c echo.Context, d guard.Decision, next echo.HandlerFunc) error {
	switch d.Outcome {
	case guard.Render:
		return next(c)
	case guard.Loading:
		if g.Loading != nil {
			return g.Loading(c)
		}
		c.Response().Header().Set("Refresh", "1")
		return c.String(http.StatusOK, "Loading...")
	default:
		return c.Redirect(http.StatusSeeOther, d.Location)
	}
}

// RequireRoles admits sessions holding at least one of roles. Anonymous
// visitors are sent to the login page, others to their own home.
func (g *Gate) RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return g.apply(c, guard.Protected(SessionFrom(c), roles...), next)
		}
	}
}

func (g *Gate) PublicOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		return g.apply(c, guard.PublicOnly(SessionFrom(c)), next)
	}
}

// RoleRedirect serves "/" and unknown paths.
func (g *Gate) RoleRedirect(c echo.Context) error {
	return g.apply(c, guard.Root(SessionFrom(c)), func(echo.Context) error { return nil })
}
