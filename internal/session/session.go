// Package session holds the signed-in user of a browser and the token that
// identifies them to the backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/storage"
)

// Session is the view of the current browser. A nil User is an anonymous
// visitor; Loading means the user lookup has not settled yet.
type Session struct {
	User    *models.User
	Loading bool
}

func (s Session) Authenticated() bool { return s.User != nil }

func (s Session) HasRole(r models.Role) bool { return s.User.HasRole(r) }

func (s Session) IsAdmin() bool  { return s.HasRole(models.RoleAdmin) }
func (s Session) IsFarmer() bool { return s.HasRole(models.RoleFarmer) }
func (s Session) IsBuyer() bool  { return s.HasRole(models.RoleBuyer) }

// HasAnyRole reports whether the user holds at least one of roles.
func (s Session) HasAnyRole(roles ...models.Role) bool {
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// Home is the landing path of the user's highest-precedence role.
func (s Session) Home() string {
	return HomePath(s.User)
}

func HomePath(u *models.User) string {
	switch u.PrimaryRole() {
	case models.RoleAdmin:
		return "/admin"
	case models.RoleFarmer:
		return "/farmer"
	}
	return "/buyer"
}

func SaveToken(ctx context.Context, st storage.Store, token string) error {
	if err := st.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Token returns the stored token, or "" when there is none.
func Token(ctx context.Context, st storage.Store) (string, error) {
	t, err := st.Get(ctx, storage.KeyToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return t, nil
}

func ClearToken(ctx context.Context, st storage.Store) error {
	if err := st.Remove(ctx, storage.KeyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// TokenExpired reports whether token is a JWT whose exp lies before now.
// The signature is not checked; only the backend can do that. Opaque tokens
// never count as expired.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
