package storage

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const visitorCookieName = "agromarket_visitor"

// VisitorCookie identifies a browser for the server-side stores.
type VisitorCookie struct {
	Secure bool
	MaxAge time.Duration
}

// Ensure returns the visitor id of the request, issuing a new one when the
// cookie is missing or malformed.
func (v VisitorCookie) Ensure(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	maxAge := v.MaxAge
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	cookie := &http.Cookie{
		Name:     visitorCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   v.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
	http.SetCookie(w, cookie)
	// later Open calls within the same request must see the same id
	r.AddCookie(cookie)
	return id
}
