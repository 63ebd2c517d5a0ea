// Package guard decides, per navigation, what a session may see.
package guard

import (
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/session"
)

type Outcome int

const (
	Render Outcome = iota
	Loading
	RedirectLogin
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	}
	return "unknown"
}

const LoginPath = "/login"

type Decision struct {
	Outcome  Outcome
	Location string
}

// Protected gates a screen. An empty allowed set admits any signed-in user.
func Protected(s session.Session, allowed ...models.Role) Decision {
	if s.Loading {
		return Decision{Outcome: Loading}
	}
	if !s.Authenticated() {
		return Decision{Outcome: RedirectLogin, Location: LoginPath}
	}
	if len(allowed) > 0 && !s.HasAnyRole(allowed...) {
		return Decision{Outcome: RedirectHome, Location: s.Home()}
	}
	return Decision{Outcome: Render}
}

// PublicOnly gates login and register: signed-in users go home instead.
func PublicOnly(s session.Session) Decision {
	if s.Loading {
		return Decision{Outcome: Loading}
	}
	if s.Authenticated() {
		return Decision{Outcome: RedirectHome, Location: s.Home()}
	}
	return Decision{Outcome: Render}
}

// Root resolves "/" and every unknown path to the role home.
func Root(s session.Session) Decision {
	if s.Loading {
		return Decision{Outcome: Loading}
	}
	if !s.Authenticated() {
		return Decision{Outcome: RedirectLogin, Location: LoginPath}
	}
	return Decision{Outcome: RedirectHome, Location: s.Home()}
}
