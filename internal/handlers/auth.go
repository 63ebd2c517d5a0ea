package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/middleware/auth"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/mykafka"
	"github.com/Skotchmaster/agromarket/internal/session"
)

const minPasswordLen = 6

type AuthHandler struct {
	*Base
}

type loginForm struct {
	Email string
}

type registerForm struct {
	FullName string
	Email    string
	Phone    string
	City     string
	Role     string
}

func (h *AuthHandler) LoginPage(c echo.Context) error {
	return h.Render(c, "login", "Sign in", loginForm{})
}

// Login exchanges the credentials for a token, keeps the token and sends the
// browser to the home of the user's role.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	req := models.LoginRequest{
		Email:    strings.TrimSpace(c.FormValue("email")),
		Password: c.FormValue("password"),
	}
	form := loginForm{Email: req.Email}
	if req.Email == "" || req.Password == "" {
		return h.Render(c, "login", "Sign in", form, flash.Message{Type: flash.TypeError, Text: "Email and password are required"})
	}

	token, err := h.API.Login(ctx, req)
	if err != nil {
		l.Warn("login_failed", "status", http.StatusUnauthorized, "error", err)
		msg := "Invalid email or password"
		if !apiclient.IsUnauthorized(err) {
			msg = apiclient.Message(err, "Login failed")
		}
		return h.Render(c, "login", "Sign in", form, flash.Message{Type: flash.TypeError, Text: msg})
	}

	user, err := h.API.Me(apiclient.WithToken(ctx, token))
	if err != nil {
		l.Warn("login_profile_failed", "error", err)
		return h.Render(c, "login", "Sign in", form, flash.Message{Type: flash.TypeError, Text: apiclient.Message(err, "Login failed")})
	}

	st := auth.StoreFrom(c)
	if err := session.SaveToken(ctx, st, token); err != nil {
		l.Error("login_failed", "status", http.StatusInternalServerError, "reason", "cannot store token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot keep the session")
	}
	auth.SetSession(c, session.Session{User: user})

	h.Publish(c, mykafka.TopicUser, map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
		"role":   user.PrimaryRole(),
	})
	l.Info("login_successful", "user_id", user.ID)
	return c.Redirect(http.StatusSeeOther, session.HomePath(user))
}

func (h *AuthHandler) RegisterPage(c echo.Context) error {
	return h.Render(c, "register", "Create account", registerForm{Role: string(models.RoleBuyer)})
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	form := registerForm{
		FullName: strings.TrimSpace(c.FormValue("fullName")),
		Email:    strings.TrimSpace(c.FormValue("email")),
		Phone:    strings.TrimSpace(c.FormValue("phone")),
		City:     strings.TrimSpace(c.FormValue("city")),
		Role:     c.FormValue("role"),
	}
	password := c.FormValue("password")

	if msg := validateRegistration(form, password); msg != "" {
		l.Warn("register_error", "status", http.StatusBadRequest, "reason", msg)
		return h.Render(c, "register", "Create account", form, flash.Message{Type: flash.TypeError, Text: msg})
	}

	err := h.API.Register(ctx, models.RegisterRequest{
		FullName: form.FullName,
		Email:    form.Email,
		Password: password,
		Roles:    []models.Role{models.Role(form.Role)},
		Phone:    form.Phone,
		City:     form.City,
	})
	if err != nil {
		l.Warn("register_failed", "error", err)
		return h.Render(c, "register", "Create account", form, flash.Message{Type: flash.TypeError, Text: apiclient.Message(err, "Registration failed")})
	}

	h.Publish(c, mykafka.TopicUser, map[string]any{
		"type":   "user_registered",
		"userID": form.Email,
		"role":   form.Role,
	})
	l.Info("register_successful")
	return h.Succeed(c, "Registration successful. Please sign in.", "/login")
}

func validateRegistration(f registerForm, password string) string {
	switch {
	case f.FullName == "":
		return "Full name is required"
	case f.Email == "":
		return "Email is required"
	case len(password) < minPasswordLen:
		return "Password must be at least 6 characters"
	case f.Role != string(models.RoleBuyer) && f.Role != string(models.RoleFarmer):
		return "Choose whether you buy or sell"
	}
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return "Email is not valid"
	}
	return ""
}

// Logout forgets the token. The cart stays in the browser.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if st := auth.StoreFrom(c); st != nil {
		if err := session.ClearToken(ctx, st); err != nil {
			l.Error("logout_failed", "status", http.StatusInternalServerError, "reason", "cannot clear token", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
		}
	}
	if id := UserID(c); id != 0 {
		h.Publish(c, mykafka.TopicUser, map[string]any{
			"type":   "user_logged_out",
			"userID": id,
		})
	}
	l.Info("successful_logout")
	return c.Redirect(http.StatusSeeOther, "/login")
}
