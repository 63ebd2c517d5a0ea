// Package handlers serves the marketplace pages. Every page is filled from the
// backend API on each request; mutating forms redirect after posting.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/cart"
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/metrics"
	"github.com/Skotchmaster/agromarket/internal/middleware/auth"
	"github.com/Skotchmaster/agromarket/internal/middleware/csrf"
	"github.com/Skotchmaster/agromarket/internal/mykafka"
	"github.com/Skotchmaster/agromarket/internal/views"
)

var ErrValidation = errors.New("validation failed")

const publishTimeout = 5 * time.Second

// Base carries what every page handler needs.
type Base struct {
	API      *apiclient.Client
	Flash    *flash.Flasher
	Producer mykafka.Publisher
	Metrics  *metrics.Metrics
	FlashTTL time.Duration
}

// Page assembles the layout data for the current request. Pending flash
// messages are consumed; extra messages are shown on this page only.
func (b *Base) Page(c echo.Context, title string, data any, extra ...flash.Message) views.Page {
	sess := auth.SessionFrom(c)
	path := c.Request().URL.Path

	var flashes []flash.Message
	if b.Flash != nil {
		flashes = b.Flash.Pop(c.Response(), c.Request())
	}
	flashes = append(flashes, extra...)

	return views.Page{
		Title:    title,
		Path:     path,
		Session:  sess,
		Nav:      views.Nav(sess, path, b.cartCount(c)),
		Panel:    views.PanelName(sess),
		Flashes:  flashes,
		FlashTTL: b.FlashTTL.Milliseconds(),
		CSRF:     csrf.Token(c),
		Data:     data,
	}
}

func (b *Base) cartCount(c echo.Context) int {
	if !auth.SessionFrom(c).IsBuyer() {
		return 0
	}
	st := auth.StoreFrom(c)
	if st == nil {
		return 0
	}
	ct, err := cart.Load(c.Request().Context(), st)
	if err != nil {
		return 0
	}
	return ct.Count()
}

func (b *Base) Render(c echo.Context, name, title string, data any, extra ...flash.Message) error {
	return c.Render(http.StatusOK, name, b.Page(c, title, data, extra...))
}

// Loading is the placeholder rendered while a session is still resolved. It
// reloads itself until the session is known.
func (b *Base) Loading(c echo.Context) error {
	p := b.Page(c, "Loading", nil)
	p.Refresh = 1
	return c.Render(http.StatusOK, "loading", p)
}

// LoadFailed turns a failed read into a message shown on the page being
// rendered. A rejected token is returned for the session middleware.
func (b *Base) LoadFailed(c echo.Context, err error, fallback string) ([]flash.Message, error) {
	if apiclient.IsUnauthorized(err) {
		return nil, err
	}
	logging.FromContext(c.Request().Context()).Warn("load_failed",
		"reason", fallback,
		"error", err,
	)
	return []flash.Message{{Type: flash.TypeError, Text: apiclient.Message(err, fallback)}}, nil
}

// Fail reports a failed write on the page the browser is sent back to. The
// state shown there is whatever the backend still holds.
func (b *Base) Fail(c echo.Context, err error, fallback, back string) error {
	if apiclient.IsUnauthorized(err) {
		return err
	}
	logging.FromContext(c.Request().Context()).Warn("action_failed",
		"reason", fallback,
		"error", err,
	)
	return b.redirectWith(c, flash.TypeError, apiclient.Message(err, fallback), back)
}

// Reject reports a form that was not sent to the backend.
func (b *Base) Reject(c echo.Context, msg, back string) error {
	return b.redirectWith(c, flash.TypeError, msg, back)
}

func (b *Base) Succeed(c echo.Context, msg, to string) error {
	return b.redirectWith(c, flash.TypeSuccess, msg, to)
}

func (b *Base) redirectWith(c echo.Context, typ, msg, to string) error {
	if b.Flash != nil && msg != "" {
		var err error
		if typ == flash.TypeSuccess {
			err = b.Flash.Success(c.Response(), c.Request(), msg)
		} else {
			err = b.Flash.Error(c.Response(), c.Request(), msg)
		}
		if err != nil {
			logging.FromContext(c.Request().Context()).Warn("flash_failed", "error", err)
		}
	}
	return c.Redirect(http.StatusSeeOther, to)
}

// Confirmation describes the question asked before a destructive action.
type Confirmation struct {
	Title   string
	Message string
	Action  string
	Cancel  string
	Fields  map[string]string
}

// Confirmed reports whether the form carries the confirmation answer.
func Confirmed(c echo.Context) bool {
	return c.FormValue("confirm") == "yes"
}

// Confirm renders the confirmation step. Posting it repeats the action with
// confirm=yes.
func (b *Base) Confirm(c echo.Context, conf Confirmation) error {
	return b.Render(c, "confirm", conf.Title, conf)
}

// Publish sends a storefront event. Failures are logged and otherwise ignored.
func (b *Base) Publish(c echo.Context, topic string, event map[string]any) {
	if b.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), publishTimeout)
	defer cancel()
	if err := b.Producer.PublishEvent(ctx, topic, fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", topic, "type", event["type"], "error", err)
	}
}

// UserID is the id of the signed-in user, 0 when anonymous.
func UserID(c echo.Context) int64 {
	if u := auth.SessionFrom(c).User; u != nil {
		return u.ID
	}
	return 0
}

// Back returns a local redirect target taken from the form, or def.
func Back(c echo.Context, def string) string {
	back := c.FormValue("back")
	if back == "" || !strings.HasPrefix(back, "/") || strings.HasPrefix(back, "//") {
		return def
	}
	return back
}

// ErrorHandler renders failures as the error page. Requests under /api keep
// echo's JSON errors.
func (b *Base) ErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		status := http.StatusInternalServerError
		msg := "Something went wrong"
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			msg = fmt.Sprint(he.Message)
		case errors.Is(err, apiclient.ErrNotFound):
			status, msg = http.StatusNotFound, "Not found"
		case errors.Is(err, apiclient.ErrUnavailable):
			status, msg = http.StatusBadGateway, "The marketplace is unavailable right now"
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		page := b.Page(c, "Error", struct {
			Status  int
			Message string
		}{status, msg})
		if rerr := c.Render(status, "error", page); rerr != nil {
			e.DefaultHTTPErrorHandler(err, c)
		}
	}
}
