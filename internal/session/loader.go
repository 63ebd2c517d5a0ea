package session

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/storage"
)

// lookupTimeout bounds a user lookup that outlives the request which started it.
const lookupTimeout = time.Minute

type UserSource interface {
	Me(ctx context.Context) (*models.User, error)
}

// Loader resolves the stored token into a Session. Lookups for the same token
// are shared, so a page that reloads while the backend is slow joins the
// lookup already in flight.
type Loader struct {
	Users UserSource
	// Wait is how long Load blocks before reporting Loading. Zero waits for the
	// lookup to finish.
	Wait time.Duration
	Now  func() time.Time

	group singleflight.Group
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Load returns the session of the browser behind st. A token the backend does
// not accept, for whatever reason, is removed and the visitor is anonymous.
func (l *Loader) Load(ctx context.Context, st storage.Store) (Session, string, error) {
	return l.LoadWait(ctx, st, l.Wait)
}

// LoadWait is Load with its own wait. Zero blocks until the lookup is done, so
// the session is never Loading.
func (l *Loader) LoadWait(ctx context.Context, st storage.Store, wait time.Duration) (Session, string, error) {
	log := logging.FromContext(ctx).With("component", "session_loader")

	token, err := Token(ctx, st)
	if err != nil {
		return Session{}, "", err
	}
	if token == "" {
		return Session{}, "", nil
	}
	if TokenExpired(token, l.now()) {
		log.Info("session_token_expired")
		return Session{}, "", ClearToken(ctx, st)
	}

	ch := l.group.DoChan(token, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return l.Users.Me(apiclient.WithToken(lookupCtx, token))
	})

	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			log.Warn("session_lookup_failed", "reason", "token rejected or backend unreachable", "error", res.Err)
			return Session{}, "", ClearToken(ctx, st)
		}
		return Session{User: res.Val.(*models.User)}, token, nil
	case <-timeout:
		log.Info("session_lookup_pending", "wait", wait.String())
		return Session{Loading: true}, token, nil
	case <-ctx.Done():
		return Session{}, "", ctx.Err()
	}
}
