package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	stateSessionName = "agromarket_state"
	cartCookiePrefix = "agromarket_cart_"

	// cartChunkSize keeps each encoded chunk well under the 4096 byte
	// limit browsers and securecookie put on a single cookie.
	cartChunkSize = 1800
	// maxCartChunks caps the cart at roughly 28KB of compressed snapshot.
	maxCartChunks = 16
)

var ErrTooLarge = errors.New("storage: value too large")

// CookieOpener keeps the state in signed browser cookies. The token lives in
// one session cookie. The cart snapshot is compressed and split across its
// own numbered cookies, so it can grow past what a single cookie holds.
type CookieOpener struct {
	Sessions *sessions.CookieStore
}

func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Path = "/"
	store.Options.MaxAge = 30 * 24 * 3600
	return store
}

func (o *CookieOpener) Open(w http.ResponseWriter, r *http.Request) (Store, error) {
	s, err := o.Sessions.Get(r, stateSessionName)
	if err != nil && s == nil {
		return nil, fmt.Errorf("open state cookie: %w", err)
	}
	// an undecodable cookie yields a fresh session; it is replaced on the next save
	cs := &cookieStore{session: s, codecs: o.Sessions.Codecs, options: o.Sessions.Options, w: w, r: r}
	for i := range maxCartChunks {
		if _, err := r.Cookie(cartChunkName(i)); err == nil {
			cs.chunks = i + 1
		}
	}
	return cs, nil
}

type cookieStore struct {
	session *sessions.Session
	codecs  []securecookie.Codec
	options *sessions.Options
	w       http.ResponseWriter
	r       *http.Request

	// chunks is how many cart cookies the browser holds after this response.
	chunks int
	cart   *string
}

func (c *cookieStore) Get(_ context.Context, key string) (string, error) {
	if key == KeyCart {
		return c.getCart()
	}
	v, ok := c.session.Values[key].(string)
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (c *cookieStore) Set(_ context.Context, key, value string) error {
	if key == KeyCart {
		return c.setCart(value)
	}
	c.session.Values[key] = value
	if err := c.session.Save(c.r, c.w); err != nil {
		return fmt.Errorf("save state cookie: %w", err)
	}
	return nil
}

func (c *cookieStore) Remove(_ context.Context, key string) error {
	if key == KeyCart {
		c.expireChunks(0)
		empty := ""
		c.cart = &empty
		return nil
	}
	if _, ok := c.session.Values[key]; !ok {
		return nil
	}
	delete(c.session.Values, key)
	if err := c.session.Save(c.r, c.w); err != nil {
		return fmt.Errorf("save state cookie: %w", err)
	}
	return nil
}

func cartChunkName(i int) string {
	return cartCookiePrefix + strconv.Itoa(i)
}

func (c *cookieStore) getCart() (string, error) {
	if c.cart != nil {
		if *c.cart == "" {
			return "", ErrNotFound
		}
		return *c.cart, nil
	}

	var packed []byte
	for i := range maxCartChunks {
		ck, err := c.r.Cookie(cartChunkName(i))
		if err != nil {
			break
		}
		var part []byte
		if err := securecookie.DecodeMulti(ck.Name, ck.Value, &part, c.codecs...); err != nil {
			return "", ErrNotFound
		}
		packed = append(packed, part...)
	}
	if len(packed) == 0 {
		return "", ErrNotFound
	}

	zr, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return "", ErrNotFound
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", ErrNotFound
	}
	v := string(raw)
	c.cart = &v
	return v, nil
}

func (c *cookieStore) setCart(value string) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(value)); err != nil {
		return fmt.Errorf("compress cart cookie: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress cart cookie: %w", err)
	}

	packed := buf.Bytes()
	n := (len(packed) + cartChunkSize - 1) / cartChunkSize
	if n > maxCartChunks {
		return fmt.Errorf("save cart cookie: %d bytes compressed: %w", len(packed), ErrTooLarge)
	}

	cookies := make([]*http.Cookie, 0, n)
	for i := range n {
		part := packed[i*cartChunkSize : min(len(packed), (i+1)*cartChunkSize)]
		encoded, err := securecookie.EncodeMulti(cartChunkName(i), part, c.codecs...)
		if err != nil {
			return fmt.Errorf("save cart cookie: %w", err)
		}
		cookies = append(cookies, sessions.NewCookie(cartChunkName(i), encoded, c.options))
	}
	for _, ck := range cookies {
		http.SetCookie(c.w, ck)
	}
	c.expireChunks(n)
	c.cart = &value
	return nil
}

// expireChunks drops the cart cookies from index from onwards.
func (c *cookieStore) expireChunks(from int) {
	opts := *c.options
	opts.MaxAge = -1
	for i := from; i < c.chunks; i++ {
		http.SetCookie(c.w, sessions.NewCookie(cartChunkName(i), "", &opts))
	}
	c.chunks = from
}
