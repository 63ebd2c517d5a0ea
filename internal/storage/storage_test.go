package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the same contract against every backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, KeyToken)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyToken, "abc"))
	v, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Set(ctx, KeyToken, "def"))
	v, err = s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	require.NoError(t, s.Set(ctx, KeyCart, `[{"productId":1}]`))
	require.NoError(t, s.Remove(ctx, KeyToken))
	_, err = s.Get(ctx, KeyToken)
	require.ErrorIs(t, err, ErrNotFound)

	v, err = s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[{"productId":1}]`, v)

	require.NoError(t, s.Remove(ctx, "missing"))
}

func TestMemory(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemory())
}

func TestGormStore_SQLite(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)

	exerciseStore(t, &GormStore{DB: db, VisitorID: "3f7a3c3e-0000-4000-8000-000000000001"})

	other := &GormStore{DB: db, VisitorID: "3f7a3c3e-0000-4000-8000-000000000002"}
	_, err = other.Get(context.Background(), KeyCart)
	assert.ErrorIs(t, err, ErrNotFound, "visitors must not share state")
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := &RedisStore{Client: client, TTL: time.Hour, VisitorID: "v1"}
	exerciseStore(t, s)

	assert.True(t, mr.Exists("agromarket:v1:cart"))
	assert.Equal(t, time.Hour, mr.TTL("agromarket:v1:cart"))

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(context.Background(), KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)
}

// browser carries cookies from one response to the next request.
type browser struct {
	t   *testing.T
	jar *cookiejar.Jar
	url *url.URL
}

func newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse("http://shop.example/")
	require.NoError(t, err)
	return &browser{t: t, jar: jar, url: u}
}

// open starts a request, hands its store to fn and keeps the cookies it sets.
func (b *browser) open(opener Opener, fn func(s Store)) {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range b.jar.Cookies(b.url) {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s, err := opener.Open(rec, req)
	require.NoError(b.t, err)
	fn(s)
	b.jar.SetCookies(b.url, rec.Result().Cookies())
}

func cartSnapshot(n int) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 1; i <= n; i++ {
		if i > 1 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"productId":%d,"productName":"Organic Basmati Rice %d kg","unitPrice":1250.50,"quantity":%d}`, i, i, i%7+1)
	}
	sb.WriteString("]")
	return sb.String()
}

func TestCookieOpener_KeepsLargeCartBesideToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	opener := &CookieOpener{Sessions: NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false)}
	b := newBrowser(t)
	token := strings.Repeat("t", 200)

	b.open(opener, func(s Store) {
		require.NoError(t, s.Set(ctx, KeyToken, token))
	})
	for n := 1; n <= 200; n++ {
		b.open(opener, func(s Store) {
			require.NoError(t, s.Set(ctx, KeyCart, cartSnapshot(n)), "cart of %d entries", n)
		})
	}

	for _, c := range b.jar.Cookies(b.url) {
		assert.LessOrEqual(t, len(c.Name)+len(c.Value), 4000, c.Name)
	}

	b.open(opener, func(s Store) {
		v, err := s.Get(ctx, KeyCart)
		require.NoError(t, err)
		assert.Equal(t, cartSnapshot(200), v)

		v, err = s.Get(ctx, KeyToken)
		require.NoError(t, err)
		assert.Equal(t, token, v)

		require.NoError(t, s.Set(ctx, KeyCart, `[]`))
	})

	var cartCookies int
	for _, c := range b.jar.Cookies(b.url) {
		if strings.HasPrefix(c.Name, cartCookiePrefix) {
			cartCookies++
		}
	}
	assert.Equal(t, 1, cartCookies)

	b.open(opener, func(s Store) {
		v, err := s.Get(ctx, KeyCart)
		require.NoError(t, err)
		assert.Equal(t, `[]`, v)
		require.NoError(t, s.Remove(ctx, KeyCart))
	})
	b.open(opener, func(s Store) {
		_, err := s.Get(ctx, KeyCart)
		assert.ErrorIs(t, err, ErrNotFound)

		v, err := s.Get(ctx, KeyToken)
		require.NoError(t, err)
		assert.Equal(t, token, v)
	})
}

func TestCookieOpener_RejectsOversizedCart(t *testing.T) {
	t.Parallel()

	opener := &CookieOpener{Sessions: NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false)}
	noise := make([]byte, 64*1024)
	_, _ = rand.New(rand.NewSource(1)).Read(noise)

	b := newBrowser(t)
	b.open(opener, func(s Store) {
		err := s.Set(context.Background(), KeyCart, base64.StdEncoding.EncodeToString(noise))
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestMemoryOpener_SeparatesVisitors(t *testing.T) {
	t.Parallel()

	opener := NewMemoryOpener(false)

	rec := httptest.NewRecorder()
	a, err := opener.Open(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, a.Set(context.Background(), KeyToken, "t-a"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, visitorCookieName, cookies[0].Name)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookies[0])
	same, err := opener.Open(httptest.NewRecorder(), again)
	require.NoError(t, err)
	v, err := same.Get(context.Background(), KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "t-a", v)

	stranger, err := opener.Open(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	_, err = stranger.Get(context.Background(), KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)
}
