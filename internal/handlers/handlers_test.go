package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/middleware/auth"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/session"
	"github.com/Skotchmaster/agromarket/internal/storage"
	"github.com/Skotchmaster/agromarket/internal/views"
)

type fixedOpener struct{ st storage.Store }

func (o fixedOpener) Open(http.ResponseWriter, *http.Request) (storage.Store, error) {
	return o.st, nil
}

type fakeUsers struct{ user *models.User }

func (f fakeUsers) Me(context.Context) (*models.User, error) {
	if f.user == nil {
		return nil, &apiclient.APIError{Status: http.StatusUnauthorized}
	}
	return f.user, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []map[string]any
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(map[string]any))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e["type"].(string))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	e      *echo.Echo
	base   *Base
	store  *storage.Memory
	flash  *flash.Flasher
	events *recordingPublisher
}

// newFixture serves the handlers registered by routes against backend, with
// user signed in. A nil user browses anonymously.
func newFixture(t *testing.T, backend http.Handler, user *models.User, routes func(g *echo.Group, b *Base)) *fixture {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	renderer, err := views.NewRenderer()
	require.NoError(t, err)

	f := &fixture{
		store:  storage.NewMemory(),
		flash:  &flash.Flasher{Store: sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))},
		events: &recordingPublisher{},
	}
	if user != nil {
		require.NoError(t, session.SaveToken(context.Background(), f.store, "opaque-token"))
	}
	f.base = &Base{API: apiclient.NewClient(srv.URL), Flash: f.flash, Producer: f.events}

	f.e = echo.New()
	f.e.Renderer = renderer
	f.e.HTTPErrorHandler = f.base.ErrorHandler(f.e)
	g := f.e.Group("",
		auth.ExpireOnUnauthorized(f.flash),
		auth.LoadSession(fixedOpener{f.store}, &session.Loader{Users: fakeUsers{user}}),
	)
	routes(g, f.base)
	return f
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *fixture) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

// flashes reads the messages a redirect left for the next page.
func (f *fixture) flashes(rec *httptest.ResponseRecorder) []flash.Message {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	return f.flash.Pop(httptest.NewRecorder(), req)
}

var (
	admin  = &models.User{ID: 1, FullName: "Ada Admin", Email: "ada@agro.test", Roles: []models.Role{models.RoleAdmin}}
	farmer = &models.User{ID: 7, FullName: "Fred Farmer", Email: "fred@agro.test", Roles: []models.Role{models.RoleFarmer}, Revenue: decimal.RequireFromString("120.50")}
	buyer  = &models.User{ID: 9, FullName: "Bea Buyer", Email: "bea@agro.test", Roles: []models.Role{models.RoleBuyer}}
)

func adminRoutes(g *echo.Group, b *Base) {
	h := &AdminHandler{Base: b}
	g.GET("/admin", h.Dashboard)
	g.GET("/admin/users", h.Users)
	g.POST("/admin/users/:id/delete", h.DeleteUser)
	g.GET("/admin/categories", h.Categories)
	g.POST("/admin/categories", h.CreateCategory)
	g.POST("/admin/categories/:id/delete", h.DeleteCategory)
	g.GET("/admin/products", h.Products)
	g.GET("/admin/orders", h.Orders)
}

func TestAdminDashboard_ToleratesOrdersFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Category{{ID: 1, Name: "Fruit"}})
	})
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Product{{ID: 1}, {ID: 2}})
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.User{{ID: 1}, {ID: 2}, {ID: 3}})
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	})

	f := newFixture(t, mux, admin, adminRoutes)
	rec := f.get("/admin")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<span>Users</span><strong>3</strong>")
	assert.Contains(t, body, "<span>Products</span><strong>2</strong>")
	assert.Contains(t, body, "<span>Orders</span><strong>–</strong>")
	assert.NotContains(t, body, "flash-error")
}

func TestAdminDashboard_CriticalFailureIsShown(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Category{})
	})
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Product{})
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, nil)
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Order{})
	})

	f := newFixture(t, mux, admin, adminRoutes)
	rec := f.get("/admin")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to load data")
}

func TestAdminUsers_FiltersLocally(t *testing.T) {
	t.Parallel()

	var queries atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			queries.Add(1)
		}
		writeJSON(w, http.StatusOK, []models.User{
			{ID: 2, FullName: "Grace Grower", Email: "grace@agro.test"},
			{ID: 3, FullName: "Hank Buyer", Email: "hank@agro.test"},
		})
	})

	f := newFixture(t, mux, admin, adminRoutes)
	rec := f.get("/admin/users?q=GRACE")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grace@agro.test")
	assert.NotContains(t, rec.Body.String(), "hank@agro.test")
	assert.Zero(t, queries.Load())
}

func TestAdminUsers_UnauthorizedSignsOut(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	})

	f := newFixture(t, mux, admin, adminRoutes)
	rec := f.get("/admin/users")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	token, err := session.Token(context.Background(), f.store)
	require.NoError(t, err)
	assert.Empty(t, token)

	msgs := f.flashes(rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, auth.SessionExpiredMessage, msgs[0].Text)
}

func TestAdminDeleteUser_RefusesSelf(t *testing.T) {
	t.Parallel()

	var deletes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	f := newFixture(t, mux, admin, adminRoutes)
	rec := f.post("/admin/users/1/delete", url.Values{"confirm": {"yes"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/users", rec.Header().Get(echo.HeaderLocation))
	assert.Zero(t, deletes.Load())
	msgs := f.flashes(rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, flash.TypeError, msgs[0].Type)
}

func TestAdminDeleteCategory_AsksFirst(t *testing.T) {
	t.Parallel()

	var deletes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /categories/{id}", func(w http.ResponseWriter, r *http.Request) {
		deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	f := newFixture(t, mux, admin, adminRoutes)
	rec := f.post("/admin/categories/3/delete", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="confirm" value="yes"`)
	assert.Contains(t, rec.Body.String(), `action="/admin/categories/3/delete"`)
	assert.Zero(t, deletes.Load())

	rec = f.post("/admin/categories/3/delete", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.EqualValues(t, 1, deletes.Load())
	msgs := f.flashes(rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, flash.Message{Type: flash.TypeSuccess, Text: "Category deleted"}, msgs[0])
}

func TestAdminDeleteCategory_Conflict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body any
		want string
	}{
		{"backend message", map[string]string{"message": "Category still has 4 products"}, "Category still has 4 products"},
		{"fallback", nil, "Cannot delete category with products"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("DELETE /categories/{id}", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, tc.body)
			})

			f := newFixture(t, mux, admin, adminRoutes)
			rec := f.post("/admin/categories/3/delete", url.Values{"confirm": {"yes"}})

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/admin/categories", rec.Header().Get(echo.HeaderLocation))
			msgs := f.flashes(rec)
			require.Len(t, msgs, 1)
			assert.Equal(t, flash.Message{Type: flash.TypeError, Text: tc.want}, msgs[0])
		})
	}
}

func TestAdminCreateCategory_RequiresName(t *testing.T) {
	t.Parallel()

	var creates atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /categories", func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		var req models.CategoryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusCreated, models.Category{ID: 5, Name: req.Name})
	})

	f := newFixture(t, mux, admin, adminRoutes)

	rec := f.post("/admin/categories", url.Values{"name": {"   "}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Zero(t, creates.Load())

	rec = f.post("/admin/categories", url.Values{"name": {"Honey"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.EqualValues(t, 1, creates.Load())
	msgs := f.flashes(rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, `Category "Honey" created`, msgs[0].Text)
}

func farmerRoutes(g *echo.Group, b *Base) {
	h := &FarmerHandler{Base: b}
	g.GET("/farmer", h.Dashboard)
	g.GET("/farmer/products", h.Products)
	g.POST("/farmer/products", h.CreateProduct)
	g.GET("/farmer/products/:id/edit", h.EditProduct)
	g.POST("/farmer/orders/:id/status", h.UpdateOrderStatus)
	g.GET("/farmer/orders", h.Orders)
}

func farmerBackend() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Product{
			{ID: 1, Name: "Own Apples", SellerID: 7, StockQty: 3},
			{ID: 2, Name: "Other Pears", SellerID: 8, StockQty: 3},
		})
	})
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, r *http.Request) {
		seller := int64(7)
		if r.PathValue("id") == "2" {
			seller = 8
		}
		writeJSON(w, http.StatusOK, models.Product{ID: 2, Name: "Pears", SellerID: seller})
	})
	mux.HandleFunc("GET /categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Category{{ID: 1, Name: "Fruit"}})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, farmer)
	})
	mux.HandleFunc("GET /orders/seller", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Order{{
			ID:     11,
			Status: models.OrderPaid,
			Items: []models.OrderItem{
				{ProductID: 1, ProductName: "Own Apples", Quantity: 2, UnitPrice: decimal.NewFromInt(3), LineTotal: decimal.NewFromInt(6), SellerID: 7},
				{ProductID: 2, ProductName: "Other Pears", Quantity: 1, UnitPrice: decimal.NewFromInt(4), LineTotal: decimal.NewFromInt(4), SellerID: 8},
			},
		}})
	})
	return mux
}

func TestFarmerProducts_OnlyOwn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, farmerBackend(), farmer, farmerRoutes)
	rec := f.get("/farmer/products")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Own Apples")
	assert.NotContains(t, rec.Body.String(), "Other Pears")
}

func TestFarmerEditProduct_NotOwned(t *testing.T) {
	t.Parallel()

	f := newFixture(t, farmerBackend(), farmer, farmerRoutes)

	rec := f.get("/farmer/products/2/edit")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.get("/farmer/products/1/edit")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFarmerCreateProduct_InvalidFormIsNotSent(t *testing.T) {
	t.Parallel()

	var creates atomic.Int32
	mux := farmerBackend()
	mux.HandleFunc("POST /products", func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		writeJSON(w, http.StatusCreated, models.Product{ID: 3})
	})

	f := newFixture(t, mux, farmer, farmerRoutes)
	rec := f.post("/farmer/products", url.Values{
		"name":       {"Plums"},
		"price":      {"-1"},
		"stockQty":   {"4"},
		"categoryId": {"1"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Price must be a number of at least 0")
	assert.Contains(t, rec.Body.String(), `value="Plums"`)
	assert.Zero(t, creates.Load())
}

func TestFarmerOrders_ShowsOnlyOwnItems(t *testing.T) {
	t.Parallel()

	got := sellerOrders([]models.Order{
		{ID: 1, Status: models.OrderPaid, Items: []models.OrderItem{
			{ProductID: 1, SellerID: 7, LineTotal: decimal.NewFromInt(6)},
			{ProductID: 2, SellerID: 8, LineTotal: decimal.NewFromInt(4)},
		}},
		{ID: 2, Status: models.OrderPaid, Items: []models.OrderItem{
			{ProductID: 2, SellerID: 8, LineTotal: decimal.NewFromInt(4)},
		}},
	}, 7)

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Order.ID)
	require.Len(t, got[0].Items, 1)
	assert.True(t, decimal.NewFromInt(6).Equal(got[0].Subtotal))
	assert.Equal(t, models.OrderShipped, got[0].Next)
}

func TestFarmerUpdateOrderStatus(t *testing.T) {
	t.Parallel()

	var sent models.StatusRequest
	mux := farmerBackend()
	mux.HandleFunc("PATCH /orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		writeJSON(w, http.StatusOK, models.Order{ID: 11, Status: sent.Status})
	})

	f := newFixture(t, mux, farmer, farmerRoutes)

	rec := f.post("/farmer/orders/11/status", url.Values{"status": {"CANCELLED"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, sent.Status)

	rec = f.post("/farmer/orders/11/status", url.Values{"status": {"shipped"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, models.OrderShipped, sent.Status)
	msgs := f.flashes(rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Status updated successfully", msgs[0].Text)
	assert.Equal(t, []string{"order_status_changed"}, f.events.types())
}

func buyerRoutes(g *echo.Group, b *Base) {
	h := &BuyerHandler{Base: b}
	g.GET("/buyer", h.Dashboard)
	g.GET("/buyer/browse", h.Browse)
	g.POST("/buyer/products/:id/reviews", h.CreateReview)
	g.GET("/buyer/orders/:id", h.Order)
}

func TestBuyerDashboard_Spent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/my", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Order{
			{ID: 1, Status: models.OrderPaid, TotalAmount: decimal.RequireFromString("10.25")},
			{ID: 2, Status: models.OrderCreated, TotalAmount: decimal.RequireFromString("99")},
			{ID: 3, Status: models.OrderDelivered, TotalAmount: decimal.RequireFromString("4.75")},
		})
	})

	f := newFixture(t, mux, buyer, buyerRoutes)
	rec := f.get("/buyer")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), views.Money(decimal.NewFromInt(114)))
}

func TestBuyerBrowse_Paginates(t *testing.T) {
	t.Parallel()

	products := make([]models.Product, 0, 15)
	for i := 1; i <= 15; i++ {
		products = append(products, models.Product{ID: int64(i), Name: "Crate " + string(rune('A'+i-1)), StockQty: 1, CategoryID: 1})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, products)
	})
	mux.HandleFunc("GET /categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Category{{ID: 1, Name: "Fruit"}})
	})

	f := newFixture(t, mux, buyer, buyerRoutes)

	rec := f.get("/buyer/browse?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Crate M")
	assert.NotContains(t, rec.Body.String(), "Crate A<")
}

func TestBuyerCreateReview_RatingRange(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /reviews", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		writeJSON(w, http.StatusCreated, models.Review{ID: 1})
	})

	f := newFixture(t, mux, buyer, buyerRoutes)

	for _, rating := range []string{"0", "6", "x"} {
		rec := f.post("/buyer/products/4/reviews", url.Values{"rating": {rating}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/buyer/products/4", rec.Header().Get(echo.HeaderLocation))
	}
	assert.Zero(t, posts.Load())

	rec := f.post("/buyer/products/4/reviews", url.Values{"rating": {"5"}, "comment": {"crisp"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.EqualValues(t, 1, posts.Load())
}

func TestBuyerOrder_WithoutPayment(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Order{ID: 5, Status: models.OrderCreated})
	})
	mux.HandleFunc("GET /payments/order/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no payment"})
	})

	f := newFixture(t, mux, buyer, buyerRoutes)
	rec := f.get("/buyer/orders/5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Payment details are unavailable")
}

func authRoutes(g *echo.Group, b *Base) {
	h := &AuthHandler{Base: b}
	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.POST("/logout", h.Logout)
}

func TestLogin_StoresTokenAndGoesHome(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, models.TokenResponse{Token: "fresh-token"})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, farmer)
	})

	f := newFixture(t, mux, nil, authRoutes)

	rec := f.post("/login", url.Values{"email": {"fred@agro.test"}, "password": {"wrong"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")

	rec = f.post("/login", url.Values{"email": {"fred@agro.test"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/farmer", rec.Header().Get(echo.HeaderLocation))

	token, err := session.Token(context.Background(), f.store)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, []string{"user_logged_in"}, f.events.types())
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		form url.Values
		want string
	}{
		{"short password", url.Values{"fullName": {"Bea"}, "email": {"bea@agro.test"}, "password": {"123"}, "role": {"BUYER"}}, "Password must be at least 6 characters"},
		{"admin role", url.Values{"fullName": {"Bea"}, "email": {"bea@agro.test"}, "password": {"123456"}, "role": {"ADMIN"}}, "Choose whether you buy or sell"},
		{"bad email", url.Values{"fullName": {"Bea"}, "email": {"bea"}, "password": {"123456"}, "role": {"FARMER"}}, "Email is not valid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, http.NotFoundHandler(), nil, authRoutes)
			rec := f.post("/register", tc.form)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestLogout_KeepsCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.NotFoundHandler(), buyer, authRoutes)
	require.NoError(t, f.store.Set(context.Background(), storage.KeyCart, `[{"productId":1,"quantity":2}]`))

	rec := f.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	token, err := session.Token(context.Background(), f.store)
	require.NoError(t, err)
	assert.Empty(t, token)

	cart, err := f.store.Get(context.Background(), storage.KeyCart)
	require.NoError(t, err)
	assert.NotEmpty(t, cart)
}

func TestBack_OnlyLocalPaths(t *testing.T) {
	t.Parallel()

	e := echo.New()
	for back, want := range map[string]string{
		"/buyer/browse?page=2": "/buyer/browse?page=2",
		"//evil.test":          "/home",
		"https://evil.test":    "/home",
		"":                     "/home",
	} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(url.Values{"back": {back}}.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		c := e.NewContext(req, httptest.NewRecorder())
		assert.Equal(t, want, Back(c, "/home"), back)
	}
}
