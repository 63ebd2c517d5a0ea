package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Skotchmaster/agromarket/internal/models"
)

func id(v int64) string { return strconv.FormatInt(v, 10) }

// auth

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/register", "/auth/register", nil, req, nil)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	var resp models.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "/auth/login", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login: empty token in response")
	}
	return resp.Token, nil
}

// users

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/users/me", "/users/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/users", "/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, "/users/{id}", "/users/"+id(userID), nil, nil, nil)
}

// categories

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := c.do(ctx, http.MethodGet, "/categories", "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	var out models.Category
	if err := c.do(ctx, http.MethodPost, "/categories", "/categories", nil, models.CategoryRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, categoryID int64) error {
	return c.do(ctx, http.MethodDelete, "/categories/{id}", "/categories/"+id(categoryID), nil, nil, nil)
}

// products

// ProductQuery narrows GET /products; zero fields are not sent.
type ProductQuery struct {
	CategoryID int64
	Q          string
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.CategoryID > 0 {
		v.Set("categoryId", id(q.CategoryID))
	}
	if s := strings.TrimSpace(q.Q); s != "" {
		v.Set("q", s)
	}
	return v
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, http.MethodGet, "/products", "/products", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodGet, "/products/{id}", "/products/"+id(productID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, req models.ProductRequest) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPost, "/products", "/products", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, productID int64, req models.ProductRequest) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPut, "/products/{id}", "/products/"+id(productID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, productID int64) error {
	return c.do(ctx, http.MethodDelete, "/products/{id}", "/products/"+id(productID), nil, nil, nil)
}

// orders

func (c *Client) MyOrders(ctx context.Context) ([]models.Order, error) {
	return c.listOrders(ctx, "/orders/my")
}

func (c *Client) SellerOrders(ctx context.Context) ([]models.Order, error) {
	return c.listOrders(ctx, "/orders/seller")
}

func (c *Client) AllOrders(ctx context.Context) ([]models.Order, error) {
	return c.listOrders(ctx, "/orders")
}

func (c *Client) listOrders(ctx context.Context, path string) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, path, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodGet, "/orders/{id}", "/orders/"+id(orderID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodPost, "/orders", "/orders", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	var out models.Order
	path := "/orders/" + id(orderID) + "/status"
	if err := c.do(ctx, http.MethodPatch, "/orders/{id}/status", path, nil, models.StatusRequest{Status: status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// payments

func (c *Client) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.Payment, error) {
	var out models.Payment
	if err := c.do(ctx, http.MethodPost, "/payments", "/payments", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PaymentForOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	var out models.Payment
	if err := c.do(ctx, http.MethodGet, "/payments/order/{id}", "/payments/order/"+id(orderID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// reviews

func (c *Client) ProductReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	var out []models.Review
	if err := c.do(ctx, http.MethodGet, "/reviews/product/{id}", "/reviews/product/"+id(productID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateReview(ctx context.Context, req models.CreateReviewRequest) (*models.Review, error) {
	var out models.Review
	if err := c.do(ctx, http.MethodPost, "/reviews", "/reviews", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteReview(ctx context.Context, reviewID int64) error {
	return c.do(ctx, http.MethodDelete, "/reviews/{id}", "/reviews/"+id(reviewID), nil, nil, nil)
}
