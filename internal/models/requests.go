package models

import "github.com/shopspring/decimal"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Roles    []Role `json:"roles"`
	Phone    string `json:"phone,omitempty"`
	City     string `json:"city,omitempty"`
}

type CategoryRequest struct {
	Name string `json:"name"`
}

type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StockQty    int             `json:"stockQty"`
	CategoryID  int64           `json:"categoryId"`
}

type OrderLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequest struct {
	Items []OrderLine `json:"items"`
}

type StatusRequest struct {
	Status OrderStatus `json:"status"`
}

type CreatePaymentRequest struct {
	OrderID   int64           `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

type CreateReviewRequest struct {
	ProductID int64  `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}
