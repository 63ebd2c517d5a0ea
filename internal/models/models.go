package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// the backend reads money as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleFarmer Role = "FARMER"
	RoleBuyer  Role = "BUYER"
)

// RolePrecedence is the fixed order used to resolve a role home.
var RolePrecedence = []Role{RoleAdmin, RoleFarmer, RoleBuyer}

type User struct {
	ID       int64           `json:"id"`
	FullName string          `json:"fullName"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone,omitempty"`
	City     string          `json:"city,omitempty"`
	Roles    []Role          `json:"roles"`
	Revenue  decimal.Decimal `json:"revenue"`
}

func (u *User) HasRole(r Role) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, r)
}

// PrimaryRole returns the highest-precedence role the user holds, or "".
func (u *User) PrimaryRole() Role {
	for _, r := range RolePrecedence {
		if u.HasRole(r) {
			return r
		}
	}
	return ""
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	StockQty     int             `json:"stockQty"`
	CategoryID   int64           `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	SellerID     int64           `json:"sellerId"`
	SellerName   string          `json:"sellerName"`
}

func (p Product) InStock() bool { return p.StockQty > 0 }

type OrderStatus string

const (
	OrderCreated   OrderStatus = "CREATED"
	OrderPaid      OrderStatus = "PAID"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Next returns the status a seller may advance an order to.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderPaid:
		return OrderShipped, true
	case OrderShipped:
		return OrderDelivered, true
	}
	return "", false
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderCreated:
		return "Pending"
	case OrderPaid:
		return "Paid"
	case OrderShipped:
		return "Shipped"
	case OrderDelivered:
		return "Delivered"
	case OrderCancelled:
		return "Cancelled"
	}
	return string(s)
}

type Order struct {
	ID          int64           `json:"id"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	Items       []OrderItem     `json:"items"`
	BuyerName   string          `json:"buyerName,omitempty"`
	BuyerEmail  string          `json:"buyerEmail,omitempty"`
	Payment     *Payment        `json:"payment,omitempty"`
}

type OrderItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	SellerID    int64           `json:"sellerId"`
	SellerName  string          `json:"sellerName"`
	SellerEmail string          `json:"sellerEmail"`
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
}

type Review struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"productId"`
	ReviewerEmail string    `json:"reviewerEmail"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"createdAt"`
}
