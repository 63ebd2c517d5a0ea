// Package listing narrows collections fetched from the backend for display.
// Nothing here is persisted.
package listing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/agromarket/internal/models"
)

// FilterProducts keeps products whose name contains query (case-insensitive)
// and whose category equals categoryID. Empty query and zero categoryID
// match everything.
func FilterProducts(products []models.Product, query string, categoryID int64) []models.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if categoryID != 0 && p.CategoryID != categoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// OwnedBy keeps the products listed by sellerID.
func OwnedBy(products []models.Product, sellerID int64) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out
}

// SellerItems keeps the line items of order sold by sellerID.
func SellerItems(order models.Order, sellerID int64) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		if it.SellerID == sellerID {
			out = append(out, it)
		}
	}
	return out
}

func SellerTotal(order models.Order, sellerID int64) decimal.Decimal {
	total := decimal.Zero
	for _, it := range SellerItems(order, sellerID) {
		total = total.Add(it.LineTotal)
	}
	return total
}

// Spent sums the order totals.
func Spent(orders []models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
	}
	return total
}

func FilterUsers(users []models.User, query string) []models.User {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.FullName), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}

func FilterOrders(orders []models.Order, status models.OrderStatus) []models.Order {
	if status == "" {
		return orders
	}
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}
