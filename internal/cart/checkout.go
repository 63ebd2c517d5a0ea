package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/agromarket/internal/models"
)

const PaymentMethod = "CARD"

type OrderPlacer interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.Payment, error)
}

type Receipt struct {
	Order   *models.Order
	Payment *models.Payment
}

// PaymentError is a checkout that created its order but failed to pay it.
// The backend keeps the unpaid order.
type PaymentError struct {
	OrderID int64
	Err     error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("create payment for order %d: %v", e.OrderID, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

func PaymentReference(now time.Time) string {
	return fmt.Sprintf("PAY-%d", now.UnixMilli())
}

// Checkout places the cart as an order and pays the total the backend
// confirmed. Prices are re-derived by the backend from the product ids.
// An empty cart sends nothing and returns a nil receipt. On any failure the
// cart is left as it was.
func (c *Cart) Checkout(ctx context.Context, api OrderPlacer, now time.Time) (*Receipt, error) {
	if c.Empty() {
		return nil, nil
	}

	lines := make([]models.OrderLine, 0, len(c.entries))
	for _, e := range c.entries {
		lines = append(lines, models.OrderLine{ProductID: e.ProductID, Quantity: e.Quantity})
	}

	order, err := api.CreateOrder(ctx, models.CreateOrderRequest{Items: lines})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	payment, err := api.CreatePayment(ctx, models.CreatePaymentRequest{
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		Method:    PaymentMethod,
		Reference: PaymentReference(now),
	})
	if err != nil {
		return nil, &PaymentError{OrderID: order.ID, Err: err}
	}

	if err := c.Clear(ctx); err != nil {
		return &Receipt{Order: order, Payment: payment}, err
	}
	return &Receipt{Order: order, Payment: payment}, nil
}
