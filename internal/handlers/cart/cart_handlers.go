// Package cart serves the buyer's cart page and its actions.
package cart

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	basket "github.com/Skotchmaster/agromarket/internal/cart"
	"github.com/Skotchmaster/agromarket/internal/handlers"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/middleware/auth"
	"github.com/Skotchmaster/agromarket/internal/mykafka"
	"github.com/Skotchmaster/agromarket/internal/util"
)

const cartPath = "/buyer/cart"

const (
	outcomeEmpty         = "empty"
	outcomeSuccess       = "success"
	outcomeOrderFailed   = "order_failed"
	outcomePaymentFailed = "payment_failed"
)

type CartHandler struct {
	*handlers.Base
	Now func() time.Time
}

func (h *CartHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *CartHandler) load(c echo.Context) (*basket.Cart, error) {
	st := auth.StoreFrom(c)
	if st == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cart storage unavailable")
	}
	ct, err := basket.Load(c.Request().Context(), st)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("cart_load_failed", "error", err)
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "cart storage unavailable")
	}
	return ct, nil
}

type cartPage struct {
	Entries []basket.Entry
	Total   decimal.Decimal
	Count   int
}

func (h *CartHandler) GetCart(c echo.Context) error {
	ct, err := h.load(c)
	if err != nil {
		return err
	}
	return h.Render(c, "buyer_cart", "Shopping Cart", cartPage{
		Entries: ct.Entries(),
		Total:   ct.Total(),
		Count:   ct.Count(),
	})
}

// AddToCart looks the product up so the entry carries the current name and
// price, then adds one unit.
func (h *CartHandler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_add")
	back := handlers.Back(c, "/buyer/browse")

	productID, ok := util.ParseID(c.FormValue("productId"))
	if !ok {
		return h.Reject(c, "Unknown product", back)
	}

	p, err := h.API.GetProduct(ctx, productID)
	if err != nil {
		return h.Fail(c, err, "Product not available", back)
	}

	ct, err := h.load(c)
	if err != nil {
		return err
	}
	if err := ct.Add(ctx, *p); err != nil {
		if errors.Is(err, basket.ErrOutOfStock) {
			return h.Reject(c, fmt.Sprintf("%s is out of stock", p.Name), back)
		}
		l.Error("cart_add_failed", "product_id", productID, "error", err)
		return h.Reject(c, "Could not update the cart", back)
	}

	h.Publish(c, mykafka.TopicCart, map[string]any{
		"type":      "cart_item_added",
		"userID":    handlers.UserID(c),
		"productID": p.ID,
		"count":     ct.Count(),
	})
	return h.Succeed(c, fmt.Sprintf("%s added to cart", p.Name), back)
}

func (h *CartHandler) ChangeQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_change_quantity")

	productID, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	delta, err := strconv.Atoi(c.FormValue("delta"))
	if err != nil {
		return h.Reject(c, "Invalid quantity change", cartPath)
	}
	// the cart page only steps by one
	delta = max(-1, min(1, delta))

	ct, err := h.load(c)
	if err != nil {
		return err
	}
	if err := ct.ChangeQuantity(ctx, productID, delta); err != nil {
		l.Error("cart_change_quantity_failed", "product_id", productID, "error", err)
		return h.Reject(c, "Could not update the cart", cartPath)
	}

	h.Publish(c, mykafka.TopicCart, map[string]any{
		"type":      "cart_quantity_changed",
		"userID":    handlers.UserID(c),
		"productID": productID,
		"delta":     delta,
	})
	return c.Redirect(http.StatusSeeOther, cartPath)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_remove")

	productID, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ct, err := h.load(c)
	if err != nil {
		return err
	}
	if err := ct.Remove(ctx, productID); err != nil {
		l.Error("cart_remove_failed", "product_id", productID, "error", err)
		return h.Reject(c, "Could not update the cart", cartPath)
	}

	h.Publish(c, mykafka.TopicCart, map[string]any{
		"type":         "cart_item_removed",
		"userID":       handlers.UserID(c),
		"deleted_item": productID,
	})
	return c.Redirect(http.StatusSeeOther, cartPath)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_clear")

	if !handlers.Confirmed(c) {
		return h.Confirm(c, handlers.Confirmation{
			Title:   "Clear cart",
			Message: "Remove every item from your cart?",
			Action:  cartPath + "/clear",
			Cancel:  cartPath,
		})
	}

	ct, err := h.load(c)
	if err != nil {
		return err
	}
	if err := ct.Clear(ctx); err != nil {
		l.Error("cart_clear_failed", "error", err)
		return h.Reject(c, "Could not update the cart", cartPath)
	}

	h.Publish(c, mykafka.TopicCart, map[string]any{
		"type":   "cart_cleared",
		"userID": handlers.UserID(c),
	})
	return h.Succeed(c, "Cart cleared", cartPath)
}

// Checkout places the cart as an order and pays it. The cart survives any
// failure; an order whose payment failed stays on the backend unpaid.
func (h *CartHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_checkout")
	userID := handlers.UserID(c)

	ct, err := h.load(c)
	if err != nil {
		return err
	}

	shown := ct.Total()
	receipt, err := ct.Checkout(ctx, h.API, h.now())
	if receipt == nil && err == nil {
		h.Metrics.ObserveCheckout(outcomeEmpty)
		return h.Reject(c, "Your cart is empty", cartPath)
	}
	if receipt == nil {
		var payErr *basket.PaymentError
		if errors.As(err, &payErr) {
			h.Metrics.ObserveCheckout(outcomePaymentFailed)
			l.Error("checkout_payment_failed", "order_id", payErr.OrderID, "reason", "order created without payment", "error", err)
			h.Publish(c, mykafka.TopicOrder, map[string]any{
				"type":    "order_payment_failed",
				"userID":  userID,
				"orderID": payErr.OrderID,
			})
		} else {
			h.Metrics.ObserveCheckout(outcomeOrderFailed)
		}
		return h.Fail(c, err, "Failed to place order", cartPath)
	}
	if err != nil {
		// the order is paid; only the local cart could not be emptied
		l.Error("checkout_clear_failed", "order_id", receipt.Order.ID, "error", err)
	}

	h.Metrics.ObserveCheckout(outcomeSuccess)
	h.Publish(c, mykafka.TopicOrder, map[string]any{
		"type":       "order_placed",
		"userID":     userID,
		"orderID":    receipt.Order.ID,
		"paymentID":  receipt.Payment.ID,
		"amount":     receipt.Order.TotalAmount,
		"cart_total": shown,
	})
	l.Info("checkout_successful", "order_id", receipt.Order.ID, "payment_id", receipt.Payment.ID)
	return h.Succeed(c, "Order placed successfully!", "/buyer/orders")
}
