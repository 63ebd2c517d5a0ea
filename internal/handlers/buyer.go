package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/cart"
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/listing"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/middleware/auth"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/util"
)

type BuyerHandler struct {
	*Base
}

type buyerStats struct {
	Orders            int
	OrdersUnavailable bool
	Spent             decimal.Decimal
	CartCount         int
}

func (h *BuyerHandler) Dashboard(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "buyer_dashboard")
	stats := buyerStats{CartCount: h.cartCount(c)}

	orders, err := h.API.MyOrders(c.Request().Context())
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return err
		}
		l.Warn("orders_unavailable", "error", err)
		stats.OrdersUnavailable = true
	} else {
		stats.Orders = len(orders)
		stats.Spent = listing.Spent(orders)
	}
	return h.Render(c, "buyer_dashboard", "Dashboard", stats)
}

type browsePage struct {
	Products      []models.Product
	Categories    []models.Category
	Query         string
	CategoryID    int64
	CategoryParam string
	Page          util.Page
}

func (h *BuyerHandler) Browse(c echo.Context) error {
	list, err := h.loadProducts(c)
	page := browsePage{Query: list.Query, CategoryID: list.CategoryID}
	if list.CategoryID > 0 {
		page.CategoryParam = strconv.FormatInt(list.CategoryID, 10)
	}
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load products")
		if ferr != nil {
			return ferr
		}
		_, page.Page = util.Paginate([]models.Product(nil), 1, util.DefaultPageSize)
		return h.Render(c, "buyer_browse", "Browse Products", page, msgs...)
	}

	number := util.ParseIntDefault(c.QueryParam("page"), 1)
	page.Products, page.Page = util.Paginate(list.Products, number, util.DefaultPageSize)
	page.Categories = list.Categories
	return h.Render(c, "buyer_browse", "Browse Products", page)
}

type productPage struct {
	Product            *models.Product
	Reviews            []models.Review
	ReviewsUnavailable bool
	InCart             int
}

// Product shows one product with its reviews. Reviews are optional.
func (h *BuyerHandler) Product(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "buyer_product")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		page       productPage
		reviewsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page.Product, err = h.API.GetProduct(gctx, id)
		return err
	})
	g.Go(func() error {
		page.Reviews, reviewsErr = h.API.ProductReviews(gctx, id)
		return nil
	})
	if err := g.Wait(); err != nil {
		return h.Fail(c, err, "Product not available", "/buyer/browse")
	}
	if reviewsErr != nil {
		if apiclient.IsUnauthorized(reviewsErr) {
			return reviewsErr
		}
		l.Warn("reviews_unavailable", "product_id", id, "error", reviewsErr)
		page.ReviewsUnavailable = true
	}

	if st := auth.StoreFrom(c); st != nil {
		if ct, err := cart.Load(ctx, st); err == nil {
			for _, e := range ct.Entries() {
				if e.ProductID == id {
					page.InCart = e.Quantity
				}
			}
		}
	}
	return h.Render(c, "buyer_product", page.Product.Name, page)
}

func (h *BuyerHandler) CreateReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "buyer_create_review")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	back := fmt.Sprintf("/buyer/products/%d", id)

	rating, err := strconv.Atoi(c.FormValue("rating"))
	if err != nil || rating < 1 || rating > 5 {
		return h.Reject(c, "Rating must be between 1 and 5", back)
	}

	review, err := h.API.CreateReview(ctx, models.CreateReviewRequest{
		ProductID: id,
		Rating:    rating,
		Comment:   strings.TrimSpace(c.FormValue("comment")),
	})
	if err != nil {
		return h.Fail(c, err, "Failed to post review", back)
	}
	l.Info("review_created", "review_id", review.ID, "product_id", id)
	return h.Succeed(c, "Thanks for your review", back)
}

func (h *BuyerHandler) DeleteReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "buyer_delete_review")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	back := "/buyer/browse"
	productID, hasProduct := util.ParseID(c.FormValue("productId"))
	if hasProduct {
		back = fmt.Sprintf("/buyer/products/%d", productID)
	}

	if !Confirmed(c) {
		conf := Confirmation{
			Title:   "Delete review",
			Message: "Delete your review?",
			Action:  fmt.Sprintf("/buyer/reviews/%d/delete", id),
			Cancel:  back,
		}
		if hasProduct {
			conf.Fields = map[string]string{"productId": strconv.FormatInt(productID, 10)}
		}
		return h.Confirm(c, conf)
	}

	if err := h.API.DeleteReview(ctx, id); err != nil {
		return h.Fail(c, err, "Failed to delete", back)
	}
	l.Info("review_deleted", "review_id", id)
	return h.Succeed(c, "Review deleted", back)
}

func (h *BuyerHandler) Orders(c echo.Context) error {
	orders, err := h.API.MyOrders(c.Request().Context())
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load orders")
		if ferr != nil {
			return ferr
		}
		return h.Render(c, "buyer_orders", "My Orders", struct{ Orders []models.Order }{}, msgs...)
	}
	return h.Render(c, "buyer_orders", "My Orders", struct{ Orders []models.Order }{orders})
}

type orderPage struct {
	Order   *models.Order
	Payment *models.Payment
}

// Order shows one order with its payment. An order without a payment yet is
// shown as awaiting payment.
func (h *BuyerHandler) Order(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "buyer_order")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		page       orderPage
		paymentErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page.Order, err = h.API.GetOrder(gctx, id)
		return err
	})
	g.Go(func() error {
		page.Payment, paymentErr = h.API.PaymentForOrder(gctx, id)
		return nil
	})
	if err := g.Wait(); err != nil {
		return h.Fail(c, err, "Failed to load order", "/buyer/orders")
	}

	var extra []flash.Message
	if errors.Is(paymentErr, apiclient.ErrNotFound) {
		paymentErr = nil
	}
	if paymentErr != nil {
		if apiclient.IsUnauthorized(paymentErr) {
			return paymentErr
		}
		l.Warn("payment_unavailable", "order_id", id, "error", paymentErr)
		extra = append(extra, flash.Message{Type: flash.TypeError, Text: "Payment details are unavailable right now"})
	}
	return h.Render(c, "buyer_order", fmt.Sprintf("Order #%d", id), page, extra...)
}
