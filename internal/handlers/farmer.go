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
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/listing"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/mykafka"
	"github.com/Skotchmaster/agromarket/internal/util"
)

type FarmerHandler struct {
	*Base
}

type farmerStats struct {
	Products          int
	Orders            int
	Revenue           decimal.Decimal
	OrdersUnavailable bool
}

// Dashboard shows the farmer's own product count, orders and the revenue the
// backend keeps on the profile.
func (h *FarmerHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "farmer_dashboard")
	userID := UserID(c)

	var (
		stats     farmerStats
		products  []models.Product
		me        *models.User
		orders    []models.Order
		ordersErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = h.API.ListProducts(gctx, apiclient.ProductQuery{})
		return err
	})
	g.Go(func() (err error) {
		me, err = h.API.Me(gctx)
		return err
	})
	g.Go(func() error {
		orders, ordersErr = h.API.SellerOrders(gctx)
		return nil
	})

	var extra []flash.Message
	if err := g.Wait(); err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load data")
		if ferr != nil {
			return ferr
		}
		extra = msgs
	} else {
		stats.Products = len(listing.OwnedBy(products, userID))
		stats.Revenue = me.Revenue
	}

	if ordersErr != nil {
		if apiclient.IsUnauthorized(ordersErr) {
			return ordersErr
		}
		l.Warn("orders_unavailable", "error", ordersErr)
		stats.OrdersUnavailable = true
	} else {
		stats.Orders = len(orders)
	}

	return h.Render(c, "farmer_dashboard", "Farmer Dashboard", stats, extra...)
}

// Products lists the signed-in farmer's products only.
func (h *FarmerHandler) Products(c echo.Context) error {
	list, err := h.loadProducts(c)
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load data")
		if ferr != nil {
			return ferr
		}
		return h.Render(c, "farmer_products", "My Products", productList{Query: list.Query, CategoryID: list.CategoryID}, msgs...)
	}
	list.Products = listing.OwnedBy(list.Products, UserID(c))
	return h.Render(c, "farmer_products", "My Products", list)
}

type productForm struct {
	Name        string
	Description string
	Price       string
	StockQty    string
	CategoryID  int64
}

type productFormPage struct {
	ProductID  int64
	Form       productForm
	Categories []models.Category
}

func formFromProduct(p models.Product) productForm {
	return productForm{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		StockQty:    strconv.Itoa(p.StockQty),
		CategoryID:  p.CategoryID,
	}
}

func readProductForm(c echo.Context) productForm {
	f := productForm{
		Name:        strings.TrimSpace(c.FormValue("name")),
		Description: strings.TrimSpace(c.FormValue("description")),
		Price:       strings.TrimSpace(c.FormValue("price")),
		StockQty:    strings.TrimSpace(c.FormValue("stockQty")),
	}
	f.CategoryID, _ = util.ParseID(c.FormValue("categoryId"))
	return f
}

// request checks the form the way the browser form does: required fields,
// a non-negative price and a non-negative whole stock quantity.
func (f productForm) request() (models.ProductRequest, error) {
	if f.Name == "" {
		return models.ProductRequest{}, fmt.Errorf("%w: Product name is required", ErrValidation)
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil || price.IsNegative() {
		return models.ProductRequest{}, fmt.Errorf("%w: Price must be a number of at least 0", ErrValidation)
	}
	stock, err := strconv.Atoi(f.StockQty)
	if err != nil || stock < 0 {
		return models.ProductRequest{}, fmt.Errorf("%w: Stock must be a whole number of at least 0", ErrValidation)
	}
	if f.CategoryID <= 0 {
		return models.ProductRequest{}, fmt.Errorf("%w: Choose a category", ErrValidation)
	}
	return models.ProductRequest{
		Name:        f.Name,
		Description: f.Description,
		Price:       price.Round(2),
		StockQty:    stock,
		CategoryID:  f.CategoryID,
	}, nil
}

// validationText strips the sentinel prefix for display.
func validationText(err error) string {
	return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
}

func (h *FarmerHandler) renderForm(c echo.Context, id int64, form productForm, extra ...flash.Message) error {
	title := "New product"
	if id != 0 {
		title = "Edit product"
	}
	categories, err := h.API.ListCategories(c.Request().Context())
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load categories")
		if ferr != nil {
			return ferr
		}
		extra = append(extra, msgs...)
	}
	return h.Render(c, "farmer_product_form", title, productFormPage{ProductID: id, Form: form, Categories: categories}, extra...)
}

func (h *FarmerHandler) NewProduct(c echo.Context) error {
	return h.renderForm(c, 0, productForm{StockQty: "0"})
}

func (h *FarmerHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "farmer_create_product")

	form := readProductForm(c)
	req, err := form.request()
	if err != nil {
		return h.renderForm(c, 0, form, flash.Message{Type: flash.TypeError, Text: validationText(err)})
	}

	p, err := h.API.CreateProduct(ctx, req)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return err
		}
		l.Warn("create_product_failed", "error", err)
		return h.renderForm(c, 0, form, flash.Message{Type: flash.TypeError, Text: apiclient.Message(err, "Failed to save product")})
	}
	l.Info("product_created", "product_id", p.ID)
	return h.Succeed(c, "Product created", "/farmer/products")
}

// ownProduct loads a product and checks it belongs to the signed-in farmer.
func (h *FarmerHandler) ownProduct(c echo.Context) (*models.Product, error) {
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.API.GetProduct(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if p.SellerID != UserID(c) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Product not found")
	}
	return p, nil
}

func (h *FarmerHandler) EditProduct(c echo.Context) error {
	p, err := h.ownProduct(c)
	if err != nil {
		return h.productMissing(c, err)
	}
	return h.renderForm(c, p.ID, formFromProduct(*p))
}

func (h *FarmerHandler) productMissing(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return h.Fail(c, err, "Failed to load product", "/farmer/products")
}

func (h *FarmerHandler) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "farmer_update_product")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	form := readProductForm(c)
	req, err := form.request()
	if err != nil {
		return h.renderForm(c, id, form, flash.Message{Type: flash.TypeError, Text: validationText(err)})
	}

	p, err := h.API.UpdateProduct(ctx, id, req)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return err
		}
		l.Warn("update_product_failed", "product_id", id, "error", err)
		return h.renderForm(c, id, form, flash.Message{Type: flash.TypeError, Text: apiclient.Message(err, "Failed to save product")})
	}
	l.Info("product_updated", "product_id", p.ID)
	return h.Succeed(c, "Product updated", "/farmer/products")
}

func (h *FarmerHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "farmer_delete_product")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !Confirmed(c) {
		return h.Confirm(c, Confirmation{
			Title:   "Delete product",
			Message: "Delete this product? Buyers will no longer see it.",
			Action:  fmt.Sprintf("/farmer/products/%d/delete", id),
			Cancel:  "/farmer/products",
		})
	}

	if err := h.API.DeleteProduct(ctx, id); err != nil {
		return h.Fail(c, err, "Failed to delete", "/farmer/products")
	}
	l.Info("product_deleted", "product_id", id)
	return h.Succeed(c, "Product deleted", "/farmer/products")
}

// sellerOrder is one order as the farmer sees it: only the farmer's own
// line items and their subtotal.
type sellerOrder struct {
	Order    models.Order
	Items    []models.OrderItem
	Subtotal decimal.Decimal
	Next     models.OrderStatus
}

func sellerOrders(orders []models.Order, sellerID int64) []sellerOrder {
	out := make([]sellerOrder, 0, len(orders))
	for _, o := range orders {
		items := listing.SellerItems(o, sellerID)
		if len(items) == 0 {
			continue
		}
		so := sellerOrder{Order: o, Items: items, Subtotal: listing.SellerTotal(o, sellerID)}
		if next, ok := o.Status.Next(); ok {
			so.Next = next
		}
		out = append(out, so)
	}
	return out
}

func (h *FarmerHandler) Orders(c echo.Context) error {
	orders, err := h.API.SellerOrders(c.Request().Context())
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load orders")
		if ferr != nil {
			return ferr
		}
		return h.Render(c, "farmer_orders", "Orders", []sellerOrder{}, msgs...)
	}
	return h.Render(c, "farmer_orders", "Orders", sellerOrders(orders, UserID(c)))
}

// UpdateOrderStatus moves an order forward on the delivery path. Payment
// moves it to PAID; the farmer only ships and delivers.
func (h *FarmerHandler) UpdateOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "farmer_update_order_status")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	status := models.OrderStatus(strings.ToUpper(c.FormValue("status")))
	if status != models.OrderShipped && status != models.OrderDelivered {
		return h.Reject(c, "Unknown order status", "/farmer/orders")
	}

	order, err := h.API.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return h.Fail(c, err, "Failed to update status", "/farmer/orders")
	}

	h.Publish(c, mykafka.TopicOrder, map[string]any{
		"type":    "order_status_changed",
		"userID":  UserID(c),
		"orderID": order.ID,
		"status":  order.Status,
	})
	l.Info("order_status_updated", "order_id", order.ID, "status", order.Status)
	return h.Succeed(c, "Status updated successfully", "/farmer/orders")
}
