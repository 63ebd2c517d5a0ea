package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/listing"
	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/util"
)

type AdminHandler struct {
	*Base
}

type adminStats struct {
	Categories        int
	Products          int
	Users             int
	Orders            int
	OrdersUnavailable bool
}

// Dashboard loads the four collections concurrently. Orders are optional: a
// failure there shows a dash instead of failing the page.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_dashboard")

	var (
		stats      adminStats
		categories []models.Category
		products   []models.Product
		users      []models.User
		orders     []models.Order
		ordersErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		categories, err = h.API.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		products, err = h.API.ListProducts(gctx, apiclient.ProductQuery{})
		return err
	})
	g.Go(func() (err error) {
		users, err = h.API.ListUsers(gctx)
		return err
	})
	g.Go(func() error {
		orders, ordersErr = h.API.AllOrders(gctx)
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
		stats.Categories, stats.Products, stats.Users = len(categories), len(products), len(users)
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

	return h.Render(c, "admin_dashboard", "Admin Dashboard", stats, extra...)
}

type userList struct {
	Users []models.User
	Query string
}

func (h *AdminHandler) Users(c echo.Context) error {
	ctx := c.Request().Context()
	q := strings.TrimSpace(c.QueryParam("q"))

	users, err := h.API.ListUsers(ctx)
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load users")
		if ferr != nil {
			return ferr
		}
		return h.Render(c, "admin_users", "Users", userList{Query: q}, msgs...)
	}
	return h.Render(c, "admin_users", "Users", userList{Users: listing.FilterUsers(users, q), Query: q})
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_delete_user")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if id == UserID(c) {
		return h.Reject(c, "You cannot delete your own account", "/admin/users")
	}
	if !Confirmed(c) {
		return h.Confirm(c, Confirmation{
			Title:   "Delete user",
			Message: "Are you sure you want to delete this user?",
			Action:  fmt.Sprintf("/admin/users/%d/delete", id),
			Cancel:  "/admin/users",
		})
	}

	if err := h.API.DeleteUser(ctx, id); err != nil {
		return h.Fail(c, err, "Failed to delete user", "/admin/users")
	}
	l.Info("user_deleted", "deleted_user_id", id)
	return h.Succeed(c, "User deleted", "/admin/users")
}

type categoryList struct {
	Categories []models.Category
	Name       string
}

func (h *AdminHandler) Categories(c echo.Context) error {
	categories, err := h.API.ListCategories(c.Request().Context())
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load categories")
		if ferr != nil {
			return ferr
		}
		return h.Render(c, "admin_categories", "Categories", categoryList{}, msgs...)
	}
	return h.Render(c, "admin_categories", "Categories", categoryList{Categories: categories})
}

func (h *AdminHandler) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_create_category")

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return h.Reject(c, "Category name is required", "/admin/categories")
	}

	cat, err := h.API.CreateCategory(ctx, name)
	if err != nil {
		return h.Fail(c, err, "Failed to create category", "/admin/categories")
	}
	l.Info("category_created", "category_id", cat.ID)
	return h.Succeed(c, fmt.Sprintf("Category %q created", cat.Name), "/admin/categories")
}

func (h *AdminHandler) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_delete_category")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !Confirmed(c) {
		return h.Confirm(c, Confirmation{
			Title:   "Delete category",
			Message: "Delete this category? Categories that still hold products cannot be deleted.",
			Action:  fmt.Sprintf("/admin/categories/%d/delete", id),
			Cancel:  "/admin/categories",
		})
	}

	if err := h.API.DeleteCategory(ctx, id); err != nil {
		return h.Fail(c, err, "Cannot delete category with products", "/admin/categories")
	}
	l.Info("category_deleted", "category_id", id)
	return h.Succeed(c, "Category deleted", "/admin/categories")
}

type productList struct {
	Products   []models.Product
	Categories []models.Category
	Query      string
	CategoryID int64
}

// loadProducts fetches products and categories for a filterable product
// list. The filter is applied locally.
func (b *Base) loadProducts(c echo.Context) (productList, error) {
	ctx := c.Request().Context()
	list := productList{
		Query: strings.TrimSpace(c.QueryParam("q")),
	}
	list.CategoryID, _ = util.ParseID(c.QueryParam("categoryId"))

	g, gctx := errgroup.WithContext(ctx)
	var products []models.Product
	g.Go(func() (err error) {
		products, err = b.API.ListProducts(gctx, apiclient.ProductQuery{})
		return err
	})
	g.Go(func() (err error) {
		list.Categories, err = b.API.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return list, err
	}
	list.Products = listing.FilterProducts(products, list.Query, list.CategoryID)
	return list, nil
}

func (h *AdminHandler) Products(c echo.Context) error {
	list, err := h.loadProducts(c)
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load data")
		if ferr != nil {
			return ferr
		}
		return h.Render(c, "admin_products", "Products", productList{Query: list.Query, CategoryID: list.CategoryID}, msgs...)
	}
	return h.Render(c, "admin_products", "Products", list)
}

func (h *AdminHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_delete_product")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !Confirmed(c) {
		return h.Confirm(c, Confirmation{
			Title:   "Remove product",
			Message: "Remove this product from the marketplace?",
			Action:  fmt.Sprintf("/admin/products/%d/delete", id),
			Cancel:  "/admin/products",
		})
	}

	if err := h.API.DeleteProduct(ctx, id); err != nil {
		return h.Fail(c, err, "Failed to remove product", "/admin/products")
	}
	l.Info("product_removed", "product_id", id)
	return h.Succeed(c, "Product removed", "/admin/products")
}

type orderList struct {
	Orders   []models.Order
	Status   string
	Statuses []models.OrderStatus
}

var orderStatuses = []models.OrderStatus{
	models.OrderCreated,
	models.OrderPaid,
	models.OrderShipped,
	models.OrderDelivered,
	models.OrderCancelled,
}

func (h *AdminHandler) Orders(c echo.Context) error {
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	list := orderList{Status: status, Statuses: orderStatuses}

	orders, err := h.API.AllOrders(c.Request().Context())
	if err != nil {
		msgs, ferr := h.LoadFailed(c, err, "Failed to load orders")
		if ferr != nil {
			return ferr
		}
		return h.Render(c, "admin_orders", "Orders", list, msgs...)
	}
	list.Orders = listing.FilterOrders(orders, models.OrderStatus(status))
	return h.Render(c, "admin_orders", "Orders", list)
}
