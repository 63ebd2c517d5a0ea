package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/handlers"
	"github.com/Skotchmaster/agromarket/internal/handlers/cart"
	"github.com/Skotchmaster/agromarket/internal/metrics"
	"github.com/Skotchmaster/agromarket/internal/middleware/auth"
	"github.com/Skotchmaster/agromarket/internal/middleware/csrf"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/session"
	"github.com/Skotchmaster/agromarket/internal/storage"
	"github.com/Skotchmaster/agromarket/internal/views"
)

type Deps struct {
	AuthHandler   *handlers.AuthHandler
	AdminHandler  *handlers.AdminHandler
	FarmerHandler *handlers.FarmerHandler
	BuyerHandler  *handlers.BuyerHandler
	CartHandler   *cart.CartHandler

	Gate    *auth.Gate
	Opener  storage.Opener
	Loader  *session.Loader
	Flash   *flash.Flasher
	Metrics *metrics.Metrics

	CSRFConfig csrf.Config
	BackendURL string
	// Ready reports whether the storage backend can serve requests.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) error {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
	e.StaticFS("/static", views.Static())

	if d.BackendURL != "" {
		apiProxy, err := newAPIProxy(d.BackendURL)
		if err != nil {
			return err
		}
		e.Any("/api/*", apiProxy)
	}

	pages := e.Group("",
		csrf.Middleware(d.CSRFConfig),
		auth.ExpireOnUnauthorized(d.Flash),
		auth.LoadSession(d.Opener, d.Loader),
	)

	pages.GET("/login", d.AuthHandler.LoginPage, d.Gate.PublicOnly)
	pages.POST("/login", d.AuthHandler.Login, d.Gate.PublicOnly)
	pages.GET("/register", d.AuthHandler.RegisterPage, d.Gate.PublicOnly)
	pages.POST("/register", d.AuthHandler.Register, d.Gate.PublicOnly)
	pages.POST("/logout", d.AuthHandler.Logout)

	admin := pages.Group("/admin", d.Gate.RequireRoles(models.RoleAdmin))
	admin.GET("", d.AdminHandler.Dashboard)
	admin.GET("/users", d.AdminHandler.Users)
	admin.POST("/users/:id/delete", d.AdminHandler.DeleteUser)
	admin.GET("/categories", d.AdminHandler.Categories)
	admin.POST("/categories", d.AdminHandler.CreateCategory)
	admin.POST("/categories/:id/delete", d.AdminHandler.DeleteCategory)
	admin.GET("/products", d.AdminHandler.Products)
	admin.POST("/products/:id/delete", d.AdminHandler.DeleteProduct)
	admin.GET("/orders", d.AdminHandler.Orders)
	admin.GET("/*", d.Gate.RoleRedirect)

	farmer := pages.Group("/farmer", d.Gate.RequireRoles(models.RoleFarmer))
	farmer.GET("", d.FarmerHandler.Dashboard)
	farmer.GET("/products", d.FarmerHandler.Products)
	farmer.GET("/products/new", d.FarmerHandler.NewProduct)
	farmer.POST("/products", d.FarmerHandler.CreateProduct)
	farmer.GET("/products/:id/edit", d.FarmerHandler.EditProduct)
	farmer.POST("/products/:id", d.FarmerHandler.UpdateProduct)
	farmer.POST("/products/:id/delete", d.FarmerHandler.DeleteProduct)
	farmer.GET("/orders", d.FarmerHandler.Orders)
	farmer.POST("/orders/:id/status", d.FarmerHandler.UpdateOrderStatus)
	farmer.GET("/*", d.Gate.RoleRedirect)

	buyer := pages.Group("/buyer", d.Gate.RequireRoles(models.RoleBuyer))
	buyer.GET("", d.BuyerHandler.Dashboard)
	buyer.GET("/browse", d.BuyerHandler.Browse)
	buyer.GET("/products/:id", d.BuyerHandler.Product)
	buyer.POST("/products/:id/reviews", d.BuyerHandler.CreateReview)
	buyer.POST("/reviews/:id/delete", d.BuyerHandler.DeleteReview)
	buyer.GET("/orders", d.BuyerHandler.Orders)
	buyer.GET("/orders/:id", d.BuyerHandler.Order)

	buyer.GET("/cart", d.CartHandler.GetCart)
	buyer.POST("/cart/items", d.CartHandler.AddToCart)
	buyer.POST("/cart/items/:id/quantity", d.CartHandler.ChangeQuantity)
	buyer.POST("/cart/items/:id/remove", d.CartHandler.RemoveFromCart)
	buyer.POST("/cart/clear", d.CartHandler.ClearCart)
	buyer.POST("/cart/checkout", d.CartHandler.Checkout)
	buyer.GET("/*", d.Gate.RoleRedirect)

	// every other page resolves to the role home
	pages.GET("/", d.Gate.RoleRedirect)
	pages.GET("/*", d.Gate.RoleRedirect)

	return nil
}
