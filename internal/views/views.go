// Package views renders the HTML pages. Every page is the layout shell
// around one content template.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/agromarket/internal/flash"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static is the file system served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

type NavItem struct {
	Label  string
	Path   string
	Active bool
	Badge  int
}

// Page is what every template receives.
type Page struct {
	Title    string
	Path     string
	Session  session.Session
	Nav      []NavItem
	Panel    string
	Flashes  []flash.Message
	FlashTTL int64
	CSRF     string
	// Refresh reloads the page after that many seconds; used while a
	// session is still loading.
	Refresh int
	Data    any
}

func (p Page) User() *models.User { return p.Session.User }

// Nav builds the navigation of the user's highest-precedence role.
func Nav(s session.Session, current string, cartCount int) []NavItem {
	var items []NavItem
	switch s.User.PrimaryRole() {
	case models.RoleAdmin:
		items = []NavItem{
			{Label: "Dashboard", Path: "/admin"},
			{Label: "Users", Path: "/admin/users"},
			{Label: "Categories", Path: "/admin/categories"},
			{Label: "Products", Path: "/admin/products"},
			{Label: "Orders", Path: "/admin/orders"},
		}
	case models.RoleFarmer:
		items = []NavItem{
			{Label: "Dashboard", Path: "/farmer"},
			{Label: "My Products", Path: "/farmer/products"},
			{Label: "Orders", Path: "/farmer/orders"},
		}
	case models.RoleBuyer:
		items = []NavItem{
			{Label: "Dashboard", Path: "/buyer"},
			{Label: "Browse", Path: "/buyer/browse"},
			{Label: "Cart", Path: "/buyer/cart", Badge: cartCount},
			{Label: "My Orders", Path: "/buyer/orders"},
		}
	}
	for i := range items {
		items[i].Active = isActive(items[i].Path, current)
	}
	return items
}

// isActive matches a dashboard only exactly, other entries by prefix.
func isActive(item, current string) bool {
	if strings.Count(item, "/") == 1 {
		return current == item
	}
	return current == item || strings.HasPrefix(current, item+"/")
}

func PanelName(s session.Session) string {
	switch s.User.PrimaryRole() {
	case models.RoleAdmin:
		return "Admin Panel"
	case models.RoleFarmer:
		return "Farmer Panel"
	case models.RoleBuyer:
		return "Buyer Panel"
	}
	return "AgroMarket"
}

var funcs = template.FuncMap{
	"money": Money,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "N/A"
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"datePtr": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "N/A"
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"lower":  func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
	"add":    func(a, b int) int { return a + b },
	"sub":    func(a, b int) int { return a - b },
	"stars":  func(n int) string { return strings.Repeat("★", n) + strings.Repeat("☆", max(0, 5-n)) },
	"seq":    func(from, to int) []int { return seq(from, to) },
	"isSelf": func(u *models.User, id int64) bool { return u != nil && u.ID == id },
}

func seq(from, to int) []int {
	out := make([]int, 0, max(0, to-from+1))
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// Money formats an amount the way the storefront shows prices.
func Money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "Rs. " + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", f)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}
