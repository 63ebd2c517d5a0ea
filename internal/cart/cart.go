// Package cart is the buyer's cart. It lives entirely in browser-bound
// storage until checkout and is written back as a full snapshot after every
// change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/agromarket/internal/logging"
	"github.com/Skotchmaster/agromarket/internal/models"
	"github.com/Skotchmaster/agromarket/internal/storage"
)

// MaxQuantity bounds a single cart line.
const MaxQuantity = 9999

var (
	ErrValidation = errors.New("cart: validation failed")
	ErrOutOfStock = errors.New("cart: product is out of stock")
)

type Entry struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

func (e Entry) LineTotal() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Cart is an ordered list of entries, unique by product.
type Cart struct {
	store   storage.Store
	entries []Entry
}

// Load reads the snapshot from st. A missing or unreadable snapshot is an
// empty cart.
func Load(ctx context.Context, st storage.Store) (*Cart, error) {
	c := &Cart{store: st}

	raw, err := st.Get(ctx, storage.KeyCart)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c, nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logging.FromContext(ctx).Warn("cart_snapshot_corrupt", "reason", "cannot decode stored cart", "error", err)
		return c, nil
	}
	c.entries = sanitize(entries)
	return c, nil
}

// sanitize drops what the engine itself would never have written.
func sanitize(in []Entry) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		if e.ProductID <= 0 || e.Quantity < 1 || e.Quantity > MaxQuantity {
			continue
		}
		if slices.ContainsFunc(out, func(o Entry) bool { return o.ProductID == e.ProductID }) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (c *Cart) Entries() []Entry { return slices.Clone(c.entries) }

func (c *Cart) Len() int { return len(c.entries) }

func (c *Cart) Empty() bool { return len(c.entries) == 0 }

// Count is the number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, e := range c.entries {
		n += e.Quantity
	}
	return n
}

// Total is recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.entries {
		total = total.Add(e.LineTotal())
	}
	return total
}

func (c *Cart) index(productID int64) int {
	return slices.IndexFunc(c.entries, func(e Entry) bool { return e.ProductID == productID })
}

// Add puts one unit of p in the cart, appending a new entry when p is not
// there yet.
func (c *Cart) Add(ctx context.Context, p models.Product) error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: product id must be positive", ErrValidation)
	}
	if !p.InStock() {
		return ErrOutOfStock
	}

	next := c.Entries()
	if i := c.index(p.ID); i >= 0 {
		next[i].Quantity = min(MaxQuantity, next[i].Quantity+1)
	} else {
		next = append(next, Entry{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    1,
		})
	}
	return c.commit(ctx, next)
}

// ChangeQuantity moves the quantity of a product by delta, keeping it between
// 1 and MaxQuantity. An absent product is left alone.
func (c *Cart) ChangeQuantity(ctx context.Context, productID int64, delta int) error {
	i := c.index(productID)
	if i < 0 {
		return nil
	}
	next := c.Entries()
	delta = max(-MaxQuantity, min(MaxQuantity, delta))
	next[i].Quantity = max(1, min(MaxQuantity, next[i].Quantity+delta))
	return c.commit(ctx, next)
}

func (c *Cart) Remove(ctx context.Context, productID int64) error {
	i := c.index(productID)
	if i < 0 {
		return nil
	}
	next := slices.Delete(c.Entries(), i, i+1)
	return c.commit(ctx, next)
}

// Clear empties the cart and drops the stored snapshot.
func (c *Cart) Clear(ctx context.Context) error {
	if err := c.store.Remove(ctx, storage.KeyCart); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	c.entries = nil
	return nil
}

// Snapshot is the stored form of the cart.
func (c *Cart) Snapshot() ([]byte, error) {
	return marshal(c.entries)
}

func marshal(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

// commit overwrites the stored snapshot, then adopts next.
func (c *Cart) commit(ctx context.Context, next []Entry) error {
	raw, err := marshal(next)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := c.store.Set(ctx, storage.KeyCart, string(raw)); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	c.entries = next
	return nil
}
