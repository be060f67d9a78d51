package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

var (
	ErrOutOfStock   = apperr.New(apperr.Validation, "product out of stock")
	ErrUserNotFound = apperr.New(apperr.NotFound, "user not found")
)

// Line is a requested cart entry.
type Line struct {
	ProductID string
	Quantity  int
}

// Item is a cart line resolved against the catalog.
type Item struct {
	ProductID string
	StoreID   string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal is UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Group is the slice of items sold by one store.
type Group struct {
	StoreID string
	Items   []Item
}

// Catalog resolves product ids in one batch.
type Catalog interface {
	ProductsByID(ctx context.Context, ids []string) (map[string]models.Product, error)
}

// Materialize resolves lines against the catalog. Lines for missing products, or for
// products whose store is not approved and active, are dropped. Duplicate product ids
// are merged into the first occurrence. An out-of-stock product fails the whole call.
func Materialize(ctx context.Context, catalog Catalog, lines []Line) ([]Item, error) {
	merged := make([]Line, 0, len(lines))
	pos := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := pos[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		pos[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	if len(merged) == 0 {
		return nil, nil
	}

	ids := make([]string, len(merged))
	for i, l := range merged {
		ids[i] = l.ProductID
	}
	products, err := catalog.ProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(merged))
	for _, l := range merged {
		p, ok := products[l.ProductID]
		if !ok || p.Store == nil || !p.Store.Open() {
			continue
		}
		if !p.InStock {
			return nil, apperr.Wrap(ErrOutOfStock, fmt.Errorf("product %s", p.ID))
		}
		items = append(items, Item{
			ProductID: p.ID,
			StoreID:   p.StoreID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
		})
	}
	return items, nil
}

// Partition groups items by store. Groups appear in the order their store is first
// seen and keep item order within a store.
func Partition(items []Item) []Group {
	var groups []Group
	idx := map[string]int{}
	for _, it := range items {
		i, ok := idx[it.StoreID]
		if !ok {
			i = len(groups)
			idx[it.StoreID] = i
			groups = append(groups, Group{StoreID: it.StoreID})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// ProductCatalog reads products with their stores from the database.
type ProductCatalog struct {
	DB *gorm.DB
}

// ProductsByID loads the products in ids. Unknown ids are absent from the map.
func (c ProductCatalog) ProductsByID(ctx context.Context, ids []string) (map[string]models.Product, error) {
	var products []models.Product
	if err := c.DB.WithContext(ctx).Preload("Store").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make(map[string]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// Mirror persists the client cart on the user row. Checkout never reads it.
type Mirror struct {
	DB *gorm.DB
}

// NewMirror returns a Mirror over the users table.
func NewMirror(db *gorm.DB) *Mirror {
	return &Mirror{DB: db}
}

// Get returns the user's saved cart.
func (m *Mirror) Get(ctx context.Context, userID string) (models.Cart, error) {
	var u models.User
	err := m.DB.WithContext(ctx).Select("id", "cart").Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if u.Cart == nil {
		u.Cart = models.Cart{}
	}
	return u.Cart, nil
}

// Save replaces the stored cart. Entries with a non-positive quantity are removed.
func (m *Mirror) Save(ctx context.Context, userID string, c models.Cart) error {
	clean := models.Cart{}
	for id, q := range c {
		if q > 0 {
			clean[id] = q
		}
	}
	res := m.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("cart", clean)
	if res.Error != nil {
		return fmt.Errorf("save cart: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Clear empties the cart of userID using db, which may be a transaction.
func Clear(ctx context.Context, db *gorm.DB, userID string) error {
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("cart", models.Cart{}).Error; err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
