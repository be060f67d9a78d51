package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

// Store encapsulates operations on the orders tables.
type Store struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, nowFunc: time.Now}
}

func (s *Store) withTx(tx *gorm.DB) *Store {
	return &Store{db: tx, nowFunc: s.nowFunc}
}

// Get fetches an order by id with its items. Returns ErrOrderNotFound if absent.
func (s *Store) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally updates the order status from expected to newStatus.
// Returns ErrStatusMismatch if the order is no longer in expected.
func (s *Store) UpdateStatus(ctx context.Context, orderID, expectedStatus, newStatus string) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, expectedStatus).
		Updates(map[string]interface{}{"status": newStatus, "updated_at": s.nowFunc()})
	if res.Error != nil {
		return fmt.Errorf("update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// ListForUser returns the buyer's orders, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.list(ctx, "user_id = ?", userID)
}

// ListForStore returns the orders a store has to fulfil, newest first.
func (s *Store) ListForStore(ctx context.Context, storeID string) ([]models.Order, error) {
	return s.list(ctx, "store_id = ?", storeID)
}

func (s *Store) list(ctx context.Context, cond string, arg string) ([]models.Order, error) {
	var out []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Address").
		Where(cond, arg).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (s *Store) findCheckout(ctx context.Context, userID, key string) (*models.Checkout, error) {
	var c models.Checkout
	err := s.db.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find checkout: %w", err)
	}
	return &c, nil
}

func (s *Store) createCheckout(ctx context.Context, c *models.Checkout, orders []models.Order) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrCheckoutInFlight
		}
		return fmt.Errorf("create checkout: %w", err)
	}
	for i := range orders {
		if err := s.db.WithContext(ctx).Create(&orders[i]).Error; err != nil {
			return fmt.Errorf("create order for store %s: %w", orders[i].StoreID, err)
		}
	}
	return nil
}
