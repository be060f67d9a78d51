package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

var (
	ErrCouponNotFound = apperr.New(apperr.NotFound, "coupon not found")
	ErrCouponExpired  = apperr.New(apperr.CouponIneligible, "coupon expired")
	ErrLoginRequired  = apperr.New(apperr.Unauthorized, "login required for new-user coupons")
	ErrNotEligible    = apperr.New(apperr.CouponIneligible, "coupon valid for new users only")
	ErrCouponExists   = apperr.New(apperr.Conflict, "coupon code already exists")
	ErrInvalidCoupon  = apperr.New(apperr.Validation, "discount must be between 0 and 100")
)

// Source is the read side the evaluator needs.
type Source interface {
	FindCoupon(ctx context.Context, code string) (*models.Coupon, error)
	CountOrders(ctx context.Context, userID string) (int64, error)
}

// Normalize turns user input into a stored coupon code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate checks that code names a coupon the caller may use at now. userID is empty
// for anonymous callers.
func Evaluate(ctx context.Context, src Source, code, userID string, now time.Time) (*models.Coupon, error) {
	c, err := src.FindCoupon(ctx, Normalize(code))
	if err != nil {
		return nil, err
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return nil, ErrCouponExpired
	}
	if c.ForNewUser {
		if userID == "" {
			return nil, ErrLoginRequired
		}
		n, err := src.CountOrders(ctx, userID)
		if err != nil {
			return nil, err
		}
		if n != 0 {
			return nil, ErrNotEligible
		}
	}
	return c, nil
}

// Store is the gorm-backed coupon repository. It also satisfies Source, so checkout
// can evaluate against a transaction by wrapping tx in a Store.
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// FindCoupon looks up an already normalized code. Returns ErrCouponNotFound if absent.
func (s *Store) FindCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := s.DB.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return &c, nil
}

// CountOrders counts the orders userID has placed.
func (s *Store) CountOrders(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// CreateInput is the admin payload for a new coupon.
type CreateInput struct {
	Code        string
	Description string
	Discount    decimal.Decimal
	ForNewUser  bool
	ExpiresAt   *time.Time
}

// ValidDiscount reports whether d is a percentage in [0, 100].
func ValidDiscount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(maxDiscount)
}

var maxDiscount = decimal.NewFromInt(100)

// Create stores a new coupon under its normalized code.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Coupon, error) {
	if !ValidDiscount(in.Discount) {
		return nil, ErrInvalidCoupon
	}
	c := &models.Coupon{
		Code:        Normalize(in.Code),
		Description: in.Description,
		Discount:    in.Discount,
		ForNewUser:  in.ForNewUser,
		ExpiresAt:   in.ExpiresAt,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Coupon{}).Where("code = ?", c.Code).Count(&n).Error; err != nil {
			return fmt.Errorf("check coupon: %w", err)
		}
		if n > 0 {
			return ErrCouponExists
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("create coupon: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every coupon, newest first.
func (s *Store) List(ctx context.Context) ([]models.Coupon, error) {
	var out []models.Coupon
	if err := s.DB.WithContext(ctx).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return out, nil
}

// Delete removes the coupon with code. Returns ErrCouponNotFound if absent.
func (s *Store) Delete(ctx context.Context, code string) error {
	res := s.DB.WithContext(ctx).Where("code = ?", Normalize(code)).Delete(&models.Coupon{})
	if res.Error != nil {
		return fmt.Errorf("delete coupon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// DeleteExpired removes coupons whose expiry is before now and returns how many went.
// Orders keep their coupon snapshot so history is unaffected.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Coupon{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired coupons: %w", res.Error)
	}
	return res.RowsAffected, nil
}
