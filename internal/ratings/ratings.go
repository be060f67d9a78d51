package ratings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

var (
	ErrOrderNotFound   = apperr.New(apperr.NotFound, "order not found")
	ErrProductNotInOrd = apperr.New(apperr.Validation, "product is not part of this order")
	ErrNotDelivered    = apperr.New(apperr.Validation, "order has not been delivered")
	ErrBadRating       = apperr.New(apperr.Validation, "rating must be between 1 and 5")
	ErrAlreadyRated    = apperr.New(apperr.Conflict, "product already rated for this order")
)

// CreateInput is a rating for one product of one order.
type CreateInput struct {
	OrderID   string
	ProductID string
	Rating    int
	Review    string
}

type Store struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create records a rating. One rating is allowed per (product, order) pair.
func (s *Store) Create(ctx context.Context, userID string, in CreateInput) (*models.Rating, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, ErrBadRating
	}

	r := &models.Rating{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: in.ProductID,
		OrderID:   in.OrderID,
		Rating:    in.Rating,
		Review:    in.Review,
		CreatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Preload("Items").Where("id = ? AND user_id = ?", in.OrderID, userID).First(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if !hasProduct(o, in.ProductID) {
			return ErrProductNotInOrd
		}
		if o.Status != models.StatusDelivered {
			return ErrNotDelivered
		}

		var n int64
		if err := tx.Model(&models.Rating{}).Where("product_id = ? AND order_id = ?", in.ProductID, in.OrderID).Count(&n).Error; err != nil {
			return fmt.Errorf("check rating: %w", err)
		}
		if n > 0 {
			return ErrAlreadyRated
		}
		if err := tx.Create(r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRated
			}
			return fmt.Errorf("create rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the user's ratings, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]models.Rating, error) {
	var out []models.Rating
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return out, nil
}

func hasProduct(o models.Order, productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}
