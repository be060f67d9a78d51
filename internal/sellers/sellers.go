package sellers

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

var ErrNotSeller = apperr.New(apperr.Forbidden, "not an approved seller")

type Store struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ApprovedStore returns the store owned by userID if it is approved and active.
func (s *Store) ApprovedStore(ctx context.Context, userID string) (*models.Store, error) {
	var st models.Store
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotSeller
	}
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	if !st.Open() {
		return nil, ErrNotSeller
	}
	return &st, nil
}
