package addresses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

var (
	ErrAddressNotFound = apperr.New(apperr.NotFound, "address not found")
	ErrForeignAddress  = apperr.New(apperr.Forbidden, "address belongs to another user")
	ErrAddressInUse    = apperr.New(apperr.Conflict, "address is used by an active order")
	ErrUnknownCity     = apperr.New(apperr.Validation, "city must be a known shipping zone")
)

// CreateInput is a new address for the caller.
type CreateInput struct {
	Name        string
	FullAddress string
	Phone       string
	City        string
	Country     string
}

// Store manages buyer addresses and guards their deletion.
type Store struct {
	db    *gorm.DB
	zones map[string]bool
}

// NewStore returns a Store accepting addresses in the given shipping zones.
func NewStore(db *gorm.DB, zones []string) *Store {
	z := make(map[string]bool, len(zones))
	for _, name := range zones {
		z[name] = true
	}
	return &Store{db: db, zones: z}
}

// Create saves a new address for userID.
func (s *Store) Create(ctx context.Context, userID string, in CreateInput) (*models.Address, error) {
	if !s.zones[in.City] {
		return nil, ErrUnknownCity
	}
	a := &models.Address{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		FullAddress: in.FullAddress,
		Phone:       in.Phone,
		City:        in.City,
		Country:     in.Country,
		CreatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	return a, nil
}

// List returns the user's addresses.
func (s *Store) List(ctx context.Context, userID string) ([]models.Address, error) {
	var out []models.Address
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return out, nil
}

// Delete removes the caller's address. It refuses while any referencing order is
// still active; otherwise it detaches the address from finished orders, whose
// shipping snapshot stays as it was, and then deletes the row. Both steps share
// one transaction.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	var detached int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Address
		err := tx.Where("id = ?", id).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAddressNotFound
		}
		if err != nil {
			return fmt.Errorf("load address: %w", err)
		}
		if a.UserID != userID {
			return ErrForeignAddress
		}

		var active int64
		err = tx.Model(&models.Order{}).
			Where("address_id = ? AND status IN ?", id, models.ActiveStatuses).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("count active orders: %w", err)
		}
		if active > 0 {
			return ErrAddressInUse
		}

		res := tx.Model(&models.Order{}).Where("address_id = ?", id).Update("address_id", gorm.Expr("NULL"))
		if res.Error != nil {
			return fmt.Errorf("detach address: %w", res.Error)
		}
		detached = res.RowsAffected

		if err := tx.Delete(&a).Error; err != nil {
			return fmt.Errorf("delete address: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("address_id", id).Int64("detached_orders", detached).Msg("address deleted")
	return nil
}
