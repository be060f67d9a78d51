package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
	"github.com/imrishuroy/go-storefront-checkout/internal/pricing"
)

var tracer = otel.Tracer("github.com/imrishuroy/go-storefront-checkout/internal/orders")

// Service runs checkout and seller-side status changes.
type Service struct {
	db      *gorm.DB
	store   *Store
	pricing *pricing.Engine
	timeout time.Duration
	nowFunc func() time.Time
}

// NewService returns a Service. A non-positive timeout disables the checkout deadline.
func NewService(db *gorm.DB, engine *pricing.Engine, timeout time.Duration) *Service {
	return &Service{
		db:      db,
		store:   NewStore(db),
		pricing: engine,
		timeout: timeout,
		nowFunc: time.Now,
	}
}

// Store exposes the read side.
func (s *Service) Store() *Store { return s.store }

// Place turns a checkout request into one order per store inside a single
// transaction. Nothing is written unless every step succeeds.
func (s *Service) Place(ctx context.Context, userID string, req PlaceRequest) (*PlaceResult, error) {
	ctx, span := tracer.Start(ctx, "orders.Place")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("cart.lines", len(req.Items)))

	res, err := s.place(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("checkout.id", res.CheckoutID),
		attribute.Int("orders.count", len(res.OrderIDs)),
		attribute.Bool("checkout.replayed", res.Replayed),
	)
	return res, nil
}

func (s *Service) place(ctx context.Context, userID string, req PlaceRequest) (*PlaceResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	log := zerolog.Ctx(ctx)

	var res *PlaceResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.withTx(tx)

		prior, err := st.findCheckout(ctx, userID, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if prior != nil {
			// rows written before fingerprints were stored match anything
			if prior.RequestHash != "" && prior.RequestHash != req.RequestHash {
				return ErrKeyReused
			}
			res = &PlaceResult{CheckoutID: prior.ID, OrderIDs: prior.OrderIDs, Total: prior.Total, Replayed: true}
			return nil
		}

		var addr models.Address
		err = tx.WithContext(ctx).Where("id = ? AND user_id = ?", req.AddressID, userID).First(&addr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAddressNotFound
		}
		if err != nil {
			return fmt.Errorf("load address: %w", err)
		}

		discountPct := decimal.Zero
		var coupon *models.Coupon
		if req.CouponCode != "" {
			coupon, err = coupons.Evaluate(ctx, coupons.NewStore(tx), req.CouponCode, userID, s.nowFunc())
			if err != nil {
				return err
			}
			discountPct = coupon.Discount
		}

		items, err := cart.Materialize(ctx, cart.ProductCatalog{DB: tx}, req.Items)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrNoValidItems
		}
		quotes, err := s.pricing.Price(cart.Partition(items), discountPct, addr.City)
		if err != nil {
			return err
		}

		checkout, orders := buildOrders(userID, req, addr, coupon, quotes)
		if err := st.createCheckout(ctx, checkout, orders); err != nil {
			return err
		}
		if err := cart.Clear(ctx, tx, userID); err != nil {
			return err
		}

		res = &PlaceResult{CheckoutID: checkout.ID, OrderIDs: checkout.OrderIDs, Total: checkout.Total}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("checkout aborted: %w", errors.Join(ctxErr, err))
		}
		return nil, err
	}

	if res.Replayed {
		log.Info().Str("checkout_id", res.CheckoutID).Msg("checkout replayed")
	} else {
		log.Info().
			Str("checkout_id", res.CheckoutID).
			Strs("order_ids", res.OrderIDs).
			Str("total", res.Total.StringFixed(2)).
			Msg("checkout placed")
	}
	return res, nil
}

func buildOrders(userID string, req PlaceRequest, addr models.Address, coupon *models.Coupon, quotes []pricing.Quote) (*models.Checkout, []models.Order) {
	checkout := &models.Checkout{
		ID:             uuid.NewString(),
		UserID:         userID,
		IdempotencyKey: req.IdempotencyKey,
		RequestHash:    req.RequestHash,
		Total:          pricing.GrandTotal(quotes),
	}

	var snap models.CouponSnapshot
	if coupon != nil {
		snap = coupon.Snapshot()
	}
	addrID := addr.ID

	orders := make([]models.Order, 0, len(quotes))
	for _, q := range quotes {
		o := models.Order{
			ID:              uuid.NewString(),
			CheckoutID:      checkout.ID,
			UserID:          userID,
			StoreID:         q.StoreID,
			AddressID:       &addrID,
			ShippingAddress: addr.Snapshot(),
			Subtotal:        q.Subtotal,
			Discount:        q.Discount,
			ShippingFee:     q.ShippingFee,
			Total:           q.Total,
			PaymentMethod:   req.PaymentMethod,
			IsCouponUsed:    coupon != nil,
			Coupon:          snap,
			Status:          models.StatusOrderPlaced,
		}
		for _, it := range q.Items {
			o.Items = append(o.Items, models.OrderItem{
				OrderID:     o.ID,
				ProductID:   it.ProductID,
				ProductName: it.Name,
				Quantity:    it.Quantity,
				Price:       it.UnitPrice,
			})
		}
		orders = append(orders, o)
		checkout.OrderIDs = append(checkout.OrderIDs, o.ID)
	}
	return checkout, orders
}

// UpdateStatus moves an order owned by storeID to status, enforcing the transition
// table. A concurrent change between read and write yields ErrStatusMismatch.
func (s *Service) UpdateStatus(ctx context.Context, storeID, orderID, status string) (*models.Order, error) {
	if !models.KnownStatus(status) {
		return nil, ErrUnknownStatus
	}

	var updated *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.withTx(tx)
		o, err := st.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.StoreID != storeID {
			return ErrForeignOrder
		}
		if !CanTransition(o.Status, status) {
			return ErrIllegalTransition
		}
		if err := st.UpdateStatus(ctx, orderID, o.Status, status); err != nil {
			return err
		}
		o.Status = status
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("store_id", storeID).
		Str("status", status).
		Msg("order status updated")
	return updated, nil
}
