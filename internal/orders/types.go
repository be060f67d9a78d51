package orders

import (
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

var (
	ErrMissingIdempotencyKey = apperr.New(apperr.Validation, "idempotency key is required")
	ErrMissingAddress        = apperr.New(apperr.Validation, "address is required")
	ErrEmptyItems            = apperr.New(apperr.Validation, "cart is empty")
	ErrBadQuantity           = apperr.New(apperr.Validation, "quantity must be at least 1")
	ErrUnsupportedPayment    = apperr.New(apperr.Validation, "unsupported payment method")
	ErrAddressNotFound       = apperr.New(apperr.NotFound, "address not found")
	ErrNoValidItems          = apperr.New(apperr.Validation, "no valid items in cart")
	ErrCheckoutInFlight      = apperr.New(apperr.Conflict, "checkout already in progress")
	ErrKeyReused             = apperr.New(apperr.Unprocessable, "idempotency key reused with a different request")

	ErrOrderNotFound     = apperr.New(apperr.NotFound, "order not found")
	ErrForeignOrder      = apperr.New(apperr.Forbidden, "order belongs to another store")
	ErrUnknownStatus     = apperr.New(apperr.Validation, "unknown order status")
	ErrIllegalTransition = apperr.New(apperr.Validation, "illegal status transition")
	ErrStatusMismatch    = apperr.New(apperr.Conflict, "order status changed concurrently")
)

// PlaceRequest is one checkout attempt. Items is authoritative; the stored cart
// mirror is not consulted. RequestHash fingerprints the client request; a replay
// under the same key must carry the same hash.
type PlaceRequest struct {
	IdempotencyKey string
	RequestHash    string
	AddressID      string
	Items          []cart.Line
	CouponCode     string
	PaymentMethod  string
}

func (r PlaceRequest) validate() error {
	if r.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	if r.AddressID == "" {
		return ErrMissingAddress
	}
	if len(r.Items) == 0 {
		return ErrEmptyItems
	}
	for _, l := range r.Items {
		if l.Quantity < 1 {
			return ErrBadQuantity
		}
	}
	if r.PaymentMethod != models.PaymentMethodCOD {
		return ErrUnsupportedPayment
	}
	return nil
}

// PlaceResult identifies what a checkout created. Replayed is set when an earlier
// checkout with the same idempotency key was returned instead.
type PlaceResult struct {
	CheckoutID string
	OrderIDs   []string
	Total      decimal.Decimal
	Replayed   bool
}
