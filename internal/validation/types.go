package validation

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutItem is a single cart line in a checkout request.
type CheckoutItem struct {
	ID       string `json:"id" validate:"required"`             // product id
	Quantity int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	AddressID     string         `json:"addressId" validate:"required"`
	Items         []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	CouponCode    string         `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	PaymentMethod string         `json:"paymentMethod" validate:"required,oneof=COD"`
}

// VerifyCouponRequest is the payload for POST /coupon/verify
type VerifyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// CreateAddressRequest is the payload for POST /address
type CreateAddressRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	FullAddress string `json:"fullAddress" validate:"required"`
	Phone       string `json:"phone" validate:"required,max=32"`
	City        string `json:"city" validate:"required,shipping_zone"`
	Country     string `json:"country" validate:"required,max=64"`
}

// UpdateOrderStatusRequest is the payload for POST /store/orders
type UpdateOrderStatusRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=ORDER_PLACED CONFIRMED SHIPPED DELIVERED CANCELLED"`
}

// CreateRatingRequest is the payload for POST /rating
type CreateRatingRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Review    string `json:"review" validate:"max=2000"`
}

// SaveCartRequest is the payload for POST /cart
type SaveCartRequest struct {
	Cart map[string]int `json:"cart" validate:"required,dive,keys,required,endkeys,min=0"`
}

// CreateCouponRequest is the payload for POST /admin/coupon
type CreateCouponRequest struct {
	Code        string          `json:"code" validate:"required,alphanum,max=64"`
	Description string          `json:"description" validate:"max=500"`
	Discount    decimal.Decimal `json:"discount"` // percent, checked at struct level
	ForNewUser  bool            `json:"forNewUser"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
}
