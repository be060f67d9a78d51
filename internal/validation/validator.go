package validation

import (
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
)

// New returns a configured validator. zones is the set of accepted address cities
// for the shipping_zone tag.
func New(zones ...string) *validatorv10.Validate {
	v := validatorv10.New()

	allowed := make(map[string]bool, len(zones))
	for _, z := range zones {
		allowed[z] = true
	}
	_ = v.RegisterValidation("shipping_zone", func(fl validatorv10.FieldLevel) bool {
		return allowed[fl.Field().String()]
	})

	v.RegisterStructValidation(createCouponStructValidation, CreateCouponRequest{})

	return v
}

// createCouponStructValidation keeps the discount a percentage in [0, 100] and the
// expiry, if any, in the future.
func createCouponStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateCouponRequest)

	if !coupons.ValidDiscount(req.Discount) {
		sl.ReportError(req.Discount, "discount", "Discount", "discount_percent", req.Discount.String())
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		sl.ReportError(req.ExpiresAt, "expiresAt", "ExpiresAt", "future", "")
	}
}
