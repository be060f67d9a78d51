package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-storefront-checkout/internal/addresses"
	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/auth"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
	"github.com/imrishuroy/go-storefront-checkout/internal/events"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/metrics"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/ratings"
	"github.com/imrishuroy/go-storefront-checkout/internal/sellers"
)

// IdempotencyStore is the response replay guard in front of checkout.
// *idempotency.Store satisfies it.
type IdempotencyStore interface {
	CreateIfNotExists(ctx context.Context, key, userID, requestHash string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key, checkoutID, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
	Reclaim(ctx context.Context, key string) (bool, error)
}

// Notifier publishes checkout events. *events.Notifier satisfies it.
type Notifier interface {
	OrderPlaced(ctx context.Context, ev events.OrderPlaced) error
}

// HandlerConfig groups dependencies for the API routes. Idempotency and Notifier
// are optional.
type HandlerConfig struct {
	Auth        *auth.Authenticator
	Validator   *validatorv10.Validate
	Orders      *orders.Service
	Coupons     *coupons.Store
	Addresses   *addresses.Store
	Ratings     *ratings.Store
	Sellers     *sellers.Store
	Cart        *cart.Mirror
	Idempotency IdempotencyStore
	Notifier    Notifier
	Metrics     metrics.Recorder
}

type api struct {
	HandlerConfig
}

// RegisterRoutes registers every API route on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	h := &api{HandlerConfig: cfg}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	required := cfg.Auth.Required()

	r.POST("/orders", required, h.createOrder)
	r.GET("/orders", required, h.listOrders)

	r.POST("/coupon/verify", cfg.Auth.Optional(), h.verifyCoupon)

	r.POST("/address", required, h.createAddress)
	r.GET("/address", required, h.listAddresses)
	r.DELETE("/address/:id", required, h.deleteAddress)

	r.POST("/store/orders", required, h.updateStoreOrder)
	r.GET("/store/orders", required, h.listStoreOrders)

	r.POST("/rating", required, h.createRating)
	r.GET("/rating", required, h.listRatings)

	r.GET("/cart", required, h.getCart)
	r.POST("/cart", required, h.saveCart)

	admin := r.Group("/admin", required, auth.Admin())
	admin.POST("/coupon", h.createCoupon)
	admin.GET("/coupon", h.listCoupons)
	admin.DELETE("/coupon/:code", h.deleteCoupon)
}

var kindStatus = map[apperr.Kind]int{
	apperr.Unauthorized:     http.StatusUnauthorized,
	apperr.Forbidden:        http.StatusForbidden,
	apperr.NotFound:         http.StatusNotFound,
	apperr.Validation:       http.StatusBadRequest,
	apperr.CouponIneligible: http.StatusBadRequest,
	apperr.Conflict:         http.StatusConflict,
	apperr.Unprocessable:    http.StatusUnprocessableEntity,
}

// statusOf maps err to an HTTP status. overrides take precedence per kind.
func statusOf(err error, overrides map[apperr.Kind]int) int {
	kind := apperr.KindOf(err)
	if s, ok := overrides[kind]; ok {
		return s
	}
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError responds with {"error": msg}. Internal errors are logged and their
// cause is never sent.
func writeError(c *gin.Context, err error, overrides map[apperr.Kind]int) {
	status := statusOf(err, overrides)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// identity is only called behind auth.Required.
func identity(c *gin.Context) *auth.Identity {
	id, _ := auth.FromContext(c)
	return id
}
