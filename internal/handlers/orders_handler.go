package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/events"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/metrics"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

// checkout maps NotFound to 400: a missing address or coupon is a bad request here.
var checkoutOverrides = map[apperr.Kind]int{
	apperr.NotFound: http.StatusBadRequest,
}

type placedResponse struct {
	Message    string   `json:"message"`
	CheckoutID string   `json:"checkoutId"`
	OrderIDs   []string `json:"orderIds"`
}

func (h *api) createOrder(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()
	user := identity(c)

	clientKey := c.GetHeader(idempotencyHeader)
	if clientKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing idempotency key"})
		return
	}

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		h.Metrics.Checkout(ctx, metrics.OutcomeRejected, 0, time.Since(start))
		return
	}

	key := idempotency.Key(user.UserID, clientKey)
	log := zerolog.Ctx(ctx).With().Str("idempotency_key", clientKey).Logger()
	ctx = log.WithContext(ctx)

	hash, err := requestHash(req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if h.Idempotency != nil {
		created, err := h.Idempotency.CreateIfNotExists(ctx, key, user.UserID, hash)
		if err != nil {
			writeError(c, fmt.Errorf("idempotency create: %w", err), nil)
			return
		}
		if !created && !h.resumeAttempt(c, key, hash) {
			return
		}
	}

	res, err := h.Orders.Place(ctx, user.UserID, orders.PlaceRequest{
		IdempotencyKey: clientKey,
		RequestHash:    hash,
		AddressID:      req.AddressID,
		Items:          toLines(req.Items),
		CouponCode:     req.CouponCode,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		outcome := metrics.OutcomeRejected
		if apperr.KindOf(err) == apperr.Internal {
			outcome = metrics.OutcomeFailed
		}
		h.Metrics.Checkout(ctx, outcome, 0, time.Since(start))
		if h.Idempotency != nil {
			if mErr := h.Idempotency.MarkFailed(ctx, key, apperr.Message(err)); mErr != nil {
				log.Warn().Err(mErr).Msg("mark idempotency failed")
			}
		}
		writeError(c, err, checkoutOverrides)
		return
	}

	body, err := json.Marshal(placedResponse{
		Message:    "Orders placed successfully",
		CheckoutID: res.CheckoutID,
		OrderIDs:   res.OrderIDs,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if h.Idempotency != nil {
		if err := h.Idempotency.MarkDone(ctx, key, res.CheckoutID, string(body), http.StatusOK); err != nil {
			// orders are committed; a retry replays from the checkout row
			log.Warn().Err(err).Msg("mark idempotency done")
		}
	}

	if res.Replayed {
		h.Metrics.Checkout(ctx, metrics.OutcomeReplayed, len(res.OrderIDs), time.Since(start))
		c.Header(replayedHeader, "true")
	} else {
		h.Metrics.Checkout(ctx, metrics.OutcomePlaced, len(res.OrderIDs), time.Since(start))
		h.notifyPlaced(c, user.UserID, res)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// resumeAttempt handles a key that already has a record. It reports whether the
// checkout should proceed; otherwise a response has been written.
func (h *api) resumeAttempt(c *gin.Context, key, hash string) bool {
	ctx := c.Request.Context()
	rec, err := h.Idempotency.Get(ctx, key)
	if err != nil {
		writeError(c, fmt.Errorf("idempotency get: %w", err), nil)
		return false
	}
	if rec == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "checkout already in progress"})
		return false
	}
	if rec.RequestHash != hash {
		writeError(c, orders.ErrKeyReused, nil)
		return false
	}

	switch rec.Status {
	case idempotency.StatusDone:
		h.Metrics.Checkout(ctx, metrics.OutcomeReplayed, 0, 0)
		c.Header(replayedHeader, "true")
		status := rec.ResponseStatus
		if status == 0 {
			status = http.StatusOK
		}
		c.Data(status, "application/json; charset=utf-8", []byte(rec.ResponseBody))
		return false
	case idempotency.StatusInProgress:
		c.JSON(http.StatusConflict, gin.H{"error": "checkout already in progress"})
		return false
	case idempotency.StatusFailed:
		ok, err := h.Idempotency.Reclaim(ctx, key)
		if err != nil {
			writeError(c, fmt.Errorf("idempotency reclaim: %w", err), nil)
			return false
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "checkout already in progress"})
			return false
		}
		return true
	default:
		writeError(c, fmt.Errorf("unknown idempotency status %q", rec.Status), nil)
		return false
	}
}

func (h *api) notifyPlaced(c *gin.Context, userID string, res *orders.PlaceResult) {
	if h.Notifier == nil {
		return
	}
	ctx := c.Request.Context()
	err := h.Notifier.OrderPlaced(ctx, events.OrderPlaced{
		CheckoutID: res.CheckoutID,
		UserID:     userID,
		OrderIDs:   res.OrderIDs,
		Total:      res.Total.StringFixed(2),
		PlacedAt:   time.Now().UTC(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("checkout_id", res.CheckoutID).Msg("publish order.placed failed")
	}
}

func (h *api) listOrders(c *gin.Context) {
	list, err := h.Orders.Store().ListForUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func toLines(items []validation.CheckoutItem) []cart.Line {
	lines := make([]cart.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, cart.Line{ProductID: it.ID, Quantity: it.Quantity})
	}
	return lines
}

// requestHash fingerprints the decoded request so formatting differences in the
// body do not count as a different request.
func requestHash(req validation.CreateOrderRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
