package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
	"github.com/imrishuroy/go-storefront-checkout/internal/db/dbtest"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
	"github.com/imrishuroy/go-storefront-checkout/internal/pricing"
)

type fixture struct {
	db  *gorm.DB
	svc *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)

	seed := []interface{}{
		&models.User{ID: "buyer", Email: "buyer@example.com", Cart: models.Cart{"p1": 2}},
		&models.User{ID: "other", Email: "other@example.com"},
		&models.Store{ID: "s1", UserID: "seller1", Username: "one", Status: models.StoreStatusApproved, IsActive: true},
		&models.Store{ID: "s2", UserID: "seller2", Username: "two", Status: models.StoreStatusApproved, IsActive: true},
		&models.Product{ID: "p1", StoreID: "s1", Name: "Kettle", Price: decimal.NewFromInt(100), InStock: true},
		&models.Product{ID: "p2", StoreID: "s2", Name: "Mug", Price: decimal.NewFromInt(50), InStock: true},
		&models.Product{ID: "p3", StoreID: "s1", Name: "Lid", Price: decimal.NewFromInt(20), InStock: false},
		&models.Address{ID: "a-in", UserID: "buyer", Name: "Buyer", FullAddress: "1 Road", Phone: "017", City: pricing.ZoneInsideDhaka, Country: "BD"},
		&models.Address{ID: "a-out", UserID: "buyer", Name: "Buyer", FullAddress: "2 Road", Phone: "017", City: pricing.ZoneOutsideDhaka, Country: "BD"},
		&models.Address{ID: "a-other", UserID: "other", Name: "Other", City: pricing.ZoneInsideDhaka},
		&models.Coupon{Code: "SAVE10", Discount: decimal.NewFromInt(10)},
		&models.Coupon{Code: "WELCOME", Discount: decimal.NewFromInt(20), ForNewUser: true},
	}
	for _, row := range seed {
		require.NoError(t, gdb.Create(row).Error)
	}

	return &fixture{db: gdb, svc: NewService(gdb, pricing.NewEngine(nil), 5*time.Second)}
}

func request(key, addressID string, lines ...cart.Line) PlaceRequest {
	return PlaceRequest{IdempotencyKey: key, AddressID: addressID, Items: lines, PaymentMethod: models.PaymentMethodCOD}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) order(t *testing.T, id string) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, f.db.Preload("Items").Where("id = ?", id).First(&o).Error)
	return o
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func TestPlace_SingleStore(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Place(context.Background(), "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)
	require.Len(t, res.OrderIDs, 1)
	assert.False(t, res.Replayed)
	assert.True(t, dec("280").Equal(res.Total), res.Total.String())

	o := f.order(t, res.OrderIDs[0])
	assert.Equal(t, "s1", o.StoreID)
	assert.Equal(t, models.StatusOrderPlaced, o.Status)
	assert.Equal(t, res.CheckoutID, o.CheckoutID)
	assert.True(t, dec("200").Equal(o.Subtotal))
	assert.True(t, dec("80").Equal(o.ShippingFee))
	assert.True(t, dec("280").Equal(o.Total))
	assert.False(t, o.IsCouponUsed)
	assert.Equal(t, "1 Road", o.ShippingAddress.FullAddress)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, "Kettle", o.Items[0].ProductName)

	var u models.User
	require.NoError(t, f.db.Where("id = ?", "buyer").First(&u).Error)
	assert.Empty(t, u.Cart)
}

func TestPlace_WithCoupon(t *testing.T) {
	f := newFixture(t)

	req := request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 2})
	req.CouponCode = "save10"
	res, err := f.svc.Place(context.Background(), "buyer", req)
	require.NoError(t, err)
	assert.True(t, dec("260").Equal(res.Total), res.Total.String())

	o := f.order(t, res.OrderIDs[0])
	assert.True(t, o.IsCouponUsed)
	assert.Equal(t, "SAVE10", o.Coupon.Code)
	assert.True(t, dec("20").Equal(o.Discount))
}

func TestPlace_MultiStoreChargesShippingOnce(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Place(context.Background(), "buyer", request("k1", "a-out",
		cart.Line{ProductID: "p2", Quantity: 1},
		cart.Line{ProductID: "p1", Quantity: 1},
	))
	require.NoError(t, err)
	require.Len(t, res.OrderIDs, 2)

	first, second := f.order(t, res.OrderIDs[0]), f.order(t, res.OrderIDs[1])
	assert.Equal(t, "s2", first.StoreID)
	assert.Equal(t, "s1", second.StoreID)

	shipping := first.ShippingFee.Add(second.ShippingFee)
	assert.True(t, dec("150").Equal(shipping), shipping.String())
	assert.True(t, dec("200").Equal(first.Total))
	assert.True(t, dec("100").Equal(second.Total))
	assert.True(t, dec("300").Equal(res.Total))
}

func TestPlace_DropsDeletedProducts(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Place(context.Background(), "buyer", request("k1", "a-in",
		cart.Line{ProductID: "p1", Quantity: 1},
		cart.Line{ProductID: "deleted", Quantity: 3},
	))
	require.NoError(t, err)
	require.Len(t, res.OrderIDs, 1)
	assert.Len(t, f.order(t, res.OrderIDs[0]).Items, 1)
}

func TestPlace_ReplaysSameKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request("same", "a-in", cart.Line{ProductID: "p1", Quantity: 1})

	first, err := f.svc.Place(ctx, "buyer", req)
	require.NoError(t, err)
	second, err := f.svc.Place(ctx, "buyer", req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.CheckoutID, second.CheckoutID)
	assert.Equal(t, first.OrderIDs, second.OrderIDs)
	assert.Equal(t, int64(1), f.count(t, &models.Order{}))

	// the same key from another user is an independent checkout
	req.AddressID = "a-other"
	third, err := f.svc.Place(ctx, "other", req)
	require.NoError(t, err)
	assert.False(t, third.Replayed)
	assert.Equal(t, int64(2), f.count(t, &models.Order{}))
}

func TestPlace_FailuresLeaveNoTrace(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		req     func() PlaceRequest
		wantErr error
		kind    apperr.Kind
	}{
		{
			name:    "missing address id",
			userID:  "buyer",
			req:     func() PlaceRequest { return request("k", "", cart.Line{ProductID: "p1", Quantity: 1}) },
			wantErr: ErrMissingAddress,
			kind:    apperr.Validation,
		},
		{
			name:    "empty items",
			userID:  "buyer",
			req:     func() PlaceRequest { return request("k", "a-in") },
			wantErr: ErrEmptyItems,
			kind:    apperr.Validation,
		},
		{
			name:    "zero quantity",
			userID:  "buyer",
			req:     func() PlaceRequest { return request("k", "a-in", cart.Line{ProductID: "p1"}) },
			wantErr: ErrBadQuantity,
			kind:    apperr.Validation,
		},
		{
			name:   "card payment",
			userID: "buyer",
			req: func() PlaceRequest {
				r := request("k", "a-in", cart.Line{ProductID: "p1", Quantity: 1})
				r.PaymentMethod = "CARD"
				return r
			},
			wantErr: ErrUnsupportedPayment,
			kind:    apperr.Validation,
		},
		{
			name:    "unknown address",
			userID:  "buyer",
			req:     func() PlaceRequest { return request("k", "nope", cart.Line{ProductID: "p1", Quantity: 1}) },
			wantErr: ErrAddressNotFound,
			kind:    apperr.NotFound,
		},
		{
			name:    "someone else's address",
			userID:  "buyer",
			req:     func() PlaceRequest { return request("k", "a-other", cart.Line{ProductID: "p1", Quantity: 1}) },
			wantErr: ErrAddressNotFound,
			kind:    apperr.NotFound,
		},
		{
			name:    "every product deleted",
			userID:  "buyer",
			req:     func() PlaceRequest { return request("k", "a-in", cart.Line{ProductID: "gone", Quantity: 1}) },
			wantErr: ErrNoValidItems,
			kind:    apperr.Validation,
		},
		{
			name:    "out of stock",
			userID:  "buyer",
			req:     func() PlaceRequest { return request("k", "a-in", cart.Line{ProductID: "p3", Quantity: 1}) },
			wantErr: cart.ErrOutOfStock,
			kind:    apperr.Validation,
		},
		{
			name:   "unknown coupon",
			userID: "buyer",
			req: func() PlaceRequest {
				r := request("k", "a-in", cart.Line{ProductID: "p1", Quantity: 1})
				r.CouponCode = "NOPE"
				return r
			},
			wantErr: coupons.ErrCouponNotFound,
			kind:    apperr.NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Place(context.Background(), tt.userID, tt.req())
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.kind, apperr.KindOf(err))

			assert.Zero(t, f.count(t, &models.Order{}))
			assert.Zero(t, f.count(t, &models.Checkout{}))

			var u models.User
			require.NoError(t, f.db.Where("id = ?", "buyer").First(&u).Error)
			assert.Equal(t, models.Cart{"p1": 2}, u.Cart)
		})
	}
}

func (f *fixture) assertNothingWritten(t *testing.T) {
	t.Helper()
	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.OrderItem{}))
	assert.Zero(t, f.count(t, &models.Checkout{}))

	var u models.User
	require.NoError(t, f.db.Where("id = ?", "buyer").First(&u).Error)
	assert.Equal(t, models.Cart{"p1": 2}, u.Cart)
}

// beforeCreate runs fn ahead of every gorm insert on f.db.
func (f *fixture) beforeCreate(t *testing.T, name string, fn func(*gorm.DB)) {
	t.Helper()
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register(name, fn))
}

func TestPlace_RollsBackWhenLaterStoreFails(t *testing.T) {
	f := newFixture(t)
	errDiskFull := errors.New("disk full")
	f.beforeCreate(t, "test:fail_s1_order", func(db *gorm.DB) {
		if o, ok := db.Statement.Dest.(*models.Order); ok && o.StoreID == "s1" {
			_ = db.AddError(errDiskFull)
		}
	})

	// s2 is partitioned first, so its order is written before s1 fails
	_, err := f.svc.Place(context.Background(), "buyer", request("k1", "a-out",
		cart.Line{ProductID: "p2", Quantity: 1},
		cart.Line{ProductID: "p1", Quantity: 1},
	))
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	f.assertNothingWritten(t)

	// the same key is free for a retry once the fault clears
	require.NoError(t, f.db.Callback().Create().Remove("test:fail_s1_order"))
	res, err := f.svc.Place(context.Background(), "buyer", request("k1", "a-out", cart.Line{ProductID: "p2", Quantity: 1}))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestPlace_DeadlineAbortsInFlightWrite(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.db, pricing.NewEngine(nil), 50*time.Millisecond)
	f.beforeCreate(t, "test:stall_checkout", func(db *gorm.DB) {
		if _, ok := db.Statement.Dest.(*models.Checkout); ok {
			<-db.Statement.Context.Done()
			_ = db.AddError(db.Statement.Context.Err())
		}
	})

	_, err := f.svc.Place(context.Background(), "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 1}))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	f.assertNothingWritten(t)
}

func TestPlace_CancelledContextWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Place(ctx, "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 1}))
	require.ErrorIs(t, err, context.Canceled)
	f.assertNothingWritten(t)
}

func TestPlace_ReusedKeyWithDifferentRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 2})
	req.RequestHash = "hash-a"
	first, err := f.svc.Place(ctx, "buyer", req)
	require.NoError(t, err)

	again, err := f.svc.Place(ctx, "buyer", req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.CheckoutID, again.CheckoutID)

	changed := request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 5})
	changed.RequestHash = "hash-b"
	_, err = f.svc.Place(ctx, "buyer", changed)
	require.ErrorIs(t, err, ErrKeyReused)
	assert.Equal(t, apperr.Unprocessable, apperr.KindOf(err))
	assert.Equal(t, int64(1), f.count(t, &models.Order{}))
	assert.Equal(t, 2, f.order(t, first.OrderIDs[0]).Items[0].Quantity)
}

func TestPlace_RevalidatesNewUserCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	couponStore := coupons.NewStore(f.db)

	// eligible at verify time
	_, err := coupons.Evaluate(ctx, couponStore, "WELCOME", "buyer", time.Now())
	require.NoError(t, err)

	_, err = f.svc.Place(ctx, "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	req := request("k2", "a-in", cart.Line{ProductID: "p2", Quantity: 1})
	req.CouponCode = "WELCOME"
	_, err = f.svc.Place(ctx, "buyer", req)
	assert.ErrorIs(t, err, coupons.ErrNotEligible)
	assert.Equal(t, int64(1), f.count(t, &models.Order{}))
}

func TestPlace_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Place(context.Background(), "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", "p1").Update("price", decimal.NewFromInt(999)).Error)

	o := f.order(t, res.OrderIDs[0])
	require.Len(t, o.Items, 1)
	assert.True(t, dec("100").Equal(o.Items[0].Price), o.Items[0].Price.String())
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Place(ctx, "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	id := res.OrderIDs[0]

	_, err = f.svc.UpdateStatus(ctx, "s2", id, models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrForeignOrder)

	_, err = f.svc.UpdateStatus(ctx, "s1", "missing", models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.UpdateStatus(ctx, "s1", id, "LOST")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = f.svc.UpdateStatus(ctx, "s1", id, models.StatusDelivered)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	for _, next := range []string{models.StatusConfirmed, models.StatusShipped, models.StatusDelivered} {
		o, err := f.svc.UpdateStatus(ctx, "s1", id, next)
		require.NoError(t, err, next)
		assert.Equal(t, next, o.Status)
	}

	_, err = f.svc.UpdateStatus(ctx, "s1", id, models.StatusCancelled)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, models.StatusDelivered, f.order(t, id).Status)
}

func TestStore_UpdateStatus_ConditionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Place(ctx, "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	st := f.svc.Store()
	assert.ErrorIs(t, st.UpdateStatus(ctx, res.OrderIDs[0], models.StatusShipped, models.StatusDelivered), ErrStatusMismatch)
	require.NoError(t, st.UpdateStatus(ctx, res.OrderIDs[0], models.StatusOrderPlaced, models.StatusConfirmed))
}

func TestStore_Lists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Place(ctx, "buyer", request("k1", "a-in", cart.Line{ProductID: "p1", Quantity: 1}, cart.Line{ProductID: "p2", Quantity: 1}))
	require.NoError(t, err)

	mine, err := f.svc.Store().ListForUser(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, o := range mine {
		assert.NotEmpty(t, o.Items)
		require.NotNil(t, o.Address)
		assert.Equal(t, "a-in", o.Address.ID)
	}

	forStore, err := f.svc.Store().ListForStore(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, forStore, 1)
	assert.Equal(t, "Mug", forStore[0].Items[0].ProductName)

	none, err := f.svc.Store().ListForUser(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.StatusOrderPlaced, models.StatusConfirmed))
	assert.True(t, CanTransition(models.StatusShipped, models.StatusCancelled))
	assert.False(t, CanTransition(models.StatusOrderPlaced, models.StatusShipped))
	assert.False(t, CanTransition(models.StatusCancelled, models.StatusOrderPlaced))
	assert.False(t, CanTransition(models.StatusDelivered, models.StatusCancelled))
}
