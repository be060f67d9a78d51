package main

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
	"github.com/imrishuroy/go-storefront-checkout/internal/db/dbtest"
	checkoutevents "github.com/imrishuroy/go-storefront-checkout/internal/events"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
	"github.com/imrishuroy/go-storefront-checkout/internal/users"
)

func newProcessor(t *testing.T) (*Processor, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t)
	return NewProcessor(users.NewStore(gdb), coupons.NewStore(gdb)), gdb
}

func record(t *testing.T, typ string, data interface{}) events.SQSMessage {
	t.Helper()
	body, err := checkoutevents.Encode(typ, data)
	require.NoError(t, err)
	return events.SQSMessage{MessageId: typ, Body: body}
}

func batch(msgs ...events.SQSMessage) events.SQSEvent {
	return events.SQSEvent{Records: msgs}
}

func TestWorkerProcess_UserLifecycle(t *testing.T) {
	p, gdb := newProcessor(t)
	ctx := context.Background()

	created := checkoutevents.UserProfile{ID: "u1", Email: "a@example.com", Name: "A"}
	require.NoError(t, p.Handle(ctx, batch(record(t, checkoutevents.TypeUserCreated, created))))
	// redelivery is harmless
	require.NoError(t, p.Handle(ctx, batch(record(t, checkoutevents.TypeUserCreated, created))))

	updated := checkoutevents.UserProfile{ID: "u1", Email: "b@example.com", Name: "B"}
	require.NoError(t, p.Handle(ctx, batch(record(t, checkoutevents.TypeUserUpdated, updated))))

	var u models.User
	require.NoError(t, gdb.Where("id = ?", "u1").First(&u).Error)
	assert.Equal(t, "b@example.com", u.Email)
	assert.Equal(t, "B", u.Name)

	del := record(t, checkoutevents.TypeUserDeleted, checkoutevents.UserDeleted{ID: "u1"})
	require.NoError(t, p.Handle(ctx, batch(del)))
	require.NoError(t, p.Handle(ctx, batch(del)))

	var n int64
	require.NoError(t, gdb.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestWorkerProcess_CouponSweep(t *testing.T) {
	p, gdb := newProcessor(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.nowFunc = func() time.Time { return now }

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	for _, c := range []models.Coupon{
		{Code: "GONE", Discount: decimal.NewFromInt(5), ExpiresAt: &past},
		{Code: "LATER", Discount: decimal.NewFromInt(5), ExpiresAt: &future},
		{Code: "FOREVER", Discount: decimal.NewFromInt(5)},
	} {
		c := c
		require.NoError(t, gdb.Create(&c).Error)
	}

	require.NoError(t, p.Handle(context.Background(), batch(record(t, checkoutevents.TypeCouponSweep, struct{}{}))))

	var codes []string
	require.NoError(t, gdb.Model(&models.Coupon{}).Order("code").Pluck("code", &codes).Error)
	assert.Equal(t, []string{"FOREVER", "LATER"}, codes)
}

func TestWorkerProcess_OrderPlacedIsAcknowledged(t *testing.T) {
	p, _ := newProcessor(t)
	ev := checkoutevents.OrderPlaced{CheckoutID: "c1", UserID: "u1", OrderIDs: []string{"o1"}, Total: "280.00"}
	assert.NoError(t, p.Handle(context.Background(), batch(record(t, checkoutevents.TypeOrderPlaced, ev))))
}

func TestWorkerProcess_Rejects(t *testing.T) {
	p, _ := newProcessor(t)
	ctx := context.Background()

	err := p.Handle(ctx, batch(events.SQSMessage{Body: "not json"}))
	assert.Error(t, err)

	err = p.Handle(ctx, batch(record(t, "order.refunded", struct{}{})))
	assert.ErrorIs(t, err, errUnknownType)

	// missing id fails validation
	err = p.Handle(ctx, batch(record(t, checkoutevents.TypeUserCreated, checkoutevents.UserProfile{Email: "x@example.com"})))
	assert.Error(t, err)

	err = p.Handle(ctx, batch(record(t, checkoutevents.TypeUserCreated, checkoutevents.UserProfile{ID: "u1", Email: "nope"})))
	assert.Error(t, err)
}

func TestWorkerProcess_StopsAtFirstFailure(t *testing.T) {
	p, gdb := newProcessor(t)

	err := p.Handle(context.Background(), batch(
		record(t, "bogus", struct{}{}),
		record(t, checkoutevents.TypeUserCreated, checkoutevents.UserProfile{ID: "u2"}),
	))
	require.Error(t, err)

	var n int64
	require.NoError(t, gdb.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestWorkerProcess_ContinuesProducerTrace(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	parent := "00-" + traceID + "-00f067aa0ba902b7-01"
	msg := record(t, checkoutevents.TypeCouponSweep, struct{}{})
	msg.MessageAttributes = map[string]events.SQSMessageAttribute{
		"traceparent": {DataType: "String", StringValue: &parent},
	}

	p, _ := newProcessor(t)
	require.NoError(t, p.Handle(context.Background(), batch(msg)))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "sqs.process", ended[0].Name())
	assert.Equal(t, traceID, ended[0].SpanContext().TraceID().String())
	assert.True(t, ended[0].Parent().IsRemote())
}
