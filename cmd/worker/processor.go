package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	checkoutevents "github.com/imrishuroy/go-storefront-checkout/internal/events"
	"github.com/imrishuroy/go-storefront-checkout/internal/tracing"
)

var errUnknownType = errors.New("unknown event type")

// UserStore mirrors identity events into the users table. *users.Store satisfies it.
type UserStore interface {
	Upsert(ctx context.Context, p checkoutevents.UserProfile) error
	Delete(ctx context.Context, id string) error
}

// CouponSweeper removes expired coupons. *coupons.Store satisfies it.
type CouponSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Processor handles SQS batches. Every handler tolerates redelivery.
type Processor struct {
	users    UserStore
	coupons  CouponSweeper
	validate *validatorv10.Validate
	nowFunc  func() time.Time
}

// NewProcessor returns a Processor using the real clock.
func NewProcessor(users UserStore, coupons CouponSweeper) *Processor {
	return &Processor{
		users:    users,
		coupons:  coupons,
		validate: validatorv10.New(),
		nowFunc:  time.Now,
	}
}

// Handle processes each record in order. The first failure is returned so the
// runtime retries the batch; repeated failures land in the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	log := zerolog.Ctx(ctx)
	log.Info().Int("records", len(ev.Records)).Msg("received SQS batch")
	for _, rec := range ev.Records {
		if err := p.traced(ctx, rec); err != nil {
			log.Error().Err(err).Str("message_id", rec.MessageId).Msg("worker error")
			return err
		}
	}
	return nil
}

// traced continues the producer's trace, if the record carries one, around a
// single message.
func (p *Processor) traced(ctx context.Context, rec events.SQSMessage) error {
	carrier := make(map[string]string, len(rec.MessageAttributes))
	for k, v := range rec.MessageAttributes {
		if v.StringValue != nil {
			carrier[k] = *v.StringValue
		}
	}
	ctx, span := otel.Tracer("storefront-worker").Start(tracing.Extract(ctx, carrier), "sqs.process")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.message.id", rec.MessageId))

	err := p.processMessage(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var env checkoutevents.Envelope
	if err := json.Unmarshal([]byte(rec.Body), &env); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	log := zerolog.Ctx(ctx).With().Str("type", env.Type).Str("message_id", rec.MessageId).Logger()

	switch env.Type {
	case checkoutevents.TypeUserCreated, checkoutevents.TypeUserUpdated:
		var u checkoutevents.UserProfile
		if err := p.decode(env, &u); err != nil {
			return err
		}
		if err := p.users.Upsert(ctx, u); err != nil {
			return fmt.Errorf("upsert user %s: %w", u.ID, err)
		}
		log.Info().Str("user_id", u.ID).Msg("user synced")

	case checkoutevents.TypeUserDeleted:
		var u checkoutevents.UserDeleted
		if err := p.decode(env, &u); err != nil {
			return err
		}
		if err := p.users.Delete(ctx, u.ID); err != nil {
			return fmt.Errorf("delete user %s: %w", u.ID, err)
		}
		log.Info().Str("user_id", u.ID).Msg("user deleted")

	case checkoutevents.TypeCouponSweep:
		n, err := p.coupons.DeleteExpired(ctx, p.nowFunc())
		if err != nil {
			return err
		}
		log.Info().Int64("deleted", n).Msg("expired coupons swept")

	case checkoutevents.TypeOrderPlaced:
		var o checkoutevents.OrderPlaced
		if err := p.decode(env, &o); err != nil {
			return err
		}
		log.Info().Str("checkout_id", o.CheckoutID).Strs("order_ids", o.OrderIDs).Msg("order placed")

	default:
		return fmt.Errorf("%w: %q", errUnknownType, env.Type)
	}
	return nil
}

func (p *Processor) decode(env checkoutevents.Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	if err := p.validate.Struct(out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return nil
}
