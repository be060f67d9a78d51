// Package events defines the messages exchanged over SQS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	TypeOrderPlaced = "order.placed"
	TypeUserCreated = "user.created"
	TypeUserUpdated = "user.updated"
	TypeUserDeleted = "user.deleted"
	TypeCouponSweep = "coupon.sweep"
)

// Envelope wraps every queued message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OrderPlaced is emitted after a checkout commits.
type OrderPlaced struct {
	CheckoutID string    `json:"checkoutId"`
	UserID     string    `json:"userId"`
	OrderIDs   []string  `json:"orderIds"`
	Total      string    `json:"total"`
	PlacedAt   time.Time `json:"placedAt"`
}

// UserProfile is the payload of user.created and user.updated.
type UserProfile struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// UserDeleted is the payload of user.deleted.
type UserDeleted struct {
	ID string `json:"id" validate:"required"`
}

// Sender puts a message body on a queue. *aws.Publisher satisfies it.
type Sender interface {
	Send(ctx context.Context, body string, attributes map[string]string) error
}

// Encode wraps data in an Envelope of type t.
func Encode(t string, data interface{}) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", t, err)
	}
	b, err := json.Marshal(Envelope{Type: t, Data: raw})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(b), nil
}

// Notifier publishes domain events.
type Notifier struct {
	sender Sender
}

// NewNotifier returns a Notifier that publishes through sender.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// OrderPlaced publishes an order.placed envelope.
func (n *Notifier) OrderPlaced(ctx context.Context, ev OrderPlaced) error {
	body, err := Encode(TypeOrderPlaced, ev)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, body, map[string]string{
		"event_type":  TypeOrderPlaced,
		"checkout_id": ev.CheckoutID,
	})
}
