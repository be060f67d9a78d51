package metrics

import (
	"context"
	"time"
)

// Checkout outcomes
const (
	OutcomePlaced   = "placed"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder receives checkout measurements.
type Recorder interface {
	Checkout(ctx context.Context, outcome string, orders int, elapsed time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Checkout(context.Context, string, int, time.Duration) {}
