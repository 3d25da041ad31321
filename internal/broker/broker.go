// Package broker defines the execution-engine contract the decision core
// talks to, and a simulated implementation for dry runs and tests.
package broker

import (
	"context"
	"fmt"
	"time"

	"decision-core/internal/signal"
)

// DealKind distinguishes opening and closing fills.
type DealKind string

const (
	DealOpen  DealKind = "OPEN"
	DealClose DealKind = "CLOSE"
)

// DealEvent is a fill notification from the execution engine. The same logical
// deal may be delivered more than once; consumers must absorb duplicates.
type DealEvent struct {
	DealID     string
	InstanceID string
	Kind       DealKind
	Side       signal.Direction
	Volume     float64
	Price      float64
	Profit     float64 // realized, net of costs; zero for opens
	Time       time.Time
}

// RejectError carries the venue's reason code for a refused request.
type RejectError struct {
	Code string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected by venue: %s", e.Code)
}

// Venue reject codes produced by the simulator; a live adapter maps its
// venue's codes onto the same shape.
const (
	RejectOffQuotes     = "off_quotes"
	RejectHasPosition   = "has_position"
	RejectNoPosition    = "no_position"
	RejectInvalidVolume = "invalid_volume"
)

// Executor is the order-execution contract. The tag is the instance id (magic
// number equivalent) that scopes every position to its owning instance.
type Executor interface {
	// SubmitMarketOrder opens a position at market with protective levels.
	SubmitMarketOrder(ctx context.Context, symbol, tag string, side signal.Direction, volume, stopLoss, takeProfit float64) error
	// ModifyStop replaces the protective levels of the tagged open position.
	ModifyStop(ctx context.Context, tag string, newStop, takeProfit float64) error
	// CloseOpenPosition closes the tagged position at market.
	CloseOpenPosition(ctx context.Context, tag string) error
}
