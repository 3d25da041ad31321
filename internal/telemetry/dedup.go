package telemetry

import (
	"context"

	"decision-core/internal/broker"
	"decision-core/internal/monitor"
	"decision-core/internal/signal"
)

// State is the persisted dedup marker set, one pair of markers per deal kind.
// Seen markers advance on first sight and gate the trading-state callback, so
// a duplicated close stays idempotent even when an open lands in between.
// Emission markers advance only after a successful POST, so a failed delivery
// is retried on the next sighting of the same deal.
type State struct {
	LastOpenDealID      string `json:"last_open_deal_id"`
	LastCloseDealID     string `json:"last_close_deal_id"`
	LastSeenOpenDealID  string `json:"last_seen_open_deal_id"`
	LastSeenCloseDealID string `json:"last_seen_close_deal_id"`
}

// Dedup wraps a Sink with per-deal idempotence and feeds realized closes back
// into the instance's risk accounting exactly once per deal.
type Dedup struct {
	eaID     string
	currency string
	enabled  bool
	sink     Sink
	state    State
}

// NewDedup creates the dedup layer for one instance. A nil sink or disabled
// tracking turns emission off while keeping the exactly-once state callback.
func NewDedup(eaID, currency string, enabled bool, sink Sink) *Dedup {
	return &Dedup{eaID: eaID, currency: currency, enabled: enabled && sink != nil, sink: sink}
}

// Restore re-seeds the marker set, typically from the persisted journal.
func (d *Dedup) Restore(s State) { d.state = s }

// Snapshot returns the current marker set for persistence.
func (d *Dedup) Snapshot() State { return d.state }

// OnDeal absorbs one (possibly duplicated) deal notification. It returns true
// when this is the first sighting of the deal, i.e. when the caller should
// apply risk-state and position bookkeeping.
func (d *Dedup) OnDeal(ctx context.Context, ev broker.DealEvent) bool {
	switch ev.Kind {
	case broker.DealOpen:
		first := ev.DealID != d.state.LastSeenOpenDealID
		if first {
			d.state.LastSeenOpenDealID = ev.DealID
		}
		if ev.DealID != d.state.LastOpenDealID && d.emit(ctx, ev) {
			d.state.LastOpenDealID = ev.DealID
		}
		return first
	case broker.DealClose:
		first := ev.DealID != d.state.LastSeenCloseDealID
		if first {
			d.state.LastSeenCloseDealID = ev.DealID
		}
		if ev.DealID != d.state.LastCloseDealID && d.emit(ctx, ev) {
			d.state.LastCloseDealID = ev.DealID
		}
		return first
	}
	return false
}

func (d *Dedup) emit(ctx context.Context, ev broker.DealEvent) bool {
	if !d.enabled {
		// Nothing to deliver; mark as sent so a later enable does not replay
		// stale deals.
		return true
	}

	side := "BUY"
	if ev.Side == signal.Short {
		side = "SELL"
	}
	err := d.sink.Post(ctx, Event{
		EAID:      d.eaID,
		EventType: string(ev.Kind),
		Side:      side,
		Volume:    ev.Volume,
		Price:     ev.Price,
		Profit:    ev.Profit,
		Currency:  d.currency,
	})
	if err != nil {
		LogDrop(d.eaID, err)
		monitor.IncTelemetryDrop()
		return false
	}
	return true
}
