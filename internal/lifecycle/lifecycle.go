// Package lifecycle manages an open position from fill to close: trailing-stop
// ratchet, time stop, mean-reversion exit, and the weekly flatten. It runs on
// every tick, independent of the new-bar gate, because exits must not wait for
// a bar to form.
package lifecycle

import (
	"time"

	"decision-core/internal/session"
	"decision-core/internal/signal"
)

// Position is the core's view of the single open position of an instance. The
// execution engine owns the real thing; this mirror exists so exit decisions
// need no venue round trip.
type Position struct {
	Side        signal.Direction
	OpenTime    time.Time
	OpenPrice   float64
	StopLoss    float64
	TakeProfit  float64
	InitialRisk float64 // |entry - initial stop| at open
}

// Config holds the static exit parameters of one instance.
type Config struct {
	MaxHold time.Duration // zero disables the time stop

	// Trailing starts once the position is TrailStartMult initial-risk units
	// in profit; the stop then follows at TrailStepMult times the current
	// volatility. TrailStartMult <= 0 disables trailing.
	TrailStartMult float64
	TrailStepMult  float64

	MeanReversionExit bool // close against the current middle band

	FlattenEnabled bool // force-close ahead of the weekly low-liquidity window
	FlattenDay     time.Weekday
	FlattenHour    int
	RegionOffset   int
}

// View is the per-tick market context for exit decisions. BandMid and
// Volatility are current (forming-bar) values, not closed-bar values.
type View struct {
	Now        time.Time
	Bid        float64
	Ask        float64
	BandMid    float64
	Volatility float64
}

// Action is what the caller should do with the position.
type Action int

const (
	ActionNone Action = iota
	ActionClose
	ActionModifyStop
)

// Exit reasons reported with ActionClose.
const (
	ReasonTimeStop      = "time_stop"
	ReasonMeanReversion = "mean_reversion"
	ReasonFlatten       = "weekly_flatten"
)

// Decision is the outcome of one tick of lifecycle management.
type Decision struct {
	Action  Action
	Reason  string
	NewStop float64
}

// Manager applies the configured exit rules.
type Manager struct {
	cfg Config
}

// NewManager builds a lifecycle manager.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// OnTick evaluates the exit rules in priority order; the first that fires
// wins. A ModifyStop decision is only advisory: the caller applies it through
// the execution engine and updates pos.StopLoss on success, which keeps the
// ratchet monotonic.
func (m *Manager) OnTick(pos *Position, v View) Decision {
	if m.cfg.FlattenEnabled &&
		session.PastWeeklyCutoff(v.Now, m.cfg.FlattenDay, m.cfg.FlattenHour, m.cfg.RegionOffset) {
		return Decision{Action: ActionClose, Reason: ReasonFlatten}
	}

	if m.cfg.MaxHold > 0 && v.Now.Sub(pos.OpenTime) >= m.cfg.MaxHold {
		return Decision{Action: ActionClose, Reason: ReasonTimeStop}
	}

	if m.cfg.MeanReversionExit && v.BandMid > 0 {
		if pos.Side == signal.Long && v.Bid >= v.BandMid {
			return Decision{Action: ActionClose, Reason: ReasonMeanReversion}
		}
		if pos.Side == signal.Short && v.Ask <= v.BandMid {
			return Decision{Action: ActionClose, Reason: ReasonMeanReversion}
		}
	}

	if newStop, ok := m.trail(pos, v); ok {
		return Decision{Action: ActionModifyStop, NewStop: newStop}
	}

	return Decision{Action: ActionNone}
}

// trail computes the next trailing-stop level. The candidate is applied only
// when strictly more favorable than the current stop: higher for Long, lower
// for Short. Trailing never loosens a stop.
func (m *Manager) trail(pos *Position, v View) (float64, bool) {
	if m.cfg.TrailStartMult <= 0 || pos.InitialRisk <= 0 || v.Volatility <= 0 {
		return 0, false
	}

	arm := m.cfg.TrailStartMult * pos.InitialRisk
	step := m.cfg.TrailStepMult * v.Volatility

	if pos.Side == signal.Long {
		if v.Bid-pos.OpenPrice < arm {
			return 0, false
		}
		candidate := v.Bid - step
		if candidate > pos.StopLoss {
			return candidate, true
		}
		return 0, false
	}

	if pos.OpenPrice-v.Ask < arm {
		return 0, false
	}
	candidate := v.Ask + step
	if candidate < pos.StopLoss {
		return candidate, true
	}
	return 0, false
}
