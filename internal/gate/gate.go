// Package gate implements the ordered admission chain run once per newly
// closed bar. Each predicate either passes or names the reason it blocked;
// evaluation stops at the first failure so every bar ends in exactly one
// terminal outcome.
package gate

import (
	"math"
	"time"

	"decision-core/internal/indicators"
	"decision-core/internal/risk"
	"decision-core/internal/session"
)

// Reason identifies the terminal outcome of one bar evaluation.
type Reason string

const (
	Pass            Reason = "pass"
	BlockedSession  Reason = "session"
	BlockedSpread   Reason = "spread"
	BlockedDailyCap Reason = "daily_cap"
	BlockedLosses   Reason = "loss_streak"
	BlockedCooldown Reason = "cooldown"
	BlockedPosition Reason = "has_position"
	BlockedRegime   Reason = "regime"

	// Outcomes produced outside the chain, by the operator pause, signal
	// evaluation, and order submission; enumerated here so the daily
	// counters cover them too.
	Paused        Reason = "paused"
	NoSignal      Reason = "no_signal"
	StopsInvalid  Reason = "stops_invalid"
	OrderRejected Reason = "order_rejected"
)

// Regime filter modes.
const (
	RegimeRejectTrending = "reject_trending" // mean-reversion variants
	RegimeRejectQuiet    = "reject_quiet"    // trend variants
)

// RegimeConfig enables the optional regime filter. Trend strength is measured
// as |fast-slow| in units of ATR on the last closed bar.
type RegimeConfig struct {
	Mode      string
	Threshold float64
}

// Config holds the static gate parameters of one instance.
type Config struct {
	SessionStart    int
	SessionEnd      int
	RegionOffset    int
	MaxSpreadPoints float64 // in point-size units; zero or negative disables
	PointSize       float64
	MaxTradesPerDay int
	MaxConsecLosses int
	Cooldown        time.Duration
	Regime          *RegimeConfig
}

// Input is the per-bar evaluation context.
type Input struct {
	Now         time.Time
	Spread      float64 // current ask-bid in price units
	HasPosition bool
	Snapshot    *indicators.Snapshot // consulted by the regime filter only
}

// Chain evaluates the admission gates in their canonical order.
type Chain struct {
	cfg Config
}

// NewChain builds a chain from static configuration.
func NewChain(cfg Config) *Chain {
	return &Chain{cfg: cfg}
}

// Evaluate runs the gates against the instance's risk state. The returned
// error is only non-nil when the regime filter could not read its indicator
// values; callers abort the bar silently in that case.
func (c *Chain) Evaluate(in Input, state *risk.State) (Reason, error) {
	if !session.IsWithinSession(in.Now, c.cfg.SessionStart, c.cfg.SessionEnd, c.cfg.RegionOffset) {
		return BlockedSession, nil
	}
	if c.cfg.MaxSpreadPoints > 0 && c.cfg.PointSize > 0 {
		if in.Spread > c.cfg.MaxSpreadPoints*c.cfg.PointSize {
			return BlockedSpread, nil
		}
	}
	if c.cfg.MaxTradesPerDay > 0 && state.TradesToday >= c.cfg.MaxTradesPerDay {
		return BlockedDailyCap, nil
	}
	if c.cfg.MaxConsecLosses > 0 && state.ConsecLosses >= c.cfg.MaxConsecLosses {
		return BlockedLosses, nil
	}
	if state.InCooldown(in.Now, c.cfg.Cooldown) {
		return BlockedCooldown, nil
	}
	if in.HasPosition {
		return BlockedPosition, nil
	}
	if c.cfg.Regime != nil {
		ok, err := c.regimeAllows(in.Snapshot)
		if err != nil {
			return BlockedRegime, err
		}
		if !ok {
			return BlockedRegime, nil
		}
	}
	return Pass, nil
}

func (c *Chain) regimeAllows(snap *indicators.Snapshot) (bool, error) {
	fast, err := snap.At(indicators.SeriesFastMA, 1)
	if err != nil {
		return false, err
	}
	slow, err := snap.At(indicators.SeriesSlowMA, 1)
	if err != nil {
		return false, err
	}
	atr, err := snap.At(indicators.SeriesATR, 1)
	if err != nil {
		return false, err
	}
	if atr <= 0 {
		return false, nil
	}

	strength := math.Abs(fast-slow) / atr
	switch c.cfg.Regime.Mode {
	case RegimeRejectTrending:
		return strength <= c.cfg.Regime.Threshold, nil
	case RegimeRejectQuiet:
		return strength >= c.cfg.Regime.Threshold, nil
	default:
		return true, nil
	}
}
