// Package risk holds the per-instance counters that drive the circuit breakers
// and builds validated order intents. There is no explicit Cooldown/Halt mode:
// the gate chain re-derives those states from the counters on every bar, so
// there is no transition function to desynchronize.
package risk

import "time"

// State is the mutable risk ledger of one trading instance. It is only touched
// from the instance's event loop, so it carries no lock.
type State struct {
	TradesToday   int       `json:"trades_today"`
	ConsecLosses  int       `json:"consec_losses"`
	LastCloseTime time.Time `json:"last_close_time"`
	LastTradeTime time.Time `json:"last_trade_time"`
	DayKey        string    `json:"day_key"`

	// ResetLossesDaily controls whether the loss streak survives day rollover.
	// Both policies exist across deployments; this is configuration, not code.
	ResetLossesDaily bool `json:"-"`
}

// Rollover compares the current trading-region day key and resets the daily
// counters when it changed. Returns true on a day change.
func (s *State) Rollover(dayKey string) bool {
	if s.DayKey == dayKey {
		return false
	}
	s.DayKey = dayKey
	s.TradesToday = 0
	if s.ResetLossesDaily {
		s.ConsecLosses = 0
	}
	return true
}

// RecordTrade counts one successfully placed order.
func (s *State) RecordTrade(now time.Time) {
	s.TradesToday++
	s.LastTradeTime = now
}

// RecordClose updates the loss streak and cooldown anchor from one realized
// close. Profit is net of carrying costs and fees: a flat close resets the
// streak.
func (s *State) RecordClose(now time.Time, profit float64) {
	s.LastCloseTime = now
	if profit < 0 {
		s.ConsecLosses++
	} else {
		s.ConsecLosses = 0
	}
}

// InCooldown reports whether now is still inside the cooldown window after the
// last close. A zero LastCloseTime never blocks.
func (s *State) InCooldown(now time.Time, cooldown time.Duration) bool {
	if cooldown <= 0 || s.LastCloseTime.IsZero() {
		return false
	}
	return now.Sub(s.LastCloseTime) < cooldown
}
