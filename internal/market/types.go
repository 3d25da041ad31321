// Package market defines quote and bar types and the feeds that produce them.
package market

import "time"

// Tick is a single top-of-book quote update.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Spread returns the current ask-bid distance in price units.
func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Mid returns the quote midpoint.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Bar is one aggregated price interval. Prices are bid-side, matching how the
// strategies read closed-bar values.
type Bar struct {
	Symbol string
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
}
