package gate

import "time"

// Counters accumulate one trading day's evaluation statistics for an instance.
type Counters struct {
	Day           string
	BarsEvaluated int
	SignalsFound  int
	TradesSent    int
	Blocks        map[Reason]int
}

// NewCounters creates counters for the given day key.
func NewCounters(day string) *Counters {
	return &Counters{Day: day, Blocks: make(map[Reason]int)}
}

// Bar counts one evaluated bar.
func (c *Counters) Bar() { c.BarsEvaluated++ }

// Signal counts one non-flat signal.
func (c *Counters) Signal() { c.SignalsFound++ }

// Trade counts one successfully placed order.
func (c *Counters) Trade() { c.TradesSent++ }

// Block counts one terminal block outcome.
func (c *Counters) Block(r Reason) {
	if r == Pass {
		return
	}
	c.Blocks[r]++
}

// Roll snapshots the finished day and resets for the new one.
func (c *Counters) Roll(newDay string) Summary {
	sum := Summary{
		Day:           c.Day,
		BarsEvaluated: c.BarsEvaluated,
		SignalsFound:  c.SignalsFound,
		TradesSent:    c.TradesSent,
		Blocks:        c.Blocks,
	}
	c.Day = newDay
	c.BarsEvaluated = 0
	c.SignalsFound = 0
	c.TradesSent = 0
	c.Blocks = make(map[Reason]int)
	return sum
}

// Summary is the per-day report emitted on rollover.
type Summary struct {
	Day           string
	BarsEvaluated int
	SignalsFound  int
	TradesSent    int
	Blocks        map[Reason]int
}

// BarGate detects the opening of a new bar by watching the forming bar's start
// timestamp. The admission chain runs only on that edge.
type BarGate struct {
	last time.Time
}

// IsNewBar reports whether the forming bar's start differs from the last seen
// value, updating the marker.
func (g *BarGate) IsNewBar(formingStart time.Time) bool {
	if formingStart.Equal(g.last) {
		return false
	}
	g.last = formingStart
	return true
}
