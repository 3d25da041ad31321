package market

import "time"

// BarBuilder aggregates ticks into fixed-duration bars. It is not safe for
// concurrent use; each trading instance owns one builder and feeds it from its
// single event loop.
type BarBuilder struct {
	timeframe time.Duration
	current   *Bar
}

// NewBarBuilder creates a builder for the given timeframe.
func NewBarBuilder(timeframe time.Duration) *BarBuilder {
	return &BarBuilder{timeframe: timeframe}
}

// Timeframe returns the bar duration.
func (b *BarBuilder) Timeframe() time.Duration {
	return b.timeframe
}

// Add folds a tick into the forming bar. When the tick belongs to a later
// interval the previous bar is returned as closed; otherwise it returns nil.
func (b *BarBuilder) Add(t Tick) *Bar {
	start := t.Time.Truncate(b.timeframe)
	price := t.Bid

	if b.current == nil {
		b.current = &Bar{Symbol: t.Symbol, Start: start, Open: price, High: price, Low: price, Close: price}
		return nil
	}

	if start.After(b.current.Start) {
		closed := *b.current
		b.current = &Bar{Symbol: t.Symbol, Start: start, Open: price, High: price, Low: price, Close: price}
		return &closed
	}

	if price > b.current.High {
		b.current.High = price
	}
	if price < b.current.Low {
		b.current.Low = price
	}
	b.current.Close = price
	return nil
}

// Forming returns a copy of the still-forming bar, if any.
func (b *BarBuilder) Forming() (Bar, bool) {
	if b.current == nil {
		return Bar{}, false
	}
	return *b.current, true
}
