// Package indicators maintains rolling closed-bar windows and computes the
// moving averages, oscillator, volatility bands, and average true range that
// the signal evaluators and the position lifecycle consume. An instance owns
// one engine; access is confined to the instance's event loop.
package indicators

import (
	"decision-core/internal/market"
)

// Config holds the periods an instance's indicator set is built from. Zero
// periods disable the corresponding series.
type Config struct {
	FastMA     int
	SlowMA     int
	TrendMA    int
	OscPeriod  int
	BandPeriod int
	BandStdDev float64
	ATRPeriod  int
}

// Engine accumulates closed bars and derives snapshots from them.
type Engine struct {
	cfg    Config
	window int
	bars   []market.Bar
}

// NewEngine builds an engine sized to the largest configured period.
func NewEngine(cfg Config) *Engine {
	window := 3
	for _, p := range []int{cfg.FastMA, cfg.SlowMA, cfg.TrendMA, cfg.OscPeriod + 1, cfg.BandPeriod, cfg.ATRPeriod + 1} {
		if p+3 > window {
			window = p + 3
		}
	}
	return &Engine{cfg: cfg, window: window}
}

// OnBarClose appends a closed bar and trims the window.
func (e *Engine) OnBarClose(b market.Bar) {
	e.bars = append(e.bars, b)
	if len(e.bars) > e.window {
		e.bars = e.bars[len(e.bars)-e.window:]
	}
}

// Warmup seeds the engine with historical closed bars.
func (e *Engine) Warmup(bars []market.Bar) {
	for _, b := range bars {
		e.OnBarClose(b)
	}
}

// BarCount returns the number of closed bars currently held.
func (e *Engine) BarCount() int {
	return len(e.bars)
}

func (e *Engine) series() (highs, lows, closes []float64) {
	highs = make([]float64, len(e.bars))
	lows = make([]float64, len(e.bars))
	closes = make([]float64, len(e.bars))
	for i, b := range e.bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	return
}

// Snapshot computes all configured series at offsets 1 and 2, plus the current
// spread supplied by the caller. Returns ErrValueUnavailable while the window
// is still warming up.
func (e *Engine) Snapshot(spread float64) (*Snapshot, error) {
	need := e.cfg.SlowMA
	for _, p := range []int{e.cfg.TrendMA, e.cfg.OscPeriod + 1, e.cfg.BandPeriod, e.cfg.ATRPeriod + 1} {
		if p > need {
			need = p
		}
	}
	// +1 so every series also exists at offset 2.
	if len(e.bars) < need+1 {
		return nil, ErrValueUnavailable
	}

	highs, lows, closes := e.series()
	snap := NewSnapshot()

	at := func(offset int) (h, l, c []float64) {
		end := len(closes) - offset + 1
		return highs[:end], lows[:end], closes[:end]
	}

	_, _, c1 := at(1)
	_, _, c2 := at(2)
	snap.Set(SeriesClose, c1[len(c1)-1], c2[len(c2)-1])
	h1, l1, _ := at(1)
	h2, l2, _ := at(2)
	snap.Set(SeriesHigh, h1[len(h1)-1], h2[len(h2)-1])
	snap.Set(SeriesLow, l1[len(l1)-1], l2[len(l2)-1])

	if e.cfg.FastMA > 0 {
		snap.Set(SeriesFastMA, SMA(c1, e.cfg.FastMA), SMA(c2, e.cfg.FastMA))
	}
	if e.cfg.SlowMA > 0 {
		snap.Set(SeriesSlowMA, SMA(c1, e.cfg.SlowMA), SMA(c2, e.cfg.SlowMA))
	}
	if e.cfg.TrendMA > 0 {
		snap.Set(SeriesTrendMA, SMA(c1, e.cfg.TrendMA), SMA(c2, e.cfg.TrendMA))
	}
	if e.cfg.OscPeriod > 0 {
		snap.Set(SeriesOsc, RSI(c1, e.cfg.OscPeriod), RSI(c2, e.cfg.OscPeriod))
	}
	if e.cfg.BandPeriod > 0 {
		m1, u1, lo1 := Bollinger(c1, e.cfg.BandPeriod, e.cfg.BandStdDev)
		m2, u2, lo2 := Bollinger(c2, e.cfg.BandPeriod, e.cfg.BandStdDev)
		snap.Set(SeriesBandMid, m1, m2)
		snap.Set(SeriesBandUpper, u1, u2)
		snap.Set(SeriesBandLower, lo1, lo2)
	}
	if e.cfg.ATRPeriod > 0 {
		ha, la, ca := at(1)
		hb, lb, cb := at(2)
		snap.Set(SeriesATR, ATR(ha, la, ca, e.cfg.ATRPeriod), ATR(hb, lb, cb, e.cfg.ATRPeriod))
	}
	snap.Set(SeriesSpread, spread, spread)

	return snap, nil
}

// Current holds forming-bar indicator values used only by the position
// lifecycle (never for entry signals).
type Current struct {
	BandMid    float64
	Volatility float64 // ATR including the forming bar
}

// CurrentValues recomputes band middle and ATR with the forming bar included,
// so exits react without waiting for the bar to close.
func (e *Engine) CurrentValues(forming market.Bar) Current {
	highs, lows, closes := e.series()
	highs = append(highs, forming.High)
	lows = append(lows, forming.Low)
	closes = append(closes, forming.Close)

	cur := Current{}
	if e.cfg.BandPeriod > 0 {
		cur.BandMid, _, _ = Bollinger(closes, e.cfg.BandPeriod, e.cfg.BandStdDev)
	}
	if e.cfg.ATRPeriod > 0 {
		cur.Volatility = ATR(highs, lows, closes, e.cfg.ATRPeriod)
	}
	return cur
}
