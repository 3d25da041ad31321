package indicators

import (
	"errors"
	"fmt"
)

// Series names addressable in a Snapshot.
const (
	SeriesClose     = "close"
	SeriesHigh      = "high"
	SeriesLow       = "low"
	SeriesFastMA    = "ma_fast"
	SeriesSlowMA    = "ma_slow"
	SeriesTrendMA   = "ma_trend"
	SeriesOsc       = "osc"
	SeriesBandUpper = "band_upper"
	SeriesBandMid   = "band_mid"
	SeriesBandLower = "band_lower"
	SeriesATR       = "atr"
	SeriesSpread    = "spread"
)

// ErrValueUnavailable marks a series/offset the engine could not supply for the
// current bar. Callers abort the bar evaluation silently and retry next bar.
var ErrValueUnavailable = errors.New("indicator value unavailable")

// Snapshot is a read-only bundle of indicator values addressed by series name
// and closed-bar offset. Offset 1 is the most recently closed bar, offset 2 the
// one before it. Forming-bar (offset 0) data is deliberately absent: decisions
// are made on closed bars only.
type Snapshot struct {
	values map[string][]float64 // index 0 holds offset 1
}

// NewSnapshot creates an empty snapshot. The engine fills it bar by bar; an
// external indicator source can populate one directly via Set.
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string][]float64)}
}

// At returns the value of a series at the given closed-bar offset.
func (s *Snapshot) At(name string, offset int) (float64, error) {
	series, ok := s.values[name]
	if !ok {
		return 0, fmt.Errorf("%w: series %q", ErrValueUnavailable, name)
	}
	idx := offset - 1
	if idx < 0 || idx >= len(series) {
		return 0, fmt.Errorf("%w: series %q offset %d", ErrValueUnavailable, name, offset)
	}
	return series[idx], nil
}

// Set assigns a series, first value at offset 1, second at offset 2, and so on.
func (s *Snapshot) Set(name string, vals ...float64) {
	s.values[name] = vals
}
