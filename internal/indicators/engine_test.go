package indicators

import (
	"errors"
	"testing"
	"time"

	"decision-core/internal/market"
)

func barsFromCloses(closes []float64) []market.Bar {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Symbol: "EURUSD",
			Start:  start.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c + 0.0002,
			Low:    c - 0.0002,
			Close:  c,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	if got := SMA(vals, 3); got != 4 {
		t.Fatalf("SMA = %v, want 4", got)
	}
	if got := SMA(vals, 6); got != 0 {
		t.Fatalf("SMA short window = %v, want 0", got)
	}
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	if got := RSI(up, 5); got != 100 {
		t.Fatalf("RSI all gains = %v, want 100", got)
	}
	down := []float64{6, 5, 4, 3, 2, 1}
	if got := RSI(down, 5); got != 0 {
		t.Fatalf("RSI all losses = %v, want 0", got)
	}
}

func TestBollingerBandsOrdering(t *testing.T) {
	vals := []float64{1.10, 1.11, 1.09, 1.12, 1.10}
	mid, up, lo := Bollinger(vals, 5, 2)
	if !(lo < mid && mid < up) {
		t.Fatalf("band ordering violated: lower=%v mid=%v upper=%v", lo, mid, up)
	}
}

func TestSnapshotWarmupAndOffsets(t *testing.T) {
	cfg := Config{FastMA: 2, SlowMA: 3, OscPeriod: 3, BandPeriod: 3, BandStdDev: 2, ATRPeriod: 3}
	e := NewEngine(cfg)

	if _, err := e.Snapshot(0.0001); !errors.Is(err, ErrValueUnavailable) {
		t.Fatalf("empty engine snapshot error = %v, want ErrValueUnavailable", err)
	}

	closes := []float64{1.10, 1.11, 1.12, 1.13, 1.14, 1.15}
	e.Warmup(barsFromCloses(closes))

	snap, err := e.Snapshot(0.0001)
	if err != nil {
		t.Fatalf("snapshot after warmup: %v", err)
	}

	c1, err := snap.At(SeriesClose, 1)
	if err != nil || c1 != 1.15 {
		t.Fatalf("close@1 = %v err=%v, want 1.15", c1, err)
	}
	c2, err := snap.At(SeriesClose, 2)
	if err != nil || c2 != 1.14 {
		t.Fatalf("close@2 = %v err=%v, want 1.14", c2, err)
	}

	// fast MA(2) at offset 1 averages the last two closes.
	f1, err := snap.At(SeriesFastMA, 1)
	if err != nil {
		t.Fatalf("fast@1: %v", err)
	}
	if want := (1.14 + 1.15) / 2; f1 != want {
		t.Fatalf("fast@1 = %v, want %v", f1, want)
	}

	if _, err := snap.At(SeriesClose, 3); !errors.Is(err, ErrValueUnavailable) {
		t.Fatalf("offset 3 error = %v, want ErrValueUnavailable", err)
	}
	if _, err := snap.At("no_such_series", 1); !errors.Is(err, ErrValueUnavailable) {
		t.Fatalf("unknown series error = %v, want ErrValueUnavailable", err)
	}
}

func TestCurrentValuesIncludeFormingBar(t *testing.T) {
	cfg := Config{BandPeriod: 3, BandStdDev: 2, ATRPeriod: 3}
	e := NewEngine(cfg)
	e.Warmup(barsFromCloses([]float64{1.10, 1.10, 1.10, 1.10, 1.10}))

	forming := market.Bar{Symbol: "EURUSD", Open: 1.10, High: 1.16, Low: 1.10, Close: 1.16}
	cur := e.CurrentValues(forming)

	// The forming spike must pull the current band middle above the flat history.
	if cur.BandMid <= 1.10 {
		t.Fatalf("current band mid = %v, want > 1.10", cur.BandMid)
	}
	if cur.Volatility <= 0 {
		t.Fatalf("current volatility = %v, want > 0", cur.Volatility)
	}
}
