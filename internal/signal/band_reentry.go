package signal

import "decision-core/internal/indicators"

// BandReentry is the mean-reversion variant: it waits for price to close
// outside a volatility band and come back inside with the oscillator at an
// extreme. Optional refinements reject shallow re-entries (noise filter) and
// moves whose distance to the middle band does not clear a multiple of the
// current spread (edge-over-cost filter).
type BandReentry struct {
	BuyThreshold       float64
	SellThreshold      float64
	MinReentryDistance float64
	EdgeOverSpreadMult float64
	UseIntrabar        bool
}

func (b *BandReentry) Name() string { return VariantBandReentry }

func (b *BandReentry) Evaluate(snap *indicators.Snapshot) (Direction, error) {
	close1, err := snap.At(indicators.SeriesClose, 1)
	if err != nil {
		return None, err
	}
	lower1, err := snap.At(indicators.SeriesBandLower, 1)
	if err != nil {
		return None, err
	}
	upper1, err := snap.At(indicators.SeriesBandUpper, 1)
	if err != nil {
		return None, err
	}
	lower2, err := snap.At(indicators.SeriesBandLower, 2)
	if err != nil {
		return None, err
	}
	upper2, err := snap.At(indicators.SeriesBandUpper, 2)
	if err != nil {
		return None, err
	}
	osc1, err := snap.At(indicators.SeriesOsc, 1)
	if err != nil {
		return None, err
	}

	// The "outside" condition can use intrabar extremes instead of the close.
	outsideLowRef, err := snap.At(indicators.SeriesClose, 2)
	if err != nil {
		return None, err
	}
	outsideHighRef := outsideLowRef
	if b.UseIntrabar {
		if outsideLowRef, err = snap.At(indicators.SeriesLow, 2); err != nil {
			return None, err
		}
		if outsideHighRef, err = snap.At(indicators.SeriesHigh, 2); err != nil {
			return None, err
		}
	}

	long := outsideLowRef < lower2 &&
		close1 > lower1+b.MinReentryDistance &&
		osc1 <= b.BuyThreshold
	short := outsideHighRef > upper2 &&
		close1 < upper1-b.MinReentryDistance &&
		osc1 >= b.SellThreshold

	if b.EdgeOverSpreadMult > 0 && (long || short) {
		mid1, err := snap.At(indicators.SeriesBandMid, 1)
		if err != nil {
			return None, err
		}
		spread, err := snap.At(indicators.SeriesSpread, 1)
		if err != nil {
			return None, err
		}
		// Expected edge is the run back to the middle band; it must beat the
		// round-trip cost by the configured multiple.
		long = long && (mid1-close1) >= b.EdgeOverSpreadMult*spread
		short = short && (close1-mid1) >= b.EdgeOverSpreadMult*spread
	}

	return resolve(long, short), nil
}
