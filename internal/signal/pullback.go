package signal

import "decision-core/internal/indicators"

// Pullback trades oscillator dips in the direction of the prevailing trend:
// Long when the fast average sits above the slow one and the oscillator is at
// or below the buy threshold, Short in the mirror case. CrossBack mode waits
// for the oscillator to return across the threshold instead of entering while
// the move is still extending.
type Pullback struct {
	BuyThreshold  float64
	SellThreshold float64
	CrossBack     bool
}

func (p *Pullback) Name() string { return VariantPullback }

func (p *Pullback) Evaluate(snap *indicators.Snapshot) (Direction, error) {
	fast1, err := snap.At(indicators.SeriesFastMA, 1)
	if err != nil {
		return None, err
	}
	slow1, err := snap.At(indicators.SeriesSlowMA, 1)
	if err != nil {
		return None, err
	}
	osc1, err := snap.At(indicators.SeriesOsc, 1)
	if err != nil {
		return None, err
	}

	biasUp := fast1 > slow1
	biasDown := fast1 < slow1

	var long, short bool
	if p.CrossBack {
		osc2, err := snap.At(indicators.SeriesOsc, 2)
		if err != nil {
			return None, err
		}
		long = biasUp && osc2 < p.BuyThreshold && osc1 >= p.BuyThreshold
		short = biasDown && osc2 > p.SellThreshold && osc1 <= p.SellThreshold
	} else {
		long = biasUp && osc1 <= p.BuyThreshold
		short = biasDown && osc1 >= p.SellThreshold
	}

	return resolve(long, short), nil
}
