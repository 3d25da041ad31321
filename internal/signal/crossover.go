package signal

import "decision-core/internal/indicators"

// Crossover signals when the fast average crosses the slow one between the two
// most recent closed bars. The optional trend filter only admits entries on the
// side of a longer-period average.
type Crossover struct {
	UseTrendFilter bool
}

func (c *Crossover) Name() string { return VariantCrossover }

func (c *Crossover) Evaluate(snap *indicators.Snapshot) (Direction, error) {
	fast1, err := snap.At(indicators.SeriesFastMA, 1)
	if err != nil {
		return None, err
	}
	fast2, err := snap.At(indicators.SeriesFastMA, 2)
	if err != nil {
		return None, err
	}
	slow1, err := snap.At(indicators.SeriesSlowMA, 1)
	if err != nil {
		return None, err
	}
	slow2, err := snap.At(indicators.SeriesSlowMA, 2)
	if err != nil {
		return None, err
	}

	long := fast2 <= slow2 && fast1 > slow1
	short := fast2 >= slow2 && fast1 < slow1

	if c.UseTrendFilter && (long || short) {
		close1, err := snap.At(indicators.SeriesClose, 1)
		if err != nil {
			return None, err
		}
		trend1, err := snap.At(indicators.SeriesTrendMA, 1)
		if err != nil {
			return None, err
		}
		long = long && close1 > trend1
		short = short && close1 < trend1
	}

	return resolve(long, short), nil
}
