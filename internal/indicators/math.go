package indicators

import "math"

// SMA calculates the simple moving average over the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// RSI computes a basic Relative Strength Index without Wilder smoothing.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}

	gain := 0.0
	loss := 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}

// Bollinger returns the middle/upper/lower volatility bands over the last
// period values.
func Bollinger(values []float64, period int, numStdDev float64) (mid, upper, lower float64) {
	if period <= 0 || len(values) < period {
		return 0, 0, 0
	}
	mid = SMA(values, period)

	variance := 0.0
	for i := len(values) - period; i < len(values); i++ {
		diff := values[i] - mid
		variance += diff * diff
	}
	std := math.Sqrt(variance / float64(period))

	return mid, mid + numStdDev*std, mid - numStdDev*std
}

// TrueRanges converts high/low/close series into true-range values. The first
// element has no prior close and uses high-low only.
func TrueRanges(highs, lows, closes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		tr := highs[i] - lows[i]
		if i > 0 {
			if hc := math.Abs(highs[i] - closes[i-1]); hc > tr {
				tr = hc
			}
			if lc := math.Abs(lows[i] - closes[i-1]); lc > tr {
				tr = lc
			}
		}
		out[i] = tr
	}
	return out
}

// ATR computes the average true range over the last period bars.
func ATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 0
	}
	return SMA(TrueRanges(highs, lows, closes), period)
}
