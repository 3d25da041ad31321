package risk

import (
	"errors"
	"fmt"
	"math"

	"decision-core/internal/signal"
)

// Sizing modes.
const (
	SizeFixed       = "fixed"
	SizeRiskPercent = "risk_percent"
)

// Stop validation policies for venue minimum-distance constraints.
const (
	StopsReject = "reject" // refuse the trade rather than widen levels
	StopsWiden  = "widen"  // push levels out to the venue minimum
)

// ErrStopsTooTight marks an intent whose stop or take-profit would violate the
// venue minimum distance under the reject policy. Counted as a StopsInvalid
// block, distinct from a venue rejection.
var ErrStopsTooTight = errors.New("stop levels violate venue minimum distance")

// VenueLimits are the broker-side constraints an intent must satisfy.
type VenueLimits struct {
	MinStopDistance float64 // minimum |entry-stop| and |entry-tp| in price units
	MinVolume       float64
	MaxVolume       float64
	VolumeStep      float64
}

// IntentConfig parameterizes intent construction for one instance.
type IntentConfig struct {
	SizingMode      string
	FixedVolume     float64
	RiskPercent     float64 // fraction of equity risked per trade, e.g. 0.01
	ValuePerPoint   float64 // account-currency value of one price unit per volume unit
	VolumeCap       float64 // optional hard cap on top of venue max; 0 disables
	TakeProfitRatio float64 // take-profit distance as a multiple of the stop distance
	StopsPolicy     string
}

// Intent is a fully specified market order request.
type Intent struct {
	Side       signal.Direction
	Volume     float64
	Entry      float64
	StopLoss   float64
	TakeProfit float64
}

// RiskDistance returns |entry - stop|, the initial risk the trailing logic is
// anchored to.
func (i Intent) RiskDistance() float64 {
	return math.Abs(i.Entry - i.StopLoss)
}

// BuildIntent turns a direction and a risk distance into concrete levels and a
// volume. entry is the expected fill price (ask for Long, bid for Short).
func BuildIntent(side signal.Direction, entry, riskDistance, equity float64, cfg IntentConfig, venue VenueLimits) (Intent, error) {
	if side == signal.None {
		return Intent{}, errors.New("cannot build intent without a direction")
	}
	if riskDistance <= 0 {
		return Intent{}, fmt.Errorf("non-positive risk distance %.5f", riskDistance)
	}

	stopDist := riskDistance
	tpDist := stopDist * cfg.TakeProfitRatio
	if cfg.TakeProfitRatio <= 0 {
		tpDist = stopDist
	}

	if venue.MinStopDistance > 0 && (stopDist < venue.MinStopDistance || tpDist < venue.MinStopDistance) {
		switch cfg.StopsPolicy {
		case StopsWiden:
			if stopDist < venue.MinStopDistance {
				stopDist = venue.MinStopDistance
			}
			if tpDist < venue.MinStopDistance {
				tpDist = venue.MinStopDistance
			}
		default:
			// Prefer a missed trade over accepted-but-wrong risk.
			return Intent{}, ErrStopsTooTight
		}
	}

	volume, err := sizeVolume(stopDist, equity, cfg, venue)
	if err != nil {
		return Intent{}, err
	}

	intent := Intent{Side: side, Volume: volume, Entry: entry}
	if side == signal.Long {
		intent.StopLoss = entry - stopDist
		intent.TakeProfit = entry + tpDist
	} else {
		intent.StopLoss = entry + stopDist
		intent.TakeProfit = entry - tpDist
	}
	return intent, nil
}

func sizeVolume(stopDist, equity float64, cfg IntentConfig, venue VenueLimits) (float64, error) {
	var volume float64
	switch cfg.SizingMode {
	case SizeRiskPercent:
		if cfg.ValuePerPoint <= 0 {
			return 0, errors.New("risk-percent sizing requires a positive value per point")
		}
		volume = equity * cfg.RiskPercent / (stopDist * cfg.ValuePerPoint)
	case SizeFixed, "":
		volume = cfg.FixedVolume
	default:
		return 0, fmt.Errorf("unknown sizing mode %q", cfg.SizingMode)
	}

	if venue.VolumeStep > 0 {
		volume = math.Floor(volume/venue.VolumeStep) * venue.VolumeStep
	}
	if venue.MaxVolume > 0 && volume > venue.MaxVolume {
		volume = venue.MaxVolume
	}
	if cfg.VolumeCap > 0 && volume > cfg.VolumeCap {
		volume = cfg.VolumeCap
	}
	if volume < venue.MinVolume || volume <= 0 {
		return 0, fmt.Errorf("computed volume %.4f below venue minimum %.4f", volume, venue.MinVolume)
	}
	return volume, nil
}
