// Package signal turns closed-bar indicator snapshots into directional trade
// intents. Evaluators are pure: same snapshot, same answer.
package signal

import (
	"fmt"

	"decision-core/internal/indicators"
)

// Direction is the outcome of one bar evaluation.
type Direction int

const (
	None Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Evaluator is implemented by each strategy variant.
type Evaluator interface {
	Name() string
	Evaluate(snap *indicators.Snapshot) (Direction, error)
}

// resolve collapses an ambiguous bar (both sides true) to None rather than
// arbitrarily picking a side.
func resolve(long, short bool) Direction {
	switch {
	case long && short:
		return None
	case long:
		return Long
	case short:
		return Short
	default:
		return None
	}
}

// Variant names accepted in instance configuration.
const (
	VariantCrossover   = "crossover"
	VariantPullback    = "pullback"
	VariantBandReentry = "band_reentry"
)

// Spec selects and parameterizes a variant.
type Spec struct {
	Variant string

	// Crossover
	UseTrendFilter bool

	// Pullback and band re-entry oscillator thresholds
	BuyThreshold  float64
	SellThreshold float64

	// Pullback
	CrossBack bool

	// Band re-entry refinements
	MinReentryDistance float64
	EdgeOverSpreadMult float64
	UseIntrabar        bool
}

// New builds the evaluator described by spec. Unknown variants are a startup
// configuration error.
func New(spec Spec) (Evaluator, error) {
	switch spec.Variant {
	case VariantCrossover:
		return &Crossover{UseTrendFilter: spec.UseTrendFilter}, nil
	case VariantPullback:
		return &Pullback{
			BuyThreshold:  spec.BuyThreshold,
			SellThreshold: spec.SellThreshold,
			CrossBack:     spec.CrossBack,
		}, nil
	case VariantBandReentry:
		return &BandReentry{
			BuyThreshold:       spec.BuyThreshold,
			SellThreshold:      spec.SellThreshold,
			MinReentryDistance: spec.MinReentryDistance,
			EdgeOverSpreadMult: spec.EdgeOverSpreadMult,
			UseIntrabar:        spec.UseIntrabar,
		}, nil
	default:
		return nil, fmt.Errorf("unknown signal variant %q", spec.Variant)
	}
}
