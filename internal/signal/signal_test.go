package signal

import (
	"errors"
	"testing"

	"decision-core/internal/indicators"
)

func snap(pairs map[string][2]float64) *indicators.Snapshot {
	s := indicators.NewSnapshot()
	for name, v := range pairs {
		s.Set(name, v[0], v[1]) // offset 1, offset 2
	}
	return s
}

func TestCrossover(t *testing.T) {
	tests := []struct {
		name   string
		filter bool
		values map[string][2]float64
		want   Direction
	}{
		{
			name: "golden cross goes long",
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.1010, 1.1000},
				indicators.SeriesSlowMA: {1.1005, 1.1005},
			},
			want: Long,
		},
		{
			name: "death cross goes short",
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.0990, 1.1005},
				indicators.SeriesSlowMA: {1.1000, 1.1000},
			},
			want: Short,
		},
		{
			name: "no cross stays flat",
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.1010, 1.1010},
				indicators.SeriesSlowMA: {1.1000, 1.1000},
			},
			want: None,
		},
		{
			name:   "trend filter vetoes counter-trend long",
			filter: true,
			values: map[string][2]float64{
				indicators.SeriesFastMA:  {1.1010, 1.1000},
				indicators.SeriesSlowMA:  {1.1005, 1.1005},
				indicators.SeriesClose:   {1.1008, 1.1000},
				indicators.SeriesTrendMA: {1.1100, 1.1100},
			},
			want: None,
		},
		{
			name:   "trend filter admits aligned long",
			filter: true,
			values: map[string][2]float64{
				indicators.SeriesFastMA:  {1.1010, 1.1000},
				indicators.SeriesSlowMA:  {1.1005, 1.1005},
				indicators.SeriesClose:   {1.1008, 1.1000},
				indicators.SeriesTrendMA: {1.0900, 1.0900},
			},
			want: Long,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &Crossover{UseTrendFilter: tt.filter}
			got, err := ev.Evaluate(snap(tt.values))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("direction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrossoverMissingSeriesPropagates(t *testing.T) {
	ev := &Crossover{}
	_, err := ev.Evaluate(snap(map[string][2]float64{
		indicators.SeriesFastMA: {1.1, 1.1},
	}))
	if !errors.Is(err, indicators.ErrValueUnavailable) {
		t.Fatalf("err = %v, want ErrValueUnavailable", err)
	}
}

func TestPullback(t *testing.T) {
	tests := []struct {
		name      string
		crossBack bool
		values    map[string][2]float64
		want      Direction
	}{
		{
			name: "uptrend dip goes long",
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.1050, 1.1040},
				indicators.SeriesSlowMA: {1.1000, 1.1000},
				indicators.SeriesOsc:    {28, 35},
			},
			want: Long,
		},
		{
			name: "downtrend spike goes short",
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.0950, 1.0960},
				indicators.SeriesSlowMA: {1.1000, 1.1000},
				indicators.SeriesOsc:    {72, 60},
			},
			want: Short,
		},
		{
			name: "oscillator neutral stays flat",
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.1050, 1.1040},
				indicators.SeriesSlowMA: {1.1000, 1.1000},
				indicators.SeriesOsc:    {50, 50},
			},
			want: None,
		},
		{
			name:      "cross-back waits for recovery",
			crossBack: true,
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.1050, 1.1040},
				indicators.SeriesSlowMA: {1.1000, 1.1000},
				indicators.SeriesOsc:    {25, 20}, // still below threshold, not back yet
			},
			want: None,
		},
		{
			name:      "cross-back long after recrossing",
			crossBack: true,
			values: map[string][2]float64{
				indicators.SeriesFastMA: {1.1050, 1.1040},
				indicators.SeriesSlowMA: {1.1000, 1.1000},
				indicators.SeriesOsc:    {33, 25}, // beyond at offset 2, back across at 1
			},
			want: Long,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &Pullback{BuyThreshold: 30, SellThreshold: 70, CrossBack: tt.crossBack}
			got, err := ev.Evaluate(snap(tt.values))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("direction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBandReentry(t *testing.T) {
	base := func() map[string][2]float64 {
		return map[string][2]float64{
			indicators.SeriesClose:     {1.1005, 1.0990}, // outside at 2, back inside at 1
			indicators.SeriesBandLower: {1.1000, 1.1000},
			indicators.SeriesBandUpper: {1.1100, 1.1100},
			indicators.SeriesBandMid:   {1.1050, 1.1050},
			indicators.SeriesOsc:       {25, 20},
			indicators.SeriesSpread:    {0.0001, 0.0001},
		}
	}

	t.Run("lower band re-entry goes long", func(t *testing.T) {
		ev := &BandReentry{BuyThreshold: 30, SellThreshold: 70}
		got, err := ev.Evaluate(snap(base()))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != Long {
			t.Fatalf("direction = %v, want Long", got)
		}
	})

	t.Run("oscillator not oversold stays flat", func(t *testing.T) {
		vals := base()
		vals[indicators.SeriesOsc] = [2]float64{45, 40}
		ev := &BandReentry{BuyThreshold: 30, SellThreshold: 70}
		got, err := ev.Evaluate(snap(vals))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != None {
			t.Fatalf("direction = %v, want None", got)
		}
	})

	t.Run("noise filter rejects shallow re-entry", func(t *testing.T) {
		ev := &BandReentry{BuyThreshold: 30, SellThreshold: 70, MinReentryDistance: 0.0010}
		got, err := ev.Evaluate(snap(base()))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != None {
			t.Fatalf("direction = %v, want None", got)
		}
	})

	t.Run("edge filter rejects thin edge", func(t *testing.T) {
		vals := base()
		vals[indicators.SeriesSpread] = [2]float64{0.0050, 0.0050} // mid is only 45 points away
		ev := &BandReentry{BuyThreshold: 30, SellThreshold: 70, EdgeOverSpreadMult: 2}
		got, err := ev.Evaluate(snap(vals))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != None {
			t.Fatalf("direction = %v, want None", got)
		}
	})

	t.Run("intrabar low detects outside condition", func(t *testing.T) {
		vals := base()
		vals[indicators.SeriesClose] = [2]float64{1.1005, 1.1002} // close never left the band
		vals[indicators.SeriesLow] = [2]float64{1.1001, 1.0990}   // but the wick did
		vals[indicators.SeriesHigh] = [2]float64{1.1010, 1.1008}
		ev := &BandReentry{BuyThreshold: 30, SellThreshold: 70, UseIntrabar: true}
		got, err := ev.Evaluate(snap(vals))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != Long {
			t.Fatalf("direction = %v, want Long", got)
		}

		// Without intrabar mode the same bars produce no signal.
		ev.UseIntrabar = false
		got, err = ev.Evaluate(snap(vals))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != None {
			t.Fatalf("direction = %v, want None", got)
		}
	})

	t.Run("upper band re-entry goes short", func(t *testing.T) {
		vals := map[string][2]float64{
			indicators.SeriesClose:     {1.1095, 1.1110},
			indicators.SeriesBandLower: {1.1000, 1.1000},
			indicators.SeriesBandUpper: {1.1100, 1.1100},
			indicators.SeriesBandMid:   {1.1050, 1.1050},
			indicators.SeriesOsc:       {75, 80},
			indicators.SeriesSpread:    {0.0001, 0.0001},
		}
		ev := &BandReentry{BuyThreshold: 30, SellThreshold: 70}
		got, err := ev.Evaluate(snap(vals))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != Short {
			t.Fatalf("direction = %v, want Short", got)
		}
	})
}

func TestNewRejectsUnknownVariant(t *testing.T) {
	if _, err := New(Spec{Variant: "martingale"}); err == nil {
		t.Fatal("unknown variant should fail at startup")
	}
	for _, v := range []string{VariantCrossover, VariantPullback, VariantBandReentry} {
		if _, err := New(Spec{Variant: v}); err != nil {
			t.Fatalf("New(%s): %v", v, err)
		}
	}
}
