package instance

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"decision-core/internal/gate"
	"decision-core/internal/indicators"
	"decision-core/internal/lifecycle"
	"decision-core/internal/risk"
	"decision-core/internal/session"
	"decision-core/internal/signal"
)

// Duration wraps time.Duration for YAML fields written as "30m" or "4h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

// Definition is one trading instance entry in YAML.
type Definition struct {
	ID        string   `yaml:"id"`
	Symbol    string   `yaml:"symbol"`
	Timeframe Duration `yaml:"timeframe"`
	Enabled   bool     `yaml:"enabled"`

	Session    SessionConfig   `yaml:"session"`
	Gates      GateConfig      `yaml:"gates"`
	Indicators IndicatorConfig `yaml:"indicators"`
	Signal     SignalConfig    `yaml:"signal"`
	Sizing     SizingConfig    `yaml:"sizing"`
	Venue      VenueConfig     `yaml:"venue"`
	Exits      ExitConfig      `yaml:"exits"`

	// ResetLossesDaily clears the loss streak at day rollover instead of
	// letting it carry across days.
	ResetLossesDaily bool `yaml:"reset_losses_daily"`
}

// SessionConfig is the [start,end) trading window in region-local hours.
type SessionConfig struct {
	Start        int `yaml:"start"`
	End          int `yaml:"end"`
	RegionOffset int `yaml:"region_offset"`
}

// GateConfig parameterizes the admission chain.
type GateConfig struct {
	MaxSpreadPoints float64  `yaml:"max_spread_points"`
	PointSize       float64  `yaml:"point_size"`
	MaxTradesPerDay int      `yaml:"max_trades_per_day"`
	MaxConsecLosses int      `yaml:"max_consec_losses"`
	Cooldown        Duration `yaml:"cooldown"`
	RegimeMode      string   `yaml:"regime_mode"`
	RegimeThreshold float64  `yaml:"regime_threshold"`
}

// IndicatorConfig lists the indicator periods.
type IndicatorConfig struct {
	FastMA     int     `yaml:"fast_ma"`
	SlowMA     int     `yaml:"slow_ma"`
	TrendMA    int     `yaml:"trend_ma"`
	OscPeriod  int     `yaml:"osc_period"`
	BandPeriod int     `yaml:"band_period"`
	BandStdDev float64 `yaml:"band_std_dev"`
	ATRPeriod  int     `yaml:"atr_period"`
}

// SignalConfig selects and tunes the evaluator variant.
type SignalConfig struct {
	Variant            string  `yaml:"variant"`
	UseTrendFilter     bool    `yaml:"use_trend_filter"`
	BuyThreshold       float64 `yaml:"buy_threshold"`
	SellThreshold      float64 `yaml:"sell_threshold"`
	CrossBack          bool    `yaml:"cross_back"`
	MinReentryDistance float64 `yaml:"min_reentry_distance"`
	EdgeOverSpreadMult float64 `yaml:"edge_over_spread_mult"`
	UseIntrabar        bool    `yaml:"use_intrabar"`
}

// SizingConfig parameterizes order intent construction. The stop distance is
// either volatility-scaled (stop_atr_mult) or a fixed price distance
// (stop_points); exactly one must be set.
type SizingConfig struct {
	Mode            string  `yaml:"mode"` // fixed | risk_percent
	FixedVolume     float64 `yaml:"fixed_volume"`
	RiskPercent     float64 `yaml:"risk_percent"`
	ValuePerPoint   float64 `yaml:"value_per_point"`
	VolumeCap       float64 `yaml:"volume_cap"`
	StopATRMult     float64 `yaml:"stop_atr_mult"`
	StopPoints      float64 `yaml:"stop_points"` // in price units
	TakeProfitRatio float64 `yaml:"take_profit_ratio"`
	StopsPolicy     string  `yaml:"stops_policy"` // reject | widen
}

// VenueConfig mirrors the broker-side order constraints.
type VenueConfig struct {
	MinStopDistance float64 `yaml:"min_stop_distance"`
	MinVolume       float64 `yaml:"min_volume"`
	MaxVolume       float64 `yaml:"max_volume"`
	VolumeStep      float64 `yaml:"volume_step"`
}

// ExitConfig parameterizes the position lifecycle.
type ExitConfig struct {
	MaxHold           Duration `yaml:"max_hold"`
	TrailStartMult    float64  `yaml:"trail_start_mult"`
	TrailStepMult     float64  `yaml:"trail_step_mult"`
	MeanReversionExit bool     `yaml:"mean_reversion_exit"`
	FlattenEnabled    bool     `yaml:"flatten_enabled"`
	FlattenDay        string   `yaml:"flatten_day"`
	FlattenHour       int      `yaml:"flatten_hour"`
}

type configFile struct {
	Instances []Definition `yaml:"instances"`
}

// LoadDefinitions reads and validates instance definitions from a YAML file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse instances file: %w", err)
	}

	seen := make(map[string]bool, len(file.Instances))
	for i := range file.Instances {
		def := &file.Instances[i]
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("instance %q: %w", def.ID, err)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("duplicate instance id %q", def.ID)
		}
		seen[def.ID] = true
	}
	return file.Instances, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// Validate rejects definitions that could not run.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if d.Timeframe <= 0 {
		return fmt.Errorf("timeframe must be positive")
	}
	if err := session.ValidateWindow(d.Session.Start, d.Session.End); err != nil {
		return err
	}
	if _, err := signal.New(d.signalSpec()); err != nil {
		return err
	}
	switch d.Sizing.Mode {
	case "", risk.SizeFixed, risk.SizeRiskPercent:
	default:
		return fmt.Errorf("unknown sizing mode %q", d.Sizing.Mode)
	}
	switch d.Sizing.StopsPolicy {
	case "", risk.StopsReject, risk.StopsWiden:
	default:
		return fmt.Errorf("unknown stops policy %q", d.Sizing.StopsPolicy)
	}
	switch d.Gates.RegimeMode {
	case "", gate.RegimeRejectTrending, gate.RegimeRejectQuiet:
	default:
		return fmt.Errorf("unknown regime mode %q", d.Gates.RegimeMode)
	}
	if d.Exits.FlattenEnabled {
		if _, ok := weekdays[strings.ToLower(d.Exits.FlattenDay)]; !ok {
			return fmt.Errorf("unknown flatten day %q", d.Exits.FlattenDay)
		}
	}
	switch {
	case d.Sizing.StopATRMult > 0 && d.Sizing.StopPoints > 0:
		return fmt.Errorf("stop_atr_mult and stop_points are mutually exclusive")
	case d.Sizing.StopATRMult <= 0 && d.Sizing.StopPoints <= 0:
		return fmt.Errorf("one of stop_atr_mult or stop_points is required")
	}
	if (d.Sizing.StopATRMult > 0 || d.Gates.RegimeMode != "") && d.Indicators.ATRPeriod <= 0 {
		return fmt.Errorf("atr_period must be positive")
	}
	return nil
}

func (d *Definition) signalSpec() signal.Spec {
	return signal.Spec{
		Variant:            d.Signal.Variant,
		UseTrendFilter:     d.Signal.UseTrendFilter,
		BuyThreshold:       d.Signal.BuyThreshold,
		SellThreshold:      d.Signal.SellThreshold,
		CrossBack:          d.Signal.CrossBack,
		MinReentryDistance: d.Signal.MinReentryDistance,
		EdgeOverSpreadMult: d.Signal.EdgeOverSpreadMult,
		UseIntrabar:        d.Signal.UseIntrabar,
	}
}

func (d *Definition) gateConfig() gate.Config {
	cfg := gate.Config{
		SessionStart:    d.Session.Start,
		SessionEnd:      d.Session.End,
		RegionOffset:    d.Session.RegionOffset,
		MaxSpreadPoints: d.Gates.MaxSpreadPoints,
		PointSize:       d.Gates.PointSize,
		MaxTradesPerDay: d.Gates.MaxTradesPerDay,
		MaxConsecLosses: d.Gates.MaxConsecLosses,
		Cooldown:        time.Duration(d.Gates.Cooldown),
	}
	if d.Gates.RegimeMode != "" {
		cfg.Regime = &gate.RegimeConfig{Mode: d.Gates.RegimeMode, Threshold: d.Gates.RegimeThreshold}
	}
	return cfg
}

func (d *Definition) indicatorConfig() indicators.Config {
	return indicators.Config{
		FastMA:     d.Indicators.FastMA,
		SlowMA:     d.Indicators.SlowMA,
		TrendMA:    d.Indicators.TrendMA,
		OscPeriod:  d.Indicators.OscPeriod,
		BandPeriod: d.Indicators.BandPeriod,
		BandStdDev: d.Indicators.BandStdDev,
		ATRPeriod:  d.Indicators.ATRPeriod,
	}
}

func (d *Definition) intentConfig() risk.IntentConfig {
	return risk.IntentConfig{
		SizingMode:      d.Sizing.Mode,
		FixedVolume:     d.Sizing.FixedVolume,
		RiskPercent:     d.Sizing.RiskPercent,
		ValuePerPoint:   d.Sizing.ValuePerPoint,
		VolumeCap:       d.Sizing.VolumeCap,
		TakeProfitRatio: d.Sizing.TakeProfitRatio,
		StopsPolicy:     d.Sizing.StopsPolicy,
	}
}

func (d *Definition) venueLimits() risk.VenueLimits {
	return risk.VenueLimits{
		MinStopDistance: d.Venue.MinStopDistance,
		MinVolume:       d.Venue.MinVolume,
		MaxVolume:       d.Venue.MaxVolume,
		VolumeStep:      d.Venue.VolumeStep,
	}
}

func (d *Definition) lifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		MaxHold:           time.Duration(d.Exits.MaxHold),
		TrailStartMult:    d.Exits.TrailStartMult,
		TrailStepMult:     d.Exits.TrailStepMult,
		MeanReversionExit: d.Exits.MeanReversionExit,
		FlattenEnabled:    d.Exits.FlattenEnabled,
		FlattenDay:        weekdays[strings.ToLower(d.Exits.FlattenDay)],
		FlattenHour:       d.Exits.FlattenHour,
		RegionOffset:      d.Session.RegionOffset,
	}
}
