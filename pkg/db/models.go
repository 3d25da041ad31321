package db

import "time"

// DealRecord is one journaled execution event.
type DealRecord struct {
	DealID     string
	InstanceID string
	Kind       string // "OPEN" or "CLOSE"
	Symbol     string
	Side       string
	Volume     float64
	Price      float64
	Profit     float64
	Reason     string
	ExecutedAt time.Time
}

// SummaryRecord is one instance-day of evaluation statistics.
type SummaryRecord struct {
	InstanceID    string
	Day           string
	BarsEvaluated int
	SignalsFound  int
	TradesSent    int
	Blocks        map[string]int
	Equity        float64
}

// InstanceState is the persisted per-instance risk and dedup state, stored as
// opaque JSON owned by the respective packages.
type InstanceState struct {
	InstanceID string
	RiskState  []byte
	DedupState []byte
	UpdatedAt  time.Time
}
