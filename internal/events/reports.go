package events

import "time"

// TradeOpened is published on TopicTradeOpened once per fill, after dedup.
type TradeOpened struct {
	InstanceID string
	Symbol     string
	Side       string
	Volume     float64
	Price      float64
	Time       time.Time
}

// TradeClosed is published on TopicTradeClosed once per close, after dedup.
type TradeClosed struct {
	InstanceID string
	Symbol     string
	Side       string
	Volume     float64
	Price      float64
	Profit     float64
	Reason     string
	Time       time.Time
}

// DailySummary is published on TopicDailySummary at day rollover.
type DailySummary struct {
	InstanceID    string
	Day           string
	BarsEvaluated int
	SignalsFound  int
	TradesSent    int
	Blocks        map[string]int
	Equity        float64
}
