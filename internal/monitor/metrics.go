// Package monitor exposes the engine's operational metrics in Prometheus
// text exposition format. Metrics are registered in init() and served by the
// HTTP server at /metrics.
//
// Primary series:
//   - engine_ticks_total{instance}          ticks processed per instance
//   - engine_bars_total{instance}           closed bars evaluated
//   - engine_signals_total{instance,side}   raw evaluator signals
//   - engine_gate_blocks_total{instance,reason} entries refused, by gate
//   - engine_trades_total{instance,result}  trades by result (open|win|loss)
//   - engine_exits_total{instance,reason}   closes split by exit reason
//   - engine_open_position{instance}        1 while the instance holds a position
//   - engine_equity                         account equity snapshot
//   - engine_telemetry_drops_total          failed telemetry deliveries
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_ticks_total",
			Help: "Ticks processed",
		},
		[]string{"instance"},
	)

	barsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_bars_total",
			Help: "Closed bars evaluated",
		},
		[]string{"instance"},
	)

	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_signals_total",
			Help: "Evaluator signals before gating",
		},
		[]string{"instance", "side"}, // side: long|short
	)

	gateBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_gate_blocks_total",
			Help: "Entries refused, split by the gate that refused them",
		},
		[]string{"instance", "reason"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_total",
			Help: "Trades counted by result (open|win|loss)",
		},
		[]string{"instance", "result"},
	)

	exitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_exits_total",
			Help: "Position closes split by exit reason and instance",
		},
		[]string{"instance", "reason"},
	)

	openPosition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_open_position",
			Help: "1 while the instance holds an open position",
		},
		[]string{"instance"},
	)

	equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_equity",
			Help: "Account equity in the account currency",
		},
	)

	telemetryDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_telemetry_drops_total",
			Help: "Telemetry events that failed delivery and were dropped",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, barsTotal, signalsTotal)
	prometheus.MustRegister(gateBlocksTotal, tradesTotal, exitsTotal)
	prometheus.MustRegister(openPosition, equity, telemetryDrops)
}

// Handler serves the registered metrics; mounted at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

func IncTick(instance string) { ticksTotal.WithLabelValues(instance).Inc() }
func IncBar(instance string)  { barsTotal.WithLabelValues(instance).Inc() }
func SetEquity(v float64)     { equity.Set(v) }
func IncTelemetryDrop()       { telemetryDrops.Inc() }

func IncSignal(instance, side string) { signalsTotal.WithLabelValues(instance, side).Inc() }

func IncBlock(instance, reason string) { gateBlocksTotal.WithLabelValues(instance, reason).Inc() }

// IncTradeOpened records an opened trade and marks the position gauge.
func IncTradeOpened(instance string) {
	tradesTotal.WithLabelValues(instance, "open").Inc()
	openPosition.WithLabelValues(instance).Set(1)
}

// IncTradeClosed records a closed trade by result and clears the position gauge.
func IncTradeClosed(instance string, profit float64) {
	result := "win"
	if profit < 0 {
		result = "loss"
	}
	tradesTotal.WithLabelValues(instance, result).Inc()
	openPosition.WithLabelValues(instance).Set(0)
}

func IncExit(instance, reason string) { exitsTotal.WithLabelValues(instance, reason).Inc() }
