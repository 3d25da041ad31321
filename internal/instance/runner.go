// Package instance wires one configured trading instance together: feed ticks
// in, order intents out. Each runner owns its indicator engine, gate chain,
// risk state, and position mirror, and processes events to completion on a
// single goroutine, so none of that state needs locking beyond the small
// status snapshot the API reads.
package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"decision-core/internal/broker"
	"decision-core/internal/events"
	"decision-core/internal/gate"
	"decision-core/internal/indicators"
	"decision-core/internal/lifecycle"
	"decision-core/internal/market"
	"decision-core/internal/monitor"
	"decision-core/internal/risk"
	"decision-core/internal/session"
	"decision-core/internal/signal"
	"decision-core/internal/telemetry"
	"decision-core/pkg/db"
)

// Persister is the journal surface a runner needs; *db.Store implements it.
type Persister interface {
	InsertDeal(ctx context.Context, d db.DealRecord) error
	UpsertDailySummary(ctx context.Context, rec db.SummaryRecord) error
	SaveInstanceState(ctx context.Context, st db.InstanceState) error
	LoadInstanceState(ctx context.Context, instanceID string) (db.InstanceState, error)
}

// Deps are the shared services a runner plugs into.
type Deps struct {
	Bus      *events.Bus
	Exec     broker.Executor
	Store    Persister      // nil disables journaling
	Sink     telemetry.Sink // nil disables telemetry
	Currency string         // telemetry account currency
	Equity   func() float64 // account equity for risk-percent sizing
}

// Runner drives one instance.
type Runner struct {
	def   Definition
	deps  Deps
	chain *gate.Chain
	eval  signal.Evaluator
	eng   *indicators.Engine
	bars  *market.BarBuilder
	lcm   *lifecycle.Manager
	dedup *telemetry.Dedup

	barGate  gate.BarGate
	counters *gate.Counters
	state    *risk.State

	position   *lifecycle.Position
	lastIntent risk.Intent
	exitReason string

	mu     sync.RWMutex
	paused bool
	status Status
}

// Status is the read-only view the API serves.
type Status struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Variant      string  `json:"variant"`
	Paused       bool    `json:"paused"`
	HasPosition  bool    `json:"has_position"`
	Day          string  `json:"day"`
	TradesToday  int     `json:"trades_today"`
	ConsecLosses int     `json:"consec_losses"`
	BarsToday    int     `json:"bars_today"`
	SignalsToday int     `json:"signals_today"`
	LastPrice    float64 `json:"last_price"`
}

// NewRunner builds a runner from a validated definition, restoring persisted
// risk and dedup state when the store has any.
func NewRunner(def Definition, deps Deps) (*Runner, error) {
	eval, err := signal.New(def.signalSpec())
	if err != nil {
		return nil, err
	}

	r := &Runner{
		def:      def,
		deps:     deps,
		chain:    gate.NewChain(def.gateConfig()),
		eval:     eval,
		eng:      indicators.NewEngine(def.indicatorConfig()),
		bars:     market.NewBarBuilder(time.Duration(def.Timeframe)),
		lcm:      lifecycle.NewManager(def.lifecycleConfig()),
		dedup:    telemetry.NewDedup(def.ID, deps.Currency, deps.Sink != nil, deps.Sink),
		counters: gate.NewCounters(""),
		state:    &risk.State{ResetLossesDaily: def.ResetLossesDaily},
	}

	if deps.Store != nil {
		if err := r.restore(context.Background()); err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}
	return r, nil
}

func (r *Runner) restore(ctx context.Context) error {
	st, err := r.deps.Store.LoadInstanceState(ctx, r.def.ID)
	if err != nil {
		return err
	}
	var rs risk.State
	if err := json.Unmarshal(st.RiskState, &rs); err != nil {
		return fmt.Errorf("restore risk state: %w", err)
	}
	rs.ResetLossesDaily = r.def.ResetLossesDaily
	*r.state = rs

	var ds telemetry.State
	if err := json.Unmarshal(st.DedupState, &ds); err != nil {
		return fmt.Errorf("restore dedup state: %w", err)
	}
	r.dedup.Restore(ds)
	r.counters = gate.NewCounters(rs.DayKey)
	return nil
}

// ID returns the instance id.
func (r *Runner) ID() string { return r.def.ID }

// Pause stops entry evaluation. Exit management keeps running so an open
// position is never orphaned.
func (r *Runner) Pause() { r.setPaused(true) }

// Resume re-enables entry evaluation.
func (r *Runner) Resume() { r.setPaused(false) }

func (r *Runner) setPaused(v bool) {
	r.mu.Lock()
	r.paused = v
	r.mu.Unlock()
}

// Paused reports whether entries are suspended.
func (r *Runner) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// Status returns a snapshot for the API.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	s.ID = r.def.ID
	s.Symbol = r.def.Symbol
	s.Variant = r.def.Signal.Variant
	s.Paused = r.paused
	return s
}

func (r *Runner) publishStatus(lastPrice float64) {
	r.mu.Lock()
	r.status = Status{
		HasPosition:  r.position != nil,
		Day:          r.state.DayKey,
		TradesToday:  r.state.TradesToday,
		ConsecLosses: r.state.ConsecLosses,
		BarsToday:    r.counters.BarsEvaluated,
		SignalsToday: r.counters.SignalsFound,
		LastPrice:    lastPrice,
	}
	r.mu.Unlock()
}

// Run processes ticks and deal notifications until ctx is cancelled. It is the
// only goroutine that touches the runner's trading state.
func (r *Runner) Run(ctx context.Context) {
	ticks, cancelTicks := r.deps.Bus.Subscribe(events.TopicTick, 256)
	deals, cancelDeals := r.deps.Bus.Subscribe(events.TopicDeal, 64)
	defer cancelTicks()
	defer cancelDeals()

	log.Printf("instance %s: running (%s %s)", r.def.ID, r.def.Symbol, r.def.Signal.Variant)

	for {
		select {
		case <-ctx.Done():
			r.persistState(context.Background())
			log.Printf("instance %s: stopped", r.def.ID)
			return
		case msg := <-deals:
			if ev, ok := msg.(broker.DealEvent); ok && ev.InstanceID == r.def.ID {
				r.onDeal(ctx, ev)
			}
		case msg := <-ticks:
			if t, ok := msg.(market.Tick); ok && t.Symbol == r.def.Symbol {
				r.onTick(ctx, t)
			}
		}
	}
}

func (r *Runner) onTick(ctx context.Context, t market.Tick) {
	monitor.IncTick(r.def.ID)

	r.rollover(ctx, t.Time)
	r.managePosition(ctx, t)

	if closed := r.bars.Add(t); closed != nil {
		r.eng.OnBarClose(*closed)
	}
	if forming, ok := r.bars.Forming(); ok && r.barGate.IsNewBar(forming.Start) {
		r.onNewBar(ctx, t)
	}

	r.publishStatus(t.Bid)
}

// rollover advances the daily counters when the trading-region day changes,
// publishing the finished day's summary first.
func (r *Runner) rollover(ctx context.Context, now time.Time) {
	dayKey := session.DayKey(now, r.def.Session.RegionOffset)
	if !r.state.Rollover(dayKey) {
		return
	}

	sum := r.counters.Roll(dayKey)
	if sum.Day == "" {
		return // first tick ever, nothing to report
	}

	blocks := make(map[string]int, len(sum.Blocks))
	for reason, n := range sum.Blocks {
		blocks[string(reason)] = n
	}
	report := events.DailySummary{
		InstanceID:    r.def.ID,
		Day:           sum.Day,
		BarsEvaluated: sum.BarsEvaluated,
		SignalsFound:  sum.SignalsFound,
		TradesSent:    sum.TradesSent,
		Blocks:        blocks,
		Equity:        r.equity(),
	}
	r.deps.Bus.Publish(events.TopicDailySummary, report)

	if r.deps.Store != nil {
		rec := db.SummaryRecord{
			InstanceID:    report.InstanceID,
			Day:           report.Day,
			BarsEvaluated: report.BarsEvaluated,
			SignalsFound:  report.SignalsFound,
			TradesSent:    report.TradesSent,
			Blocks:        blocks,
			Equity:        report.Equity,
		}
		if err := r.deps.Store.UpsertDailySummary(ctx, rec); err != nil {
			log.Printf("instance %s: persist summary: %v", r.def.ID, err)
		}
	}
	r.persistState(ctx)
}

// managePosition runs the exit rules on every tick, before any entry logic.
func (r *Runner) managePosition(ctx context.Context, t market.Tick) {
	if r.position == nil {
		return
	}

	view := lifecycle.View{Now: t.Time, Bid: t.Bid, Ask: t.Ask}
	if forming, ok := r.bars.Forming(); ok {
		cur := r.eng.CurrentValues(forming)
		view.BandMid = cur.BandMid
		view.Volatility = cur.Volatility
	}

	switch d := r.lcm.OnTick(r.position, view); d.Action {
	case lifecycle.ActionClose:
		r.exitReason = d.Reason
		if err := r.deps.Exec.CloseOpenPosition(ctx, r.def.ID); err != nil {
			log.Printf("instance %s: close (%s): %v", r.def.ID, d.Reason, err)
			r.exitReason = ""
		}
	case lifecycle.ActionModifyStop:
		if err := r.deps.Exec.ModifyStop(ctx, r.def.ID, d.NewStop, r.position.TakeProfit); err != nil {
			log.Printf("instance %s: trail stop: %v", r.def.ID, err)
			return
		}
		r.position.StopLoss = d.NewStop
	}
}

// onNewBar runs the admission chain and, when it passes, the evaluator and
// order submission. Exactly one terminal outcome is counted per bar.
func (r *Runner) onNewBar(ctx context.Context, t market.Tick) {
	r.counters.Bar()
	monitor.IncBar(r.def.ID)

	if r.Paused() {
		r.counters.Block(gate.Paused)
		monitor.IncBlock(r.def.ID, string(gate.Paused))
		return
	}

	snap, err := r.eng.Snapshot(t.Spread())
	if err != nil {
		return // warming up
	}

	in := gate.Input{
		Now:         t.Time,
		Spread:      t.Spread(),
		HasPosition: r.position != nil,
		Snapshot:    snap,
	}
	reason, err := r.chain.Evaluate(in, r.state)
	if err != nil {
		return
	}
	if reason != gate.Pass {
		r.counters.Block(reason)
		monitor.IncBlock(r.def.ID, string(reason))
		return
	}

	dir, err := r.eval.Evaluate(snap)
	if err != nil || dir == signal.None {
		r.counters.Block(gate.NoSignal)
		monitor.IncBlock(r.def.ID, string(gate.NoSignal))
		return
	}
	r.counters.Signal()
	monitor.IncSignal(r.def.ID, dir.String())

	r.submit(ctx, t, snap, dir)
}

func (r *Runner) submit(ctx context.Context, t market.Tick, snap *indicators.Snapshot, dir signal.Direction) {
	riskDistance := r.def.Sizing.StopPoints
	if mult := r.def.Sizing.StopATRMult; mult > 0 {
		atr, err := snap.At(indicators.SeriesATR, 1)
		if err != nil || atr <= 0 {
			return
		}
		riskDistance = mult * atr
	}
	if riskDistance <= 0 {
		return
	}

	entry := t.Ask
	if dir == signal.Short {
		entry = t.Bid
	}

	intent, err := risk.BuildIntent(dir, entry, riskDistance, r.equity(), r.def.intentConfig(), r.def.venueLimits())
	if err != nil {
		if errors.Is(err, risk.ErrStopsTooTight) {
			r.counters.Block(gate.StopsInvalid)
			monitor.IncBlock(r.def.ID, string(gate.StopsInvalid))
		} else {
			log.Printf("instance %s: build intent: %v", r.def.ID, err)
		}
		return
	}

	err = r.deps.Exec.SubmitMarketOrder(ctx, r.def.Symbol, r.def.ID,
		intent.Side, intent.Volume, intent.StopLoss, intent.TakeProfit)
	if err != nil {
		r.counters.Block(gate.OrderRejected)
		monitor.IncBlock(r.def.ID, string(gate.OrderRejected))
		log.Printf("instance %s: order rejected: %v", r.def.ID, err)
		return
	}

	r.lastIntent = intent
	r.state.RecordTrade(t.Time)
	r.counters.Trade()
	log.Printf("instance %s: %s %s %.2f sl=%.5f tp=%.5f",
		r.def.ID, dir, r.def.Symbol, intent.Volume, intent.StopLoss, intent.TakeProfit)
}

// onDeal absorbs one (possibly duplicated) fill notification. Risk state and
// the position mirror are updated exactly once per deal; telemetry emission is
// deduplicated separately inside the telemetry layer.
func (r *Runner) onDeal(ctx context.Context, ev broker.DealEvent) {
	first := r.dedup.OnDeal(ctx, ev)
	if !first {
		return
	}

	switch ev.Kind {
	case broker.DealOpen:
		r.position = &lifecycle.Position{
			Side:        ev.Side,
			OpenTime:    ev.Time,
			OpenPrice:   ev.Price,
			StopLoss:    r.lastIntent.StopLoss,
			TakeProfit:  r.lastIntent.TakeProfit,
			InitialRisk: math.Abs(ev.Price - r.lastIntent.StopLoss),
		}
		monitor.IncTradeOpened(r.def.ID)
		r.journal(ctx, ev, "")
		r.deps.Bus.Publish(events.TopicTradeOpened, events.TradeOpened{
			InstanceID: r.def.ID,
			Symbol:     r.def.Symbol,
			Side:       ev.Side.String(),
			Volume:     ev.Volume,
			Price:      ev.Price,
			Time:       ev.Time,
		})

	case broker.DealClose:
		r.state.RecordClose(ev.Time, ev.Profit)
		r.position = nil

		reason := r.exitReason
		r.exitReason = ""
		if reason == "" {
			// Not requested by us: the venue hit a protective level.
			reason = "protective_level"
		}
		monitor.IncTradeClosed(r.def.ID, ev.Profit)
		monitor.IncExit(r.def.ID, reason)
		monitor.SetEquity(r.equity())
		r.journal(ctx, ev, reason)
		r.deps.Bus.Publish(events.TopicTradeClosed, events.TradeClosed{
			InstanceID: r.def.ID,
			Symbol:     r.def.Symbol,
			Side:       ev.Side.String(),
			Volume:     ev.Volume,
			Price:      ev.Price,
			Profit:     ev.Profit,
			Reason:     reason,
			Time:       ev.Time,
		})
	}

	r.persistState(ctx)
}

func (r *Runner) journal(ctx context.Context, ev broker.DealEvent, reason string) {
	if r.deps.Store == nil {
		return
	}
	rec := db.DealRecord{
		DealID:     ev.DealID,
		InstanceID: r.def.ID,
		Kind:       string(ev.Kind),
		Symbol:     r.def.Symbol,
		Side:       ev.Side.String(),
		Volume:     ev.Volume,
		Price:      ev.Price,
		Profit:     ev.Profit,
		Reason:     reason,
		ExecutedAt: ev.Time,
	}
	if err := r.deps.Store.InsertDeal(ctx, rec); err != nil {
		log.Printf("instance %s: journal deal: %v", r.def.ID, err)
	}
}

func (r *Runner) persistState(ctx context.Context) {
	if r.deps.Store == nil {
		return
	}
	rs, err := json.Marshal(r.state)
	if err != nil {
		log.Printf("instance %s: marshal risk state: %v", r.def.ID, err)
		return
	}
	ds, err := json.Marshal(r.dedup.Snapshot())
	if err != nil {
		log.Printf("instance %s: marshal dedup state: %v", r.def.ID, err)
		return
	}
	st := db.InstanceState{InstanceID: r.def.ID, RiskState: rs, DedupState: ds}
	if err := r.deps.Store.SaveInstanceState(ctx, st); err != nil {
		log.Printf("instance %s: persist state: %v", r.def.ID, err)
	}
}

func (r *Runner) equity() float64 {
	if r.deps.Equity == nil {
		return 0
	}
	return r.deps.Equity()
}
