package instance

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"decision-core/internal/broker"
	"decision-core/internal/events"
	"decision-core/internal/gate"
	"decision-core/internal/indicators"
	"decision-core/internal/lifecycle"
	"decision-core/internal/market"
	"decision-core/internal/risk"
	"decision-core/internal/signal"
	"decision-core/pkg/db"
)

type alwaysLong struct{}

func (alwaysLong) Name() string { return "always_long" }
func (alwaysLong) Evaluate(*indicators.Snapshot) (signal.Direction, error) {
	return signal.Long, nil
}

func testDefinition() Definition {
	return Definition{
		ID:         "inst-1",
		Symbol:     "EURUSD",
		Timeframe:  Duration(time.Minute),
		Enabled:    true,
		Session:    SessionConfig{Start: 0, End: 24},
		Indicators: IndicatorConfig{FastMA: 2, SlowMA: 3, ATRPeriod: 2},
		Signal:     SignalConfig{Variant: signal.VariantCrossover},
		Sizing:     SizingConfig{Mode: risk.SizeFixed, FixedVolume: 0.1, StopATRMult: 2, TakeProfitRatio: 2},
		Venue:      VenueConfig{MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
	}
}

// drainDeals feeds any pending deal events back into the runner, the way the
// Run loop would between ticks.
func drainDeals(ctx context.Context, r *Runner, deals <-chan any) {
	for {
		select {
		case msg := <-deals:
			if ev, ok := msg.(broker.DealEvent); ok && ev.InstanceID == r.def.ID {
				r.onDeal(ctx, ev)
			}
		default:
			return
		}
	}
}

func feedTick(ctx context.Context, r *Runner, sim *broker.Sim, deals <-chan any, bid float64, at time.Time) {
	tick := market.Tick{Symbol: "EURUSD", Bid: bid, Ask: bid + 0.0002, Time: at}
	sim.OnTick(tick)
	r.onTick(ctx, tick)
	drainDeals(ctx, r, deals)
}

func TestRunnerOpensAndClosesPosition(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sim := broker.NewSim(broker.SimConfig{}, bus)
	deals, cancelDeals := bus.Subscribe(events.TopicDeal, 32)
	defer cancelDeals()
	closedReports, cancelClosed := bus.Subscribe(events.TopicTradeClosed, 8)
	defer cancelClosed()

	def := testDefinition()
	def.Exits = ExitConfig{MaxHold: Duration(2 * time.Minute)}
	def.Gates.Cooldown = Duration(30 * time.Minute) // keep the runner flat after the exit
	r, err := NewRunner(def, Deps{Bus: bus, Exec: sim, Equity: sim.Equity})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	r.eval = alwaysLong{}

	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	price := 1.1000
	openedAt := -1
	for i := 0; i < 12; i++ {
		feedTick(ctx, r, sim, deals, price, base.Add(time.Duration(i)*time.Minute))
		if openedAt < 0 && r.position != nil {
			openedAt = i
		}
		price += 0.0005
	}

	if openedAt < 0 {
		t.Fatal("no position was opened after warmup")
	}
	if r.state.TradesToday != 1 {
		t.Fatalf("trades today = %d, want 1 (position gate must block re-entry)", r.state.TradesToday)
	}
	if r.position != nil {
		t.Fatal("time stop should have closed the position")
	}

	select {
	case msg := <-closedReports:
		report := msg.(events.TradeClosed)
		if report.Reason != lifecycle.ReasonTimeStop {
			t.Fatalf("close reason = %q, want %q", report.Reason, lifecycle.ReasonTimeStop)
		}
		if report.Profit <= 0 {
			t.Fatalf("profit = %v, want positive on a rising market", report.Profit)
		}
	default:
		t.Fatal("no trade-closed report was published")
	}

	st := r.Status()
	if st.HasPosition || st.TradesToday != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunnerUsesFixedStopDistance(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sim := broker.NewSim(broker.SimConfig{}, bus)
	deals, cancel := bus.Subscribe(events.TopicDeal, 32)
	defer cancel()

	def := testDefinition()
	def.Sizing.StopATRMult = 0
	def.Sizing.StopPoints = 0.0010
	r, err := NewRunner(def, Deps{Bus: bus, Exec: sim, Equity: sim.Equity})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	r.eval = alwaysLong{}

	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	price := 1.1000
	for i := 0; i < 12 && r.position == nil; i++ {
		feedTick(ctx, r, sim, deals, price, base.Add(time.Duration(i)*time.Minute))
		price += 0.0005
	}
	if r.position == nil {
		t.Fatal("no position was opened after warmup")
	}

	if got := r.position.OpenPrice - r.position.StopLoss; math.Abs(got-0.0010) > 1e-9 {
		t.Fatalf("stop distance = %.5f, want 0.0010", got)
	}
	if got := r.position.TakeProfit - r.position.OpenPrice; math.Abs(got-0.0020) > 1e-9 {
		t.Fatalf("take-profit distance = %.5f, want 0.0020", got)
	}
}

func TestRunnerPausedSkipsEntries(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sim := broker.NewSim(broker.SimConfig{}, bus)
	deals, cancel := bus.Subscribe(events.TopicDeal, 32)
	defer cancel()

	r, err := NewRunner(testDefinition(), Deps{Bus: bus, Exec: sim, Equity: sim.Equity})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	r.eval = alwaysLong{}
	r.Pause()

	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	price := 1.1000
	for i := 0; i < 12; i++ {
		feedTick(ctx, r, sim, deals, price, base.Add(time.Duration(i)*time.Minute))
		price += 0.0005
	}

	if r.state.TradesToday != 0 || r.position != nil {
		t.Fatalf("paused runner traded: trades=%d", r.state.TradesToday)
	}
	if r.counters.Blocks[gate.Paused] != r.counters.BarsEvaluated {
		t.Fatalf("paused blocks = %d, want every evaluated bar (%d)",
			r.counters.Blocks[gate.Paused], r.counters.BarsEvaluated)
	}
	if r.counters.BarsEvaluated == 0 {
		t.Fatal("paused runner must still count bars")
	}

	r.Resume()
	for i := 12; i < 15; i++ {
		feedTick(ctx, r, sim, deals, price, base.Add(time.Duration(i)*time.Minute))
		price += 0.0005
	}
	if r.state.TradesToday != 1 {
		t.Fatalf("trades after resume = %d, want 1", r.state.TradesToday)
	}
}

func TestRunnerAppliesCloseExactlyOnce(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	r, err := NewRunner(testDefinition(), Deps{Bus: bus, Exec: broker.NewSim(broker.SimConfig{}, bus)})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ev := broker.DealEvent{
		DealID: "777", InstanceID: "inst-1", Kind: broker.DealClose,
		Side: signal.Long, Volume: 0.1, Price: 1.0990, Profit: -10,
		Time: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	ctx := context.Background()
	r.onDeal(ctx, ev)
	r.onDeal(ctx, ev) // duplicate delivery

	if r.state.ConsecLosses != 1 {
		t.Fatalf("consec losses = %d, want exactly 1", r.state.ConsecLosses)
	}
}

func TestRunnerIgnoresStaleDuplicateClose(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	r, err := NewRunner(testDefinition(), Deps{Bus: bus, Exec: broker.NewSim(broker.SimConfig{}, bus)})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	closeEv := broker.DealEvent{
		DealID: "777", InstanceID: "inst-1", Kind: broker.DealClose,
		Side: signal.Long, Volume: 0.1, Price: 1.0990, Profit: -10, Time: at,
	}
	openEv := broker.DealEvent{
		DealID: "888", InstanceID: "inst-1", Kind: broker.DealOpen,
		Side: signal.Long, Volume: 0.1, Price: 1.1000, Time: at.Add(time.Minute),
	}

	ctx := context.Background()
	r.onDeal(ctx, closeEv)
	r.onDeal(ctx, openEv)
	r.onDeal(ctx, closeEv) // redelivered after the next trade already opened

	if r.state.ConsecLosses != 1 {
		t.Fatalf("consec losses = %d, want 1 (stale duplicate double-counted)", r.state.ConsecLosses)
	}
	if r.position == nil {
		t.Fatal("stale duplicate close destroyed the live position mirror")
	}
}

func TestRunnerPublishesDailySummary(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sim := broker.NewSim(broker.SimConfig{}, bus)
	deals, cancelDeals := bus.Subscribe(events.TopicDeal, 32)
	defer cancelDeals()
	summaries, cancelSummaries := bus.Subscribe(events.TopicDailySummary, 8)
	defer cancelSummaries()

	r, err := NewRunner(testDefinition(), Deps{Bus: bus, Exec: sim, Equity: sim.Equity})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx := context.Background()
	day1 := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	feedTick(ctx, r, sim, deals, 1.1000, day1)
	feedTick(ctx, r, sim, deals, 1.1001, day1.Add(time.Minute))

	// Crossing midnight in the trading region rolls the day.
	feedTick(ctx, r, sim, deals, 1.1002, day1.Add(2*time.Hour))

	select {
	case msg := <-summaries:
		sum := msg.(events.DailySummary)
		if sum.Day != "2025-03-10" || sum.InstanceID != "inst-1" {
			t.Fatalf("summary = %+v", sum)
		}
		if sum.BarsEvaluated == 0 {
			t.Fatal("summary should count the evaluated bars")
		}
	default:
		t.Fatal("no daily summary was published")
	}

	if r.state.TradesToday != 0 {
		t.Fatalf("trades today = %d, want reset after rollover", r.state.TradesToday)
	}
}

func TestRunnerRestoresPersistedState(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(database.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := db.NewStore(database.DB)

	bus := events.NewBus()
	defer bus.Close()
	deps := Deps{Bus: bus, Exec: broker.NewSim(broker.SimConfig{}, bus), Store: store}

	r, err := NewRunner(testDefinition(), deps)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	ev := broker.DealEvent{
		DealID: "900", InstanceID: "inst-1", Kind: broker.DealClose,
		Side: signal.Long, Volume: 0.1, Price: 1.0990, Profit: -10,
		Time: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	r.onDeal(context.Background(), ev)

	// A fresh runner over the same store inherits the loss streak and the
	// dedup markers, so a replayed deal changes nothing.
	restarted, err := NewRunner(testDefinition(), deps)
	if err != nil {
		t.Fatalf("restart runner: %v", err)
	}
	if restarted.state.ConsecLosses != 1 {
		t.Fatalf("restored consec losses = %d, want 1", restarted.state.ConsecLosses)
	}
	restarted.onDeal(context.Background(), ev)
	if restarted.state.ConsecLosses != 1 {
		t.Fatalf("replayed deal bumped losses to %d", restarted.state.ConsecLosses)
	}
}
