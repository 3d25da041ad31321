package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"decision-core/internal/api"
	"decision-core/internal/broker"
	"decision-core/internal/events"
	"decision-core/internal/instance"
	"decision-core/internal/market"
	"decision-core/internal/monitor"
	"decision-core/internal/notify"
	"decision-core/internal/telemetry"
	"decision-core/pkg/config"
	"decision-core/pkg/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("decision core starting on port %s (db=%s)", cfg.Port, cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()
	defer bus.Close()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(database.DB); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	store := db.NewStore(database.DB)

	// Execution engine (simulated venue)
	sim := broker.NewSim(broker.SimConfig{
		InitialEquity:       cfg.InitialEquity,
		ContractSize:        cfg.ContractSize,
		DuplicateDeliveries: cfg.DuplicateDeliveries,
	}, bus)
	monitor.SetEquity(sim.Equity())

	// The venue tracks quotes and protective levels from the same tick stream
	// the instances consume.
	simTicks, unsubSim := bus.Subscribe(events.TopicTick, 512)
	defer unsubSim()
	go func() {
		for msg := range simTicks {
			if t, ok := msg.(market.Tick); ok {
				sim.OnTick(t)
			}
		}
	}()

	// Telemetry sink
	var sink telemetry.Sink
	if cfg.TelemetryEnabled && cfg.TelemetryURL != "" {
		sink = telemetry.NewClient(cfg.TelemetryURL, cfg.TelemetryAPIKey, 5*time.Second)
		log.Printf("telemetry sink: %s", cfg.TelemetryURL)
	} else {
		log.Println("telemetry disabled")
	}

	// Trading instances
	defs, err := instance.LoadDefinitions(cfg.InstancesPath)
	if err != nil {
		log.Fatalf("load instances from %s: %v", cfg.InstancesPath, err)
	}
	deps := instance.Deps{
		Bus:      bus,
		Exec:     sim,
		Store:    store,
		Sink:     sink,
		Currency: cfg.TelemetryCurrency,
		Equity:   sim.Equity,
	}
	var runners []*instance.Runner
	for _, def := range defs {
		if !def.Enabled {
			log.Printf("instance %s: disabled, skipping", def.ID)
			continue
		}
		r, err := instance.NewRunner(def, deps)
		if err != nil {
			log.Fatalf("instance %s: %v", def.ID, err)
		}
		runners = append(runners, r)
	}
	if len(runners) == 0 {
		log.Fatal("no enabled instances configured")
	}

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *instance.Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(r)
	}

	// Market data (mock first, real later)
	if cfg.UseMockFeed {
		mock := market.MockFeed{
			Bus:      bus,
			Symbols:  cfg.MockSymbols,
			Spread:   cfg.MockSpread,
			Interval: time.Duration(cfg.MockInterval) * time.Millisecond,
		}
		mock.Start(ctx)
		log.Println("mock feed started")
	} else {
		feed := market.NewWSFeed(cfg.FeedWSURL, bus)
		feed.Start(ctx)
		log.Printf("websocket feed started: %s", cfg.FeedWSURL)
	}

	// Telegram notifications
	notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID, statusText(runners, sim.Equity))
	if err != nil {
		log.Printf("telegram notifier unavailable: %v", err)
	}
	if notifier != nil {
		go notifier.Run(ctx, bus)
	}

	// HTTP control surface
	server := api.NewServer(store, runners, sim.Equity, cfg.JWTSecret, cfg.AdminSecret, api.SystemMeta{
		UseMockFeed: cfg.UseMockFeed,
		Version:     version(),
	})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")
	cancel()
	wg.Wait()
	log.Println("all instances stopped")
}

func version() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}

// statusText renders the /status reply for the Telegram bot.
func statusText(runners []*instance.Runner, equity func() float64) notify.StatusFunc {
	return func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Equity: %.2f\n", equity())
		for _, r := range runners {
			st := r.Status()
			state := "running"
			if st.Paused {
				state = "paused"
			}
			pos := "flat"
			if st.HasPosition {
				pos = "in position"
			}
			fmt.Fprintf(&b, "%s (%s %s): %s, %s, trades today %d, loss streak %d\n",
				st.ID, st.Symbol, st.Variant, state, pos, st.TradesToday, st.ConsecLosses)
		}
		return b.String()
	}
}
