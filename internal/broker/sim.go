package broker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"decision-core/internal/events"
	"decision-core/internal/market"
	"decision-core/internal/signal"
)

// SimConfig parameterizes the simulated execution engine.
type SimConfig struct {
	InitialEquity float64
	ContractSize  float64 // account-currency value of one price unit per volume unit
	// DuplicateDeliveries re-publishes every deal event N extra times,
	// mimicking the duplicate notifications real platforms produce.
	DuplicateDeliveries int
}

type simPosition struct {
	symbol     string
	side       signal.Direction
	volume     float64
	openPrice  float64
	stopLoss   float64
	takeProfit float64
	openTime   time.Time
}

// Sim is an in-process execution engine: it fills market orders against the
// latest quote, watches protective levels on every tick, and reports fills as
// DealEvents on the bus.
type Sim struct {
	cfg SimConfig
	bus *events.Bus

	mu        sync.Mutex
	quotes    map[string]market.Tick
	positions map[string]*simPosition // keyed by tag
	equity    float64
}

// NewSim creates a simulator publishing deal events on bus.
func NewSim(cfg SimConfig, bus *events.Bus) *Sim {
	if cfg.ContractSize == 0 {
		cfg.ContractSize = 100000
	}
	if cfg.InitialEquity == 0 {
		cfg.InitialEquity = 10000
	}
	return &Sim{
		cfg:       cfg,
		bus:       bus,
		quotes:    make(map[string]market.Tick),
		positions: make(map[string]*simPosition),
		equity:    cfg.InitialEquity,
	}
}

// Equity returns current account equity.
func (s *Sim) Equity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equity
}

// OnTick updates the quote book and triggers protective-level closes.
func (s *Sim) OnTick(t market.Tick) {
	s.mu.Lock()
	s.quotes[t.Symbol] = t

	type hit struct {
		tag   string
		price float64
	}
	var hits []hit
	for tag, pos := range s.positions {
		if pos.symbol != t.Symbol {
			continue
		}
		if price, ok := protectionHit(pos, t); ok {
			hits = append(hits, hit{tag: tag, price: price})
		}
	}
	s.mu.Unlock()

	for _, h := range hits {
		s.closeAt(h.tag, h.price, t.Time)
	}
}

func protectionHit(pos *simPosition, t market.Tick) (float64, bool) {
	if pos.side == signal.Long {
		if pos.stopLoss > 0 && t.Bid <= pos.stopLoss {
			return pos.stopLoss, true
		}
		if pos.takeProfit > 0 && t.Bid >= pos.takeProfit {
			return pos.takeProfit, true
		}
		return 0, false
	}
	if pos.stopLoss > 0 && t.Ask >= pos.stopLoss {
		return pos.stopLoss, true
	}
	if pos.takeProfit > 0 && t.Ask <= pos.takeProfit {
		return pos.takeProfit, true
	}
	return 0, false
}

// SubmitMarketOrder implements Executor.
func (s *Sim) SubmitMarketOrder(ctx context.Context, symbol, tag string, side signal.Direction, volume, stopLoss, takeProfit float64) error {
	if volume <= 0 {
		return &RejectError{Code: RejectInvalidVolume}
	}

	s.mu.Lock()
	if _, exists := s.positions[tag]; exists {
		s.mu.Unlock()
		return &RejectError{Code: RejectHasPosition}
	}
	quote, ok := s.quotes[symbol]
	if !ok {
		s.mu.Unlock()
		return &RejectError{Code: RejectOffQuotes}
	}

	fill := quote.Ask
	if side == signal.Short {
		fill = quote.Bid
	}
	s.positions[tag] = &simPosition{
		symbol:     symbol,
		side:       side,
		volume:     volume,
		openPrice:  fill,
		stopLoss:   stopLoss,
		takeProfit: takeProfit,
		openTime:   quote.Time,
	}
	s.mu.Unlock()

	s.publish(DealEvent{
		DealID:     uuid.NewString(),
		InstanceID: tag,
		Kind:       DealOpen,
		Side:       side,
		Volume:     volume,
		Price:      fill,
		Time:       quote.Time,
	})
	return nil
}

// ModifyStop implements Executor.
func (s *Sim) ModifyStop(ctx context.Context, tag string, newStop, takeProfit float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[tag]
	if !ok {
		return &RejectError{Code: RejectNoPosition}
	}
	pos.stopLoss = newStop
	if takeProfit > 0 {
		pos.takeProfit = takeProfit
	}
	return nil
}

// CloseOpenPosition implements Executor.
func (s *Sim) CloseOpenPosition(ctx context.Context, tag string) error {
	s.mu.Lock()
	pos, ok := s.positions[tag]
	if !ok {
		s.mu.Unlock()
		return &RejectError{Code: RejectNoPosition}
	}
	quote, haveQuote := s.quotes[pos.symbol]
	s.mu.Unlock()
	if !haveQuote {
		return &RejectError{Code: RejectOffQuotes}
	}

	price := quote.Bid
	if pos.side == signal.Short {
		price = quote.Ask
	}
	s.closeAt(tag, price, quote.Time)
	return nil
}

func (s *Sim) closeAt(tag string, price float64, at time.Time) {
	s.mu.Lock()
	pos, ok := s.positions[tag]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.positions, tag)

	diff := price - pos.openPrice
	if pos.side == signal.Short {
		diff = pos.openPrice - price
	}
	profit := diff * pos.volume * s.cfg.ContractSize
	s.equity += profit
	s.mu.Unlock()

	s.publish(DealEvent{
		DealID:     uuid.NewString(),
		InstanceID: tag,
		Kind:       DealClose,
		Side:       pos.side,
		Volume:     pos.volume,
		Price:      price,
		Profit:     profit,
		Time:       at,
	})
}

func (s *Sim) publish(ev DealEvent) {
	if s.bus == nil {
		return
	}
	// Deliberately noisy delivery: consumers must be idempotent.
	for i := 0; i <= s.cfg.DuplicateDeliveries; i++ {
		s.bus.Publish(events.TopicDeal, ev)
	}
	if ev.Kind == DealClose {
		log.Printf("sim: closed %s %.2f @ %.5f profit=%.2f", ev.InstanceID, ev.Volume, ev.Price, ev.Profit)
	}
}
