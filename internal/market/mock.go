package market

import (
	"context"
	"log"
	"math/rand"
	"time"

	"decision-core/internal/events"
)

// MockFeed publishes synthetic random-walk quotes for local development and
// dry runs.
type MockFeed struct {
	Bus        *events.Bus
	Symbols    []string
	StartPrice float64
	Step       float64
	Spread     float64
	Interval   time.Duration
}

// Start launches the feed goroutine. It stops when ctx is cancelled.
func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"EURUSD"}
	}
	price := m.StartPrice
	if price == 0 {
		price = 1.1000
	}
	if m.Step == 0 {
		m.Step = 0.0003
	}
	if m.Spread == 0 {
		m.Spread = 0.0001
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				for _, sym := range m.Symbols {
					price += (rand.Float64()*2 - 1) * m.Step
					m.Bus.Publish(events.TopicTick, Tick{
						Symbol: sym,
						Bid:    price,
						Ask:    price + m.Spread,
						Time:   now,
					})
				}
			}
		}
	}()
}
