package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"decision-core/internal/events"
)

// quoteMessage is the wire shape the platform's quote stream delivers.
type quoteMessage struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TimeMs int64   `json:"time"`
}

// WSFeed streams live quotes from the platform over a websocket and republishes
// them on the bus. Connection loss triggers a reconnect with backoff; trading
// instances simply see a gap in ticks.
type WSFeed struct {
	URL    string
	Bus    *events.Bus
	dialer *websocket.Dialer
}

// NewWSFeed creates a feed for the given stream URL.
func NewWSFeed(url string, bus *events.Bus) *WSFeed {
	return &WSFeed{URL: url, Bus: bus, dialer: websocket.DefaultDialer}
}

// Start launches the reader goroutine. It stops when ctx is cancelled.
func (f *WSFeed) Start(ctx context.Context) {
	go func() {
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			if err := f.readLoop(ctx); err != nil {
				log.Printf("quote stream: %v, reconnecting in %s", err, backoff)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
}

func (f *WSFeed) readLoop(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return fmt.Errorf("dial quote stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return fmt.Errorf("read quote stream: %w", err)
		}

		var q quoteMessage
		if err := json.Unmarshal(msg, &q); err != nil {
			log.Printf("quote stream: bad message: %v", err)
			continue
		}
		f.Bus.Publish(events.TopicTick, Tick{
			Symbol: q.Symbol,
			Bid:    q.Bid,
			Ask:    q.Ask,
			Time:   time.UnixMilli(q.TimeMs),
		})
	}
}
