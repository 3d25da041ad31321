// Package notify pushes trade and summary reports to a Telegram chat and
// answers a small set of read-only commands there. All methods are safe on a
// nil Notifier so callers never branch on whether notifications are enabled.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"decision-core/internal/events"
)

const maxMessageLength = 4096

// StatusFunc renders the current portfolio status for the /status command.
type StatusFunc func() string

// Notifier delivers engine reports to one authorized chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	status StatusFunc
}

// New connects to the Telegram API. An empty token returns a nil Notifier,
// which disables delivery without error.
func New(token string, chatID int64, status StatusFunc) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Printf("notify: telegram bot authorized as @%s", api.Self.UserName)
	return &Notifier{api: api, chatID: chatID, status: status}, nil
}

// Run consumes engine reports from the bus and serves incoming commands until
// ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, bus *events.Bus) {
	if n == nil {
		return
	}

	opened, cancelOpened := bus.Subscribe(events.TopicTradeOpened, 16)
	closed, cancelClosed := bus.Subscribe(events.TopicTradeClosed, 16)
	summaries, cancelSummaries := bus.Subscribe(events.TopicDailySummary, 16)
	defer cancelOpened()
	defer cancelClosed()
	defer cancelSummaries()

	go n.commandLoop(ctx)
	n.Send("Decision engine started. Use /status for the portfolio view.")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-opened:
			if ev, ok := msg.(events.TradeOpened); ok {
				n.Send(formatOpened(ev))
			}
		case msg := <-closed:
			if ev, ok := msg.(events.TradeClosed); ok {
				n.Send(formatClosed(ev))
			}
		case msg := <-summaries:
			if ev, ok := msg.(events.DailySummary); ok {
				n.Send(formatSummary(ev))
			}
		}
	}
}

func (n *Notifier) commandLoop(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := n.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			n.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != n.chatID {
				log.Printf("notify: ignoring command from unauthorized chat %d", update.Message.Chat.ID)
				continue
			}
			n.handleCommand(update.Message.Command())
		}
	}
}

func (n *Notifier) handleCommand(cmd string) {
	switch cmd {
	case "start", "help":
		n.Send("Commands:\n/status - portfolio status\n/help - this message")
	case "status":
		if n.status == nil {
			n.Send("Status is not available.")
			return
		}
		n.Send(n.status())
	default:
		n.Send("Unknown command. Use /help.")
	}
}

// Send delivers one message, splitting it when it exceeds Telegram's limit.
// Failures are logged and dropped.
func (n *Notifier) Send(text string) {
	if n == nil || text == "" {
		return
	}
	for _, part := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(n.chatID, part)
		if _, err := n.api.Send(msg); err != nil {
			log.Printf("notify: telegram send failed: %v", err)
		}
	}
}

func formatOpened(ev events.TradeOpened) string {
	return fmt.Sprintf("OPEN %s\n%s %s %.2f @ %.5f",
		ev.InstanceID, ev.Side, ev.Symbol, ev.Volume, ev.Price)
}

func formatClosed(ev events.TradeClosed) string {
	mark := "WIN"
	if ev.Profit < 0 {
		mark = "LOSS"
	}
	return fmt.Sprintf("CLOSE %s (%s)\n%s %s %.2f @ %.5f\nProfit: %.2f\nReason: %s",
		ev.InstanceID, mark, ev.Side, ev.Symbol, ev.Volume, ev.Price, ev.Profit, ev.Reason)
}

func formatSummary(ev events.DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary %s (%s)\n", ev.InstanceID, ev.Day)
	fmt.Fprintf(&b, "Bars: %d  Signals: %d  Trades: %d\n", ev.BarsEvaluated, ev.SignalsFound, ev.TradesSent)
	if len(ev.Blocks) > 0 {
		b.WriteString("Blocks:")
		for reason, count := range ev.Blocks {
			fmt.Fprintf(&b, " %s=%d", reason, count)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Equity: %.2f", ev.Equity)
	return b.String()
}

func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var messages []string
	current := ""
	for _, line := range strings.Split(text, "\n") {
		if len(current)+len(line)+1 > maxLength {
			messages = append(messages, current)
			current = line
			continue
		}
		if current != "" {
			current += "\n"
		}
		current += line
	}
	if current != "" {
		messages = append(messages, current)
	}
	return messages
}
