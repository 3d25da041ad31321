package events

// Topic enumerates the in-process message streams of the decision core.
type Topic string

const (
	// TopicTick carries market.Tick payloads from a feed.
	TopicTick Topic = "market.tick"
	// TopicDeal carries broker.DealEvent payloads from the execution engine.
	// Delivery may repeat for the same logical deal.
	TopicDeal Topic = "execution.deal"
	// TopicTradeOpened and TopicTradeClosed carry TradeOpened and TradeClosed
	// payloads after the owning instance has absorbed the deal.
	TopicTradeOpened Topic = "trade.opened"
	TopicTradeClosed Topic = "trade.closed"
	// TopicDailySummary carries DailySummary payloads on day rollover.
	TopicDailySummary Topic = "summary.daily"
)
