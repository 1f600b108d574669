package models

import "time"

// EventType identifies the kind of a bus event. The set is closed; new kinds
// are added here so subscribers can rely on exhaustive switches.
type EventType string

const (
	EventMarketDataUpdate    EventType = "market-data-update"
	EventVolumeSurge         EventType = "volume-surge"
	EventPriceBreakout       EventType = "price-breakout"
	EventSignalGenerated     EventType = "signal-generated"
	EventSignalRankingUpdate EventType = "signal-ranking-update"
	EventSignalConfirmed     EventType = "signal-confirmed"
	EventTradeSignal         EventType = "trade-signal"
	EventOrderPlaced         EventType = "order-placed"
	EventOrderFilled         EventType = "order-filled"
	EventOrderCancelled      EventType = "order-cancelled"
	EventRiskLimitBreach     EventType = "risk-limit-breach"
	EventMarginCall          EventType = "margin-call"
	EventVolatilityAlert     EventType = "volatility-alert"
	EventSystemHealthUpdate  EventType = "system-health-update"
	EventConfigurationUpdate EventType = "configuration-update"
	EventPerformanceMetric   EventType = "performance-metric"
	EventMarketRegimeUpdate  EventType = "market-regime-update"
)

// Event is the envelope delivered to subscribers and retained in history.
// Immutable once published.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// MarketData is the payload of market-data-update events, as supplied by the
// external producer. BidAskSpread and MarketCap are optional; gates that need
// them fail closed when absent.
type MarketData struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Volume24h     float64   `json:"volume"`
	Change24h     float64   `json:"change24h"`
	BidAskSpread  *float64  `json:"bidAskSpread,omitempty"`
	MarketCap     *float64  `json:"marketCap,omitempty"`
	TradingStatus string    `json:"tradingStatus,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SignalStage tags signal-generated events with the gate that produced them.
type SignalStage string

const (
	SignalStage1Passed SignalStage = "STAGE1_PASSED"
	SignalStage2Passed SignalStage = "STAGE2_PASSED"
)

// SignalGenerated is the payload of signal-generated events.
type SignalGenerated struct {
	Symbol string          `json:"symbol"`
	Stage  SignalStage     `json:"stage"`
	Data   *FilteredSymbol `json:"data"`
}

// SignalConfirmed is the payload of signal-confirmed events, emitted when the
// composite score clears the high-confidence threshold.
type SignalConfirmed struct {
	Symbol string          `json:"symbol"`
	Score  float64         `json:"score"`
	Data   *FilteredSymbol `json:"data"`
}

// OrderPlaced is the payload of order-placed events, published by execution
// collaborators when a tracked symbol trades.
type OrderPlaced struct {
	Symbol string `json:"symbol"`
}

// SystemHealth is the payload of system-health-update events.
type SystemHealth struct {
	UniverseSize int       `json:"universeSize"`
	Timestamp    time.Time `json:"timestamp"`
}
