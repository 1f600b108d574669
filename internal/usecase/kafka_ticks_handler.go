package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// KafkaTicksHandler bridges the external tick topic onto the event bus as
// market-data-update events.
type KafkaTicksHandler struct {
	topic   string
	bus     domrepo.EventPublisher
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, bus domrepo.EventPublisher, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, bus: bus, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema mirrors MarketData's JSON shape, with t as a unix
// timestamp in seconds or milliseconds
func (h *KafkaTicksHandler) Handle(_ context.Context, b []byte) error {
	var m struct {
		Symbol        string   `json:"symbol"`
		Price         float64  `json:"price"`
		Volume        float64  `json:"volume"`
		Change24h     float64  `json:"change24h"`
		BidAskSpread  *float64 `json:"bidAskSpread"`
		MarketCap     *float64 `json:"marketCap"`
		TradingStatus string   `json:"tradingStatus"`
		T             int64    `json:"t"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("ticks_unmarshal")
		}
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	ts := time.Now()
	if m.T > 0 {
		ts = time.Unix(m.T, 0)
		if h.metrics != nil {
			h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())
		}
	}

	h.bus.Publish(models.EventMarketDataUpdate, models.MarketData{
		Symbol:        m.Symbol,
		Price:         m.Price,
		Volume24h:     m.Volume,
		Change24h:     m.Change24h,
		BidAskSpread:  m.BidAskSpread,
		MarketCap:     m.MarketCap,
		TradingStatus: m.TradingStatus,
		Timestamp:     ts,
	})
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
