package repository

import (
	"context"

	"MarketPulse/internal/domain/models"
)

// TickerProvider serves point-in-time ticker snapshots for a symbol universe.
// Implementations return at most one entry per requested symbol; symbols
// without data are omitted, not zero-filled.
type TickerProvider interface {
	Snapshot(ctx context.Context, symbols []string) ([]models.Ticker, error)
}

// EventPublisher is the subset of the event bus producers need.
type EventPublisher interface {
	Publish(eventType models.EventType, payload interface{})
}

// Metrics records operational measurements.
type Metrics interface {
	RecordEventPublished(eventType string)
	RecordSignal(stage string)
	RecordRegime(regime string, confidence float64)
	RecordRateLimit(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
