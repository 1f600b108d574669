package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/eventbus"
)

type fakeWriter struct {
	mu     sync.Mutex
	writes []outbound
	err    error
}

func (w *fakeWriter) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, outbound{topic: topic, key: key, value: value})
	return w.err
}

func (w *fakeWriter) snapshot() []outbound {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]outbound, len(w.writes))
	copy(out, w.writes)
	return out
}

func TestEventSinkForwardsConfirmedSignalsAndRegimes(t *testing.T) {
	bus := eventbus.New()
	writer := &fakeWriter{}
	sink := NewKafkaEventSink(bus, writer, SinkTopics{
		SignalConfirmed: "out.signals",
		RegimeUpdate:    "out.regimes",
	}, nil)
	sink.Start()

	bus.Publish(models.EventSignalConfirmed, models.SignalConfirmed{Symbol: "BTCUSDT", Score: 0.85})
	bus.Publish(models.EventMarketRegimeUpdate, models.MarketRegime{Regime: models.RegimeVolatile, Confidence: 0.8})
	bus.Publish(models.EventMarketDataUpdate, models.MarketData{Symbol: "BTCUSDT"})

	// Stop drains the outbound queue before returning.
	sink.Stop()

	writes := writer.snapshot()
	if len(writes) != 2 {
		t.Fatalf("forwarded %d messages, want 2", len(writes))
	}
	if writes[0].topic != "out.signals" || string(writes[0].key) != "BTCUSDT" {
		t.Fatalf("signal write = topic %q key %q", writes[0].topic, writes[0].key)
	}
	if writes[1].topic != "out.regimes" || string(writes[1].key) != string(models.RegimeVolatile) {
		t.Fatalf("regime write = topic %q key %q", writes[1].topic, writes[1].key)
	}
}

func TestEventSinkStopDetachesFromBus(t *testing.T) {
	bus := eventbus.New()
	writer := &fakeWriter{}
	sink := NewKafkaEventSink(bus, writer, SinkTopics{SignalConfirmed: "s", RegimeUpdate: "r"}, nil)
	sink.Start()
	sink.Stop()

	bus.Publish(models.EventSignalConfirmed, models.SignalConfirmed{Symbol: "AAA", Score: 0.9})
	if n := len(writer.snapshot()); n != 0 {
		t.Fatalf("stopped sink forwarded %d messages, want 0", n)
	}
}

func TestEventSinkSurvivesWriterErrors(t *testing.T) {
	bus := eventbus.New()
	writer := &fakeWriter{err: errors.New("broker down")}
	sink := NewKafkaEventSink(bus, writer, SinkTopics{SignalConfirmed: "s", RegimeUpdate: "r"}, nil)
	sink.Start()

	bus.Publish(models.EventSignalConfirmed, models.SignalConfirmed{Symbol: "AAA", Score: 0.9})
	bus.Publish(models.EventSignalConfirmed, models.SignalConfirmed{Symbol: "BBB", Score: 0.8})
	sink.Stop()

	if n := len(writer.snapshot()); n != 2 {
		t.Fatalf("sink attempted %d writes, want 2 despite errors", n)
	}
}
