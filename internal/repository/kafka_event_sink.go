package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/eventbus"
	applogger "MarketPulse/pkg/logger"
)

const sinkWriteTimeout = 5 * time.Second

// EventWriter is the slice of the Kafka producer the sink needs.
type EventWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// SinkTopics maps outbound event kinds to Kafka topics.
type SinkTopics struct {
	SignalConfirmed string `yaml:"signal_confirmed" default:"marketpulse.signals.confirmed"`
	RegimeUpdate    string `yaml:"regime_update" default:"marketpulse.regime.updates"`
}

// KafkaEventSink forwards confirmed signals and regime updates from the bus
// to Kafka for external consumers. Writes happen on their own goroutine so a
// slow broker cannot stall bus dispatch.
type KafkaEventSink struct {
	writer EventWriter
	topics SinkTopics
	bus    *eventbus.Bus
	logger *applogger.Logger

	subs []eventbus.Subscription
	ch   chan outbound
	done chan struct{}
}

type outbound struct {
	topic string
	key   []byte
	value interface{}
}

func NewKafkaEventSink(bus *eventbus.Bus, writer EventWriter, topics SinkTopics, logger *applogger.Logger) *KafkaEventSink {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &KafkaEventSink{
		writer: writer,
		topics: topics,
		bus:    bus,
		logger: logger,
		ch:     make(chan outbound, 256),
	}
}

// Start attaches the sink to the bus and launches the writer goroutine.
func (s *KafkaEventSink) Start() {
	done := make(chan struct{})
	s.done = done
	go s.writeLoop(done)
	s.subs = append(s.subs,
		s.bus.Subscribe(models.EventSignalConfirmed, s.onSignalConfirmed),
		s.bus.Subscribe(models.EventMarketRegimeUpdate, s.onRegimeUpdate),
	)
}

// Stop detaches from the bus and drains the outbound queue.
func (s *KafkaEventSink) Stop() {
	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub)
	}
	s.subs = nil
	if s.done != nil {
		close(s.ch)
		<-s.done
		s.done = nil
	}
}

func (s *KafkaEventSink) onSignalConfirmed(ev models.Event) {
	sc, ok := ev.Payload.(models.SignalConfirmed)
	if !ok {
		return
	}
	s.enqueue(outbound{topic: s.topics.SignalConfirmed, key: []byte(sc.Symbol), value: sc})
}

func (s *KafkaEventSink) onRegimeUpdate(ev models.Event) {
	regime, ok := ev.Payload.(models.MarketRegime)
	if !ok {
		return
	}
	s.enqueue(outbound{topic: s.topics.RegimeUpdate, key: []byte(regime.Regime), value: regime})
}

// enqueue drops on a full queue rather than blocking the bus.
func (s *KafkaEventSink) enqueue(o outbound) {
	select {
	case s.ch <- o:
	default:
		s.logger.Warn("event sink queue full, dropping",
			applogger.String("topic", o.topic))
	}
}

func (s *KafkaEventSink) writeLoop(done chan struct{}) {
	defer close(done)
	for o := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
		err := s.writer.Publish(ctx, o.topic, o.key, o.value)
		cancel()
		if err != nil {
			s.logger.Error("event sink publish failed",
				applogger.String("topic", o.topic), applogger.Error(err))
		}
	}
}
