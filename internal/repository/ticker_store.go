package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	applogger "MarketPulse/pkg/logger"
)

const healthPeriod = 30 * time.Second

// TickerStore keeps the latest tick per symbol, fed from market-data-update
// events. It serves snapshots to the regime engine and periodically publishes
// a system-health-update carrying the universe size.
type TickerStore struct {
	mu      sync.RWMutex
	tickers map[string]models.Ticker

	bus    *eventbus.Bus
	logger *applogger.Logger
	sub    eventbus.Subscription
	hasSub bool
	stopCh chan struct{}
}

func NewTickerStore(bus *eventbus.Bus, logger *applogger.Logger) *TickerStore {
	return &TickerStore{
		tickers: make(map[string]models.Ticker),
		bus:     bus,
		logger:  logger,
	}
}

// Start attaches the store to the bus and begins the health heartbeat.
func (s *TickerStore) Start() {
	s.sub = s.bus.Subscribe(models.EventMarketDataUpdate, s.onMarketData)
	s.hasSub = true
	s.stopCh = make(chan struct{})
	go s.healthLoop(s.stopCh)
}

// Stop detaches the store and halts the heartbeat. Idempotent.
func (s *TickerStore) Stop() {
	if s.hasSub {
		s.bus.Unsubscribe(s.sub)
		s.hasSub = false
	}
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *TickerStore) onMarketData(ev models.Event) {
	md, ok := ev.Payload.(models.MarketData)
	if !ok {
		if p, isPtr := ev.Payload.(*models.MarketData); isPtr && p != nil {
			md = *p
		} else {
			return
		}
	}
	ts := md.Timestamp
	if ts.IsZero() {
		ts = ev.Timestamp
	}
	s.mu.Lock()
	s.tickers[md.Symbol] = models.Ticker{
		Symbol:    md.Symbol,
		Price:     md.Price,
		Volume24h: md.Volume24h,
		Change24h: md.Change24h,
		Timestamp: ts,
	}
	s.mu.Unlock()
}

// Snapshot returns the latest tick for each requested symbol; symbols without
// data are omitted. An empty symbol list means the whole universe.
func (s *TickerStore) Snapshot(ctx context.Context, symbols []string) ([]models.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ticker snapshot: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(symbols) == 0 {
		out := make([]models.Ticker, 0, len(s.tickers))
		for _, t := range s.tickers {
			out = append(out, t)
		}
		return out, nil
	}

	out := make([]models.Ticker, 0, len(symbols))
	for _, sym := range symbols {
		if t, ok := s.tickers[sym]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Size returns the number of tracked symbols.
func (s *TickerStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickers)
}

func (s *TickerStore) healthLoop(stop chan struct{}) {
	ticker := time.NewTicker(healthPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.bus.Publish(models.EventSystemHealthUpdate, models.SystemHealth{
				UniverseSize: s.Size(),
				Timestamp:    time.Now(),
			})
		case <-stop:
			return
		}
	}
}

var _ repository.TickerProvider = (*TickerStore)(nil)
