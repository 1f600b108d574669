package repository

import (
	"context"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/eventbus"
)

func TestTickerStoreTracksLatestTick(t *testing.T) {
	bus := eventbus.New()
	store := NewTickerStore(bus, nil)
	store.Start()
	defer store.Stop()

	bus.Publish(models.EventMarketDataUpdate, models.MarketData{
		Symbol: "BTCUSDT", Price: 100, Volume24h: 1000, Change24h: 1, Timestamp: time.Now(),
	})
	bus.Publish(models.EventMarketDataUpdate, models.MarketData{
		Symbol: "BTCUSDT", Price: 105, Volume24h: 1100, Change24h: 2, Timestamp: time.Now(),
	})
	bus.Publish(models.EventMarketDataUpdate, models.MarketData{
		Symbol: "ETHUSDT", Price: 50, Volume24h: 500, Change24h: -1, Timestamp: time.Now(),
	})

	got, err := store.Snapshot(context.Background(), []string{"BTCUSDT"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(got) != 1 || got[0].Price != 105 {
		t.Fatalf("snapshot = %+v, want the latest BTCUSDT tick at 105", got)
	}

	all, err := store.Snapshot(context.Background(), nil)
	if err != nil {
		t.Fatalf("snapshot all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("universe snapshot length = %d, want 2", len(all))
	}
	if store.Size() != 2 {
		t.Fatalf("size = %d, want 2", store.Size())
	}
}

func TestTickerStoreOmitsUnknownSymbols(t *testing.T) {
	bus := eventbus.New()
	store := NewTickerStore(bus, nil)
	store.Start()
	defer store.Stop()

	bus.Publish(models.EventMarketDataUpdate, models.MarketData{Symbol: "AAA", Price: 1})

	got, err := store.Snapshot(context.Background(), []string{"AAA", "MISSING"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "AAA" {
		t.Fatalf("snapshot = %+v, want only AAA; unknowns are omitted, not zero-filled", got)
	}
}

func TestTickerStoreSnapshotHonorsContext(t *testing.T) {
	bus := eventbus.New()
	store := NewTickerStore(bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Snapshot(ctx, nil); err == nil {
		t.Fatalf("snapshot with cancelled context should fail")
	}
}
