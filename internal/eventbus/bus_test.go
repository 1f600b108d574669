package eventbus

import (
	"fmt"
	"testing"

	"MarketPulse/internal/domain/models"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()
	b.Publish(models.EventMarketDataUpdate, "tick")

	got := b.History(models.EventMarketDataUpdate, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 event in history, got %d", len(got))
	}
	if got[0].Payload != "tick" {
		t.Fatalf("unexpected payload %v", got[0].Payload)
	}
}

func TestHistoryOrderAndLimit(t *testing.T) {
	b := New()
	for i := 0; i < 10; i++ {
		b.Publish(models.EventSignalGenerated, i)
	}
	b.Publish(models.EventOrderPlaced, "other")

	got := b.History(models.EventSignalGenerated, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	for i, ev := range got {
		if ev.Payload != 6+i {
			t.Fatalf("expected payload %d at index %d, got %v", 6+i, i, ev.Payload)
		}
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	b := New()
	for i := 0; i < historyCapacity+5; i++ {
		b.Publish(models.EventPerformanceMetric, i)
	}
	got := b.History("", historyCapacity)
	if len(got) != historyCapacity {
		t.Fatalf("expected history capped at %d, got %d", historyCapacity, len(got))
	}
	if got[0].Payload != 5 {
		t.Fatalf("expected oldest retained payload 5, got %v", got[0].Payload)
	}
}

func TestDispatchOrderSpecificThenWildcard(t *testing.T) {
	b := New()
	var order []string
	b.Subscribe(models.EventTradeSignal, func(models.Event) { order = append(order, "s1") })
	b.SubscribeToAll(func(models.Event) { order = append(order, "w1") })
	b.Subscribe(models.EventTradeSignal, func(models.Event) { order = append(order, "s2") })
	b.SubscribeToAll(func(models.Event) { order = append(order, "w2") })

	b.Publish(models.EventTradeSignal, nil)

	want := []string{"s1", "s2", "w1", "w2"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestWildcardReceivesEnvelope(t *testing.T) {
	b := New()
	var got models.Event
	b.SubscribeToAll(func(ev models.Event) { got = ev })

	b.Publish(models.EventMarginCall, 42)

	if got.Type != models.EventMarginCall || got.Payload != 42 {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub := b.Subscribe(models.EventVolumeSurge, func(models.Event) { calls++ })

	b.Publish(models.EventVolumeSurge, nil)
	b.Unsubscribe(sub)
	b.Publish(models.EventVolumeSurge, nil)
	b.Publish(models.EventVolumeSurge, nil)

	if calls != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", calls)
	}
	// removing twice is a no-op
	b.Unsubscribe(sub)
}

func TestPanickingHandlerDoesNotStarveOthers(t *testing.T) {
	b := New()
	delivered := false
	b.Subscribe(models.EventRiskLimitBreach, func(models.Event) { panic("boom") })
	b.Subscribe(models.EventRiskLimitBreach, func(models.Event) { delivered = true })

	b.Publish(models.EventRiskLimitBreach, nil)

	if !delivered {
		t.Fatalf("expected second handler to run after first panicked")
	}
}

func TestReentrantPublishFromHandler(t *testing.T) {
	b := New()
	var confirmed []models.Event
	b.Subscribe(models.EventSignalConfirmed, func(ev models.Event) { confirmed = append(confirmed, ev) })
	b.Subscribe(models.EventMarketDataUpdate, func(models.Event) {
		b.Publish(models.EventSignalConfirmed, "nested")
	})

	b.Publish(models.EventMarketDataUpdate, nil)

	if len(confirmed) != 1 {
		t.Fatalf("expected nested publish to be delivered, got %d", len(confirmed))
	}
	if n := len(b.History("", 0)); n != 2 {
		t.Fatalf("expected 2 events in history, got %d", n)
	}
}

func TestStatsAndClear(t *testing.T) {
	b := New()
	b.SubscribeToAll(func(models.Event) {})
	for i := 0; i < 3; i++ {
		b.Publish(models.EventMarketDataUpdate, i)
	}
	b.Publish(models.EventVolatilityAlert, nil)

	st := b.Stats()
	if st.TotalEvents != 4 {
		t.Fatalf("expected 4 total events, got %d", st.TotalEvents)
	}
	if st.EventCounts[models.EventMarketDataUpdate] != 3 {
		t.Fatalf("unexpected per-type count %v", st.EventCounts)
	}
	if st.WildcardListeners != 1 {
		t.Fatalf("expected 1 wildcard listener, got %d", st.WildcardListeners)
	}

	b.ClearHistory()
	if n := b.Stats().TotalEvents; n != 0 {
		t.Fatalf("expected empty history after clear, got %d", n)
	}
	// subscriptions survive a clear
	b.Publish(models.EventMarketDataUpdate, nil)
	if n := b.Stats().TotalEvents; n != 1 {
		t.Fatalf("expected publishing to work after clear, got %d", n)
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				b.Publish(models.EventPerformanceMetric, fmt.Sprintf("%d-%d", g, i))
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	if n := b.Stats().TotalEvents; n != 400 {
		t.Fatalf("expected 400 events, got %d", n)
	}
}
