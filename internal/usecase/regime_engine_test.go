package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/eventbus"
)

type fakeTickerProvider struct {
	mu      sync.Mutex
	tickers []models.Ticker
	err     error
	calls   int
}

func (f *fakeTickerProvider) Snapshot(_ context.Context, _ []string) ([]models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tickers, nil
}

func (f *fakeTickerProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// crisisTickers produce volatility score 1.0 (mean 0.5, no dispersion, all
// extreme) and liquidity score 0 (log10(10)/10 = 0.1, all below the low
// cutoff), which classifies as CRISIS.
func crisisTickers() []models.Ticker {
	return []models.Ticker{
		{Symbol: "AAA", Price: 100, Volume24h: 10, Change24h: 50},
		{Symbol: "BBB", Price: 200, Volume24h: 10, Change24h: -50},
		{Symbol: "CCC", Price: 300, Volume24h: 10, Change24h: 50},
		{Symbol: "DDD", Price: 400, Volume24h: 10, Change24h: -50},
	}
}

func newTestRegimeEngine(p *fakeTickerProvider) (*RegimeEngine, *eventbus.Bus) {
	bus := eventbus.New()
	e := NewRegimeEngine(p, bus, nil, nil)
	return e, bus
}

func TestClassifyScoresByPriority(t *testing.T) {
	cases := []struct {
		name                 string
		vol, corr, liq, mom  float64
		wantRegime           models.RegimeType
		wantConfidence       float64
	}{
		{"crisis", 0.85, 0.5, 0.1, 0.5, models.RegimeCrisis, 0.9},
		{"volatile", 0.75, 0.5, 0.5, 0.5, models.RegimeVolatile, 0.8},
		{"trending", 0.3, 0.7, 0.5, 0.7, models.RegimeTrending, 0.7},
		{"breakout", 0.55, 0.2, 0.5, 0.75, models.RegimeBreakout, 0.6},
		{"ranging", 0.3, 0.2, 0.5, 0.3, models.RegimeRanging, 0.5},
		{"crisis needs illiquidity", 0.85, 0.5, 0.5, 0.5, models.RegimeVolatile, 0.8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			regime, conf := classifyScores(tc.vol, tc.corr, tc.liq, tc.mom)
			if regime != tc.wantRegime || conf != tc.wantConfidence {
				t.Fatalf("classify(%v,%v,%v,%v) = %s/%v, want %s/%v",
					tc.vol, tc.corr, tc.liq, tc.mom, regime, conf, tc.wantRegime, tc.wantConfidence)
			}
		})
	}
}

func TestDetectCrisisCycle(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, bus := newTestRegimeEngine(p)

	var published []models.MarketRegime
	bus.Subscribe(models.EventMarketRegimeUpdate, func(ev models.Event) {
		if r, ok := ev.Payload.(models.MarketRegime); ok {
			published = append(published, r)
		}
	})

	got := e.DetectMarketRegime(context.Background(), []string{"AAA", "BBB", "CCC", "DDD"})
	if got.Regime != models.RegimeCrisis || got.Confidence != 0.9 {
		t.Fatalf("regime = %s/%v, want CRISIS/0.9 (scores %+v)", got.Regime, got.Confidence, got.Metadata)
	}
	if got.Metadata.VolatilityScore <= 0.8 {
		t.Fatalf("volatility score = %v, want > 0.8", got.Metadata.VolatilityScore)
	}
	if got.Metadata.LiquidityScore >= 0.2 {
		t.Fatalf("liquidity score = %v, want < 0.2", got.Metadata.LiquidityScore)
	}
	if got.LiquidityCondition != models.LiquidityCritical {
		t.Fatalf("liquidity condition = %s, want CRITICAL", got.LiquidityCondition)
	}
	if got.MomentumDirection != models.MomentumNeutral {
		t.Fatalf("momentum direction = %s for a balanced universe", got.MomentumDirection)
	}

	if len(published) != 1 || published[0].Regime != models.RegimeCrisis {
		t.Fatalf("published = %+v, want one CRISIS update", published)
	}
	if h := e.RegimeHistory(0); len(h) != 1 || h[0].Regime != models.RegimeRanging {
		t.Fatalf("history = %+v, want the seeded RANGING regime archived", h)
	}
	if a, ok := e.SymbolAnalysis("AAA"); !ok || a.Volatility != 0.5 {
		t.Fatalf("symbol analysis AAA = %+v ok=%v", a, ok)
	}

	m := e.Metrics()
	if m.TotalDetections != 1 || m.Distribution[models.RegimeCrisis] != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.UniverseSize != 4 {
		t.Fatalf("universe size = %d, want 4", m.UniverseSize)
	}
}

func TestUpdateGateSkipsRedundantCommit(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, bus := newTestRegimeEngine(p)

	var updates int
	bus.Subscribe(models.EventMarketRegimeUpdate, func(models.Event) { updates++ })

	e.DetectMarketRegime(context.Background(), nil)
	e.DetectMarketRegime(context.Background(), nil)

	if updates != 1 {
		t.Fatalf("published %d updates, want 1: same label, same confidence, not stale", updates)
	}
	if h := e.RegimeHistory(0); len(h) != 1 {
		t.Fatalf("history length = %d, want 1 after a skipped commit", len(h))
	}
	if m := e.Metrics(); m.TotalDetections != 2 {
		t.Fatalf("total detections = %d, want 2: skipped commits still count", m.TotalDetections)
	}
}

func TestUpdateGateRecommitsWhenStale(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, bus := newTestRegimeEngine(p)

	var updates int
	bus.Subscribe(models.EventMarketRegimeUpdate, func(models.Event) { updates++ })

	e.DetectMarketRegime(context.Background(), nil)
	e.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	e.DetectMarketRegime(context.Background(), nil)

	if updates != 2 {
		t.Fatalf("published %d updates, want 2: a stale regime is re-committed", updates)
	}
}

func TestHysteresisRejectsChangeWhenUnstable(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, _ := newTestRegimeEngine(p)

	// flappy archive: alternating labels give stability 1 - 9/10 = 0.1, and
	// the current regime carries that value from its last commit
	for i := 0; i < stabilityWindow; i++ {
		r := models.RegimeRanging
		if i%2 == 1 {
			r = models.RegimeVolatile
		}
		e.history = append(e.history, models.MarketRegime{Regime: r})
	}
	e.current.Metadata.RegimeStability = 0.1

	got := e.DetectMarketRegime(context.Background(), nil)
	if got.Regime != models.RegimeRanging {
		t.Fatalf("regime = %s, want the unstable engine to hold RANGING", got.Regime)
	}
	// confidence may still rise to max(new, current*0.8)
	if got.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9 carried from the rejected candidate", got.Confidence)
	}
	if math.Abs(got.Metadata.RegimeStability-0.1) > 1e-9 {
		t.Fatalf("stamped stability = %v, want 0.1 recomputed from the archive", got.Metadata.RegimeStability)
	}
}

func TestHysteresisUsesStoredStability(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, _ := newTestRegimeEngine(p)

	// the stored value gates the switch even when the archive recomputes
	// as stable (too short to count changes)
	e.current.Metadata.RegimeStability = 0.2

	got := e.DetectMarketRegime(context.Background(), nil)
	if got.Regime != models.RegimeRanging {
		t.Fatalf("regime = %s, want the low stored stability to hold RANGING", got.Regime)
	}
}

func TestReentrantDetectionReturnsCurrent(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, _ := newTestRegimeEngine(p)

	e.analyzing.Store(true)
	got := e.DetectMarketRegime(context.Background(), nil)
	if got.Regime != models.RegimeRanging {
		t.Fatalf("in-flight detection mutated state: %s", got.Regime)
	}
	if p.callCount() != 0 {
		t.Fatalf("provider called %d times during an in-flight cycle", p.callCount())
	}
	e.analyzing.Store(false)
}

func TestDetectionErrorKeepsLastKnownRegime(t *testing.T) {
	p := &fakeTickerProvider{err: errors.New("upstream down")}
	e, bus := newTestRegimeEngine(p)

	var updates int
	bus.Subscribe(models.EventMarketRegimeUpdate, func(models.Event) { updates++ })

	got := e.DetectMarketRegime(context.Background(), []string{"AAA"})
	if got.Regime != models.RegimeRanging || got.Confidence != 0.5 {
		t.Fatalf("failed cycle changed state: %s/%v", got.Regime, got.Confidence)
	}
	if updates != 0 {
		t.Fatalf("failed cycle published %d updates", updates)
	}
	m := e.Metrics()
	if len(m.Errors) != 1 {
		t.Fatalf("errors = %v, want one diagnostic", m.Errors)
	}
	if e.analyzing.Load() {
		t.Fatalf("reentrancy flag not released after a failed cycle")
	}

	// engine recovers once the provider does
	p.mu.Lock()
	p.err = nil
	p.tickers = crisisTickers()
	p.mu.Unlock()
	if got := e.DetectMarketRegime(context.Background(), nil); got.Regime != models.RegimeCrisis {
		t.Fatalf("recovered cycle = %s, want CRISIS", got.Regime)
	}
}

func TestUniverseSizeFromSystemHealth(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, bus := newTestRegimeEngine(p)
	e.Start()
	defer e.Stop()

	bus.Publish(models.EventSystemHealthUpdate, models.SystemHealth{UniverseSize: 42, Timestamp: time.Now()})
	if m := e.Metrics(); m.UniverseSize != 42 {
		t.Fatalf("universe size = %d, want 42 from system-health-update", m.UniverseSize)
	}
}

func TestContinuousAnalysis(t *testing.T) {
	p := &fakeTickerProvider{tickers: crisisTickers()}
	e, _ := newTestRegimeEngine(p)
	e.interval = 10 * time.Millisecond

	e.StartContinuousAnalysis(context.Background(), []string{"AAA"})
	deadline := time.Now().Add(2 * time.Second)
	for p.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.callCount() == 0 {
		t.Fatalf("continuous analysis never invoked the provider")
	}

	e.StopContinuousAnalysis()
	e.StopContinuousAnalysis() // idempotent
	calls := p.callCount()
	time.Sleep(50 * time.Millisecond)
	if p.callCount() != calls {
		t.Fatalf("provider still polled after stop: %d -> %d", calls, p.callCount())
	}
}

func TestRegimeHistoryLimit(t *testing.T) {
	p := &fakeTickerProvider{}
	e, _ := newTestRegimeEngine(p)
	for i := 0; i < 5; i++ {
		e.history = append(e.history, models.MarketRegime{Regime: models.RegimeRanging})
	}
	if h := e.RegimeHistory(2); len(h) != 2 {
		t.Fatalf("limited history length = %d, want 2", len(h))
	}
	if h := e.RegimeHistory(0); len(h) != 5 {
		t.Fatalf("full history length = %d, want 5", len(h))
	}
}
