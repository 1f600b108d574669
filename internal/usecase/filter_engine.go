package usecase

import (
	"math"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/service/cache"
	"MarketPulse/internal/services/stats"
	applogger "MarketPulse/pkg/logger"
)

const (
	highConfidenceThreshold = 0.7
	maxPairwiseCorrelation  = 0.7
	recentlyTradedTTL       = time.Hour
	recentlyTradedDecay     = 0.5
	defaultTopLimit         = 5
	tickWindowSize          = 20

	// fixed reference scales for stage-3 normalization
	atrScale       = 0.01
	velocityScale  = 0.001
	surgeScale     = 5.0
	proximityScale = 0.05
)

// FilterEngine reduces the market-data stream to a ranked shortlist of
// actionable symbols via three cumulative gates. It subscribes to
// market-data-update events and publishes signal-generated / signal-confirmed
// events back onto the bus. Per-symbol state is most-recent-wins.
type FilterEngine struct {
	mu           sync.Mutex
	criteria     models.FilterCriteria
	symbols      map[string]*models.FilteredSymbol
	windows      map[string]*tickWindow
	correlations map[string]map[string]float64

	recent  cache.MembershipCache
	bus     *eventbus.Bus
	metrics repository.Metrics
	logger  *applogger.Logger

	subs []eventbus.Subscription
}

// NewFilterEngine creates a filtering engine. Call Start to attach it to the
// bus.
func NewFilterEngine(bus *eventbus.Bus, recent cache.MembershipCache, metrics repository.Metrics, logger *applogger.Logger, criteria models.FilterCriteria) *FilterEngine {
	return &FilterEngine{
		criteria:     criteria,
		symbols:      make(map[string]*models.FilteredSymbol),
		windows:      make(map[string]*tickWindow),
		correlations: make(map[string]map[string]float64),
		recent:       recent,
		bus:          bus,
		metrics:      metrics,
		logger:       logger,
	}
}

// Start subscribes the engine to market-data, regime and order events.
func (e *FilterEngine) Start() {
	e.subs = append(e.subs,
		e.bus.Subscribe(models.EventMarketDataUpdate, e.onMarketData),
		e.bus.Subscribe(models.EventMarketRegimeUpdate, e.onRegimeUpdate),
		e.bus.Subscribe(models.EventOrderPlaced, e.onOrderPlaced),
	)
}

// Stop detaches the engine from the bus.
func (e *FilterEngine) Stop() {
	for _, s := range e.subs {
		e.bus.Unsubscribe(s)
	}
	e.subs = nil
}

func (e *FilterEngine) onMarketData(ev models.Event) {
	md, ok := eventPayload[models.MarketData](ev)
	if !ok {
		if e.metrics != nil {
			e.metrics.RecordError("filter_payload")
		}
		return
	}
	e.Evaluate(md)
}

func (e *FilterEngine) onRegimeUpdate(ev models.Event) {
	regime, ok := eventPayload[models.MarketRegime](ev)
	if !ok {
		return
	}
	e.UpdateMarketRegime(regime)
}

func (e *FilterEngine) onOrderPlaced(ev models.Event) {
	if o, ok := eventPayload[models.OrderPlaced](ev); ok && o.Symbol != "" {
		e.MarkRecentlyTraded(o.Symbol)
	}
}

// Evaluate runs one tick through the funnel, overwrites the symbol's entry,
// and publishes stage events. Exposed for callers that feed ticks directly.
func (e *FilterEngine) Evaluate(md models.MarketData) *models.FilteredSymbol {
	start := time.Now()

	e.mu.Lock()
	w, ok := e.windows[md.Symbol]
	if !ok {
		w = newTickWindow(tickWindowSize)
		e.windows[md.Symbol] = w
	}
	w.push(md.Price, md.Volume24h, md.Timestamp)
	derived := w.derive()
	criteria := e.criteria
	e.mu.Unlock()

	metrics := models.SymbolMetrics{
		Volume24h:         md.Volume24h,
		Spread:            md.BidAskSpread,
		MarketCap:         md.MarketCap,
		ATR:               derived.atr,
		PriceVelocity:     derived.velocity,
		VolumeSurge:       derived.surge,
		BreakoutProximity: derived.proximity,
	}

	fs := &models.FilteredSymbol{
		Symbol:    md.Symbol,
		Metrics:   metrics,
		Timestamp: time.Now(),
	}

	fs.Stage1Passed = e.passesStage1(md, criteria)
	if fs.Stage1Passed {
		fs.Stage2Passed = e.passesStage2(metrics, criteria)
	}
	if fs.Stage2Passed {
		fs.Score = e.score(md.Symbol, metrics, criteria)
	}

	e.mu.Lock()
	e.symbols[md.Symbol] = fs
	e.mu.Unlock()

	if fs.Stage1Passed {
		e.emitSignal(models.SignalStage1Passed, fs)
	}
	if fs.Stage2Passed {
		e.emitSignal(models.SignalStage2Passed, fs)
	}
	if fs.Score > highConfidenceThreshold {
		e.bus.Publish(models.EventSignalConfirmed, models.SignalConfirmed{
			Symbol: fs.Symbol,
			Score:  fs.Score,
			Data:   fs,
		})
		if e.metrics != nil {
			e.metrics.RecordSignal("confirmed")
		}
	}
	if e.metrics != nil {
		e.metrics.RecordLatency("filter_evaluate", time.Since(start).Seconds())
	}
	return fs
}

func (e *FilterEngine) emitSignal(stage models.SignalStage, fs *models.FilteredSymbol) {
	e.bus.Publish(models.EventSignalGenerated, models.SignalGenerated{
		Symbol: fs.Symbol,
		Stage:  stage,
		Data:   fs,
	})
	if e.metrics != nil {
		e.metrics.RecordSignal(string(stage))
	}
}

// Stage 1: universe screening. Missing or NaN inputs fail the gate.
func (e *FilterEngine) passesStage1(md models.MarketData, c models.FilterCriteria) bool {
	if math.IsNaN(md.Volume24h) || md.Volume24h < c.MinVolume {
		return false
	}
	if c.MaxSpread > 0 {
		if md.BidAskSpread == nil || math.IsNaN(*md.BidAskSpread) || *md.BidAskSpread > c.MaxSpread {
			return false
		}
	}
	if c.MinMarketCap > 0 {
		if md.MarketCap == nil || math.IsNaN(*md.MarketCap) || *md.MarketCap < c.MinMarketCap {
			return false
		}
	}
	return md.TradingStatus == c.TradingStatus
}

// Stage 2: volatility and momentum gate. Derived metrics are NaN until the
// tick window has enough history, which fails the gate.
func (e *FilterEngine) passesStage2(m models.SymbolMetrics, c models.FilterCriteria) bool {
	if math.IsNaN(m.ATR) || math.IsNaN(m.PriceVelocity) || math.IsNaN(m.VolumeSurge) || math.IsNaN(m.BreakoutProximity) {
		return false
	}
	return m.ATR >= c.MinATR &&
		math.Abs(m.PriceVelocity) >= c.MinPriceVelocity &&
		m.VolumeSurge >= c.VolumeSurgeThreshold &&
		m.BreakoutProximity <= c.BreakoutProximity
}

// Stage 3: composite score in [0,1]. Raw weights are used as configured; see
// FilterCriteria.NormalizedWeights for the drift discussion.
func (e *FilterEngine) score(symbol string, m models.SymbolMetrics, c models.FilterCriteria) float64 {
	atrN := stats.Clamp01(m.ATR / atrScale)
	velN := stats.Clamp01(math.Abs(m.PriceVelocity) / velocityScale)
	surgeN := stats.Clamp01(m.VolumeSurge / surgeScale)
	proxN := 1 - m.BreakoutProximity/proximityScale
	if proxN < 0 {
		proxN = 0
	}

	score := c.VolatilityWeight*atrN +
		c.MomentumWeight*velN +
		c.VolumeWeight*surgeN +
		c.BreakoutWeight*proxN

	if e.isRecentlyTraded(symbol) {
		score *= recentlyTradedDecay
	}
	return stats.Clamp01(score)
}

func (e *FilterEngine) isRecentlyTraded(symbol string) bool {
	if e.recent == nil {
		return false
	}
	ok, err := e.recent.Contains(symbol)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("recently_traded_lookup")
		}
		return false
	}
	return ok
}

// MarkRecentlyTraded adds the symbol to the decay set for one hour so the
// same signal does not immediately re-fire.
func (e *FilterEngine) MarkRecentlyTraded(symbol string) {
	if e.recent == nil {
		return
	}
	if err := e.recent.Add(symbol, recentlyTradedTTL); err != nil {
		if e.logger != nil {
			e.logger.Warn("recently traded add failed",
				applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
}

// TopSymbols returns stage-2 passers with score > 0, best first. limit <= 0
// applies the default of 5.
func (e *FilterEngine) TopSymbols(limit int) []*models.FilteredSymbol {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	e.mu.Lock()
	candidates := make([]*models.FilteredSymbol, 0, len(e.symbols))
	for _, fs := range e.symbols {
		if fs.Stage2Passed && fs.Score > 0 {
			candidates = append(candidates, fs)
		}
	}
	e.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Symbol returns the latest evaluation for one symbol, or nil.
func (e *FilterEngine) Symbol(symbol string) *models.FilteredSymbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.symbols[symbol]
}

// UpdateCorrelationMatrix bulk-sets pairwise correlations. matrix[i][j] is
// the correlation between symbols[i] and symbols[j]; symmetry is by
// convention of the producer, not enforced here.
func (e *FilterEngine) UpdateCorrelationMatrix(symbols []string, matrix [][]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, a := range symbols {
		if i >= len(matrix) {
			break
		}
		row := e.correlations[a]
		if row == nil {
			row = make(map[string]float64, len(symbols))
			e.correlations[a] = row
		}
		for j, b := range symbols {
			if j >= len(matrix[i]) {
				break
			}
			row[b] = matrix[i][j]
		}
	}
}

// CheckCorrelationConstraints rejects a candidate whose correlation with any
// already-selected symbol exceeds 0.7 in absolute value. Unknown pairs pass.
func (e *FilterEngine) CheckCorrelationConstraints(symbol string, selected []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	row := e.correlations[symbol]
	if row == nil {
		return true
	}
	for _, s := range selected {
		if corr, ok := row[s]; ok && math.Abs(corr) > maxPairwiseCorrelation {
			return false
		}
	}
	return true
}

// UpdateMarketRegime re-weights the stage-3 volatility/momentum weights by
// regime. Only those two weights move, so the four weights can drift from
// summing to 1 across repeated switches; that behavior is kept as-is for
// compatibility with the original tuning.
func (e *FilterEngine) UpdateMarketRegime(regime models.MarketRegime) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch regime.Regime {
	case models.RegimeTrending:
		e.criteria.MomentumWeight = 0.35
		e.criteria.VolatilityWeight = 0.20
	case models.RegimeRanging:
		e.criteria.MomentumWeight = 0.25
		e.criteria.VolatilityWeight = 0.30
	case models.RegimeVolatile:
		e.criteria.MomentumWeight = 0.15
		e.criteria.VolatilityWeight = 0.40
	}
}

// Criteria returns a copy of the active criteria.
func (e *FilterEngine) Criteria() models.FilterCriteria {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.criteria
}

// SetCriteria replaces the criteria wholesale.
func (e *FilterEngine) SetCriteria(c models.FilterCriteria) {
	e.mu.Lock()
	e.criteria = c
	e.mu.Unlock()
	e.bus.Publish(models.EventConfigurationUpdate, c)
}

// ApplyCriteriaPatch applies a partial update; nil fields keep their value.
func (e *FilterEngine) ApplyCriteriaPatch(p models.CriteriaPatch) models.FilterCriteria {
	e.mu.Lock()
	p.ApplyTo(&e.criteria)
	updated := e.criteria
	e.mu.Unlock()
	e.bus.Publish(models.EventConfigurationUpdate, updated)
	return updated
}

// Stats summarizes the tracked symbol set.
func (e *FilterEngine) Stats() models.FilterStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := models.FilterStats{TotalSymbols: len(e.symbols)}
	var sum float64
	for _, fs := range e.symbols {
		if fs.Stage1Passed {
			st.Stage1Passed++
		}
		if fs.Stage2Passed {
			st.Stage2Passed++
		}
		if fs.Score > highConfidenceThreshold {
			st.HighConfidence++
		}
		sum += fs.Score
	}
	if st.TotalSymbols > 0 {
		st.AverageScore = sum / float64(st.TotalSymbols)
	}
	return st
}
