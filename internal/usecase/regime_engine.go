package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/services/stats"
	applogger "MarketPulse/pkg/logger"
)

const (
	regimeHistoryCapacity = 1000
	stabilityWindow       = 10
	stabilityThreshold    = 0.7
	confidenceStep        = 0.1
	regimeStaleAfter      = 5 * time.Minute
	defaultAnalysisPeriod = time.Minute
	maxRecordedErrors     = 100

	// per-symbol cutoffs
	extremeVolatilityCutoff = 0.02
	highCorrelationCutoff   = 0.7
	lowLiquidityCutoff      = 0.3
	strongMomentumCutoff    = 0.02
	bullishMeanCutoff       = 0.01

	// score shaping
	volatilityMeanScale    = 20.0
	volatilityStdDevWeight = 5.0
	momentumMeanScale      = 10.0
	extremeShareBonus      = 0.3
	highCorrShareBonus     = 0.2
	lowLiqSharePenalty     = 0.3
	strongMomShareBonus    = 0.2
)

// metricBundle aggregates one per-symbol series.
type metricBundle struct {
	mean   float64
	stdDev float64
	slope  float64
}

func bundle(values []float64) metricBundle {
	return metricBundle{
		mean:   stats.Mean(values),
		stdDev: stats.StdDev(values),
		slope:  stats.Slope(values),
	}
}

// RegimeEngine classifies the aggregate state of the symbol universe into one
// of five regimes with hysteresis against flapping. Exactly one current regime
// exists; accepted transitions archive the prior regime into a bounded
// history. Detection cycles never return an error to the caller: on failure
// the last known regime is returned and a diagnostic is recorded.
type RegimeEngine struct {
	analyzing atomic.Bool

	mu              sync.Mutex
	current         models.MarketRegime
	history         []models.MarketRegime
	analyses        map[string]models.RegimeAnalysis
	universeSize    int
	totalDetections int
	distribution    map[models.RegimeType]int
	confidenceSum   float64
	lastProcessing  time.Duration
	errs            []string

	timerMu sync.Mutex
	stopCh  chan struct{}

	provider repository.TickerProvider
	bus      *eventbus.Bus
	metrics  repository.Metrics
	logger   *applogger.Logger
	sub      eventbus.Subscription
	hasSub   bool

	// test seams
	now      func() time.Time
	interval time.Duration
}

// RegimeOption configures RegimeEngine.
type RegimeOption func(*RegimeEngine)

// WithAnalysisInterval overrides the continuous-analysis period (60s default).
func WithAnalysisInterval(d time.Duration) RegimeOption {
	return func(e *RegimeEngine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// NewRegimeEngine creates a regime engine seeded with a neutral RANGING
// regime. Call Start to attach the system-health listener.
func NewRegimeEngine(provider repository.TickerProvider, bus *eventbus.Bus, metrics repository.Metrics, logger *applogger.Logger, opts ...RegimeOption) *RegimeEngine {
	now := time.Now()
	e := &RegimeEngine{
		current: models.MarketRegime{
			Regime:             models.RegimeRanging,
			Confidence:         0.5,
			VolatilityLevel:    models.LevelLow,
			CorrelationRegime:  models.LevelLow,
			LiquidityCondition: models.LiquidityNormal,
			MomentumDirection:  models.MomentumNeutral,
			Timestamp:          now,
			Metadata:           models.RegimeMetadata{RegimeStability: 1, LastRegimeChange: now},
		},
		analyses:     make(map[string]models.RegimeAnalysis),
		distribution: make(map[models.RegimeType]int),
		provider:     provider,
		bus:          bus,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		interval:     defaultAnalysisPeriod,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes the engine to system-health updates so it can track the
// universe size between detection cycles.
func (e *RegimeEngine) Start() {
	e.sub = e.bus.Subscribe(models.EventSystemHealthUpdate, func(ev models.Event) {
		if h, ok := eventPayload[models.SystemHealth](ev); ok {
			e.mu.Lock()
			e.universeSize = h.UniverseSize
			e.mu.Unlock()
		}
	})
	e.hasSub = true
}

// Stop detaches the bus listener and halts continuous analysis.
func (e *RegimeEngine) Stop() {
	e.StopContinuousAnalysis()
	if e.hasSub {
		e.bus.Unsubscribe(e.sub)
		e.hasSub = false
	}
}

// DetectMarketRegime runs one detection cycle and returns the regime in force
// afterwards. If a cycle is already in flight the current regime is returned
// unchanged. Failures fetching the ticker snapshot are recorded and leave the
// state untouched.
func (e *RegimeEngine) DetectMarketRegime(ctx context.Context, symbols []string) models.MarketRegime {
	if !e.analyzing.CompareAndSwap(false, true) {
		return e.CurrentRegime()
	}
	defer e.analyzing.Store(false)
	start := e.now()

	tickers, err := e.provider.Snapshot(ctx, symbols)
	if err != nil {
		e.recordError(fmt.Errorf("ticker snapshot: %w", err))
		return e.CurrentRegime()
	}
	if len(tickers) == 0 {
		e.recordError(fmt.Errorf("ticker snapshot: no data for %d symbols", len(symbols)))
		return e.CurrentRegime()
	}

	analyses := buildAnalyses(tickers, e.now())
	candidate := e.classify(analyses)

	e.mu.Lock()
	for _, a := range analyses {
		e.analyses[a.Symbol] = a
	}
	e.universeSize = len(tickers)
	e.totalDetections++
	e.distribution[candidate.Regime]++
	e.confidenceSum += candidate.Confidence

	validated := e.applyHysteresisLocked(candidate)
	committed := e.shouldCommitLocked(validated)
	if committed {
		e.commitLocked(validated)
	}
	result := e.current
	e.lastProcessing = e.now().Sub(start)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordRegime(string(result.Regime), result.Confidence)
		e.metrics.RecordLatency("regime_detect", time.Since(start).Seconds())
	}
	if committed {
		e.bus.Publish(models.EventMarketRegimeUpdate, result)
		if e.logger != nil {
			e.logger.Info("market regime updated",
				applogger.String("regime", string(result.Regime)),
				applogger.Float64("confidence", result.Confidence),
			)
		}
	}
	return result
}

func buildAnalyses(tickers []models.Ticker, now time.Time) []models.RegimeAnalysis {
	out := make([]models.RegimeAnalysis, 0, len(tickers))
	for _, t := range tickers {
		liquidity := 0.0
		if t.Volume24h > 0 {
			liquidity = math.Log10(t.Volume24h) / 10
		}
		out = append(out, models.RegimeAnalysis{
			Symbol:     t.Symbol,
			Price:      t.Price,
			Volume:     t.Volume24h,
			Change24h:  t.Change24h,
			Volatility: math.Abs(t.Change24h) / 100,
			Momentum:   t.Change24h / 100,
			// pairwise correlation lives in the filtering engine's matrix;
			// this engine works with a fixed midpoint
			Correlation: 0.5,
			Liquidity:   liquidity,
			Timestamp:   now,
		})
	}
	return out
}

func (e *RegimeEngine) classify(analyses []models.RegimeAnalysis) models.MarketRegime {
	n := len(analyses)
	vol := make([]float64, n)
	corr := make([]float64, n)
	liq := make([]float64, n)
	mom := make([]float64, n)
	var extremeVol, highCorr, lowLiq, strongMom int
	for i, a := range analyses {
		vol[i], corr[i], liq[i], mom[i] = a.Volatility, a.Correlation, a.Liquidity, a.Momentum
		if a.Volatility > extremeVolatilityCutoff {
			extremeVol++
		}
		if a.Correlation > highCorrelationCutoff {
			highCorr++
		}
		if a.Liquidity < lowLiquidityCutoff {
			lowLiq++
		}
		if math.Abs(a.Momentum) > strongMomentumCutoff {
			strongMom++
		}
	}

	vb, cb, lb, mb := bundle(vol), bundle(corr), bundle(liq), bundle(mom)
	fn := float64(n)

	volatilityScore := stats.Clamp01(vb.mean*volatilityMeanScale - vb.stdDev*volatilityStdDevWeight + extremeShareBonus*float64(extremeVol)/fn)
	correlationScore := stats.Clamp01(cb.mean - cb.stdDev/2 + highCorrShareBonus*float64(highCorr)/fn)
	liquidityScore := stats.Clamp01(lb.mean - lb.stdDev/2 - lowLiqSharePenalty*float64(lowLiq)/fn)
	momentumScore := stats.Clamp01(math.Abs(mb.mean)*momentumMeanScale + strongMomShareBonus*float64(strongMom)/fn)

	var direction models.MomentumDirection
	switch {
	case mb.mean > bullishMeanCutoff:
		direction = models.MomentumBullish
	case mb.mean < -bullishMeanCutoff:
		direction = models.MomentumBearish
	default:
		direction = models.MomentumNeutral
	}

	regime, confidence := classifyScores(volatilityScore, correlationScore, liquidityScore, momentumScore)

	if e.logger != nil {
		e.logger.Debug("regime cycle scored",
			applogger.String("candidate", string(regime)),
			applogger.Float64("volatility_score", volatilityScore),
			applogger.Float64("momentum_slope", mb.slope),
			applogger.Float64("liquidity_slope", lb.slope),
		)
	}

	return models.MarketRegime{
		Regime:             regime,
		Confidence:         confidence,
		VolatilityLevel:    levelFor(volatilityScore),
		CorrelationRegime:  levelFor(correlationScore),
		LiquidityCondition: liquidityConditionFor(liquidityScore),
		MomentumDirection:  direction,
		Timestamp:          e.now(),
		Metadata: models.RegimeMetadata{
			VolatilityScore:  volatilityScore,
			CorrelationScore: correlationScore,
			LiquidityScore:   liquidityScore,
			MomentumScore:    momentumScore,
		},
	}
}

// classifyScores maps the four scores onto a regime label by priority.
func classifyScores(volatility, correlation, liquidity, momentum float64) (models.RegimeType, float64) {
	switch {
	case volatility > 0.8 && liquidity < 0.2:
		return models.RegimeCrisis, 0.9
	case volatility > 0.7:
		return models.RegimeVolatile, 0.8
	case correlation > 0.6 && momentum > 0.6:
		return models.RegimeTrending, 0.7
	case momentum > 0.7 && volatility > 0.5:
		return models.RegimeBreakout, 0.6
	default:
		return models.RegimeRanging, 0.5
	}
}

func levelFor(score float64) models.Level {
	switch {
	case score < 0.3:
		return models.LevelLow
	case score < 0.6:
		return models.LevelMedium
	case score < 0.8:
		return models.LevelHigh
	default:
		return models.LevelExtreme
	}
}

func liquidityConditionFor(score float64) models.LiquidityCondition {
	switch {
	case score >= 0.5:
		return models.LiquidityNormal
	case score >= 0.2:
		return models.LiquidityStressed
	default:
		return models.LiquidityCritical
	}
}

// applyHysteresisLocked gates a label change on improved confidence and the
// stability stored on the current regime at its last commit. The candidate is
// stamped with freshly recomputed stability either way. A rejected change
// keeps the current label but lets confidence move up to max(new, current*0.8).
func (e *RegimeEngine) applyHysteresisLocked(candidate models.MarketRegime) models.MarketRegime {
	candidate.Metadata.RegimeStability = e.stabilityLocked()
	candidate.Metadata.LastRegimeChange = e.current.Metadata.LastRegimeChange

	if candidate.Regime == e.current.Regime {
		return candidate
	}
	if candidate.Confidence > e.current.Confidence &&
		e.current.Metadata.RegimeStability > stabilityThreshold {
		return candidate
	}

	candidate.Regime = e.current.Regime
	candidate.Confidence = math.Max(candidate.Confidence, e.current.Confidence*0.8)
	return candidate
}

// stabilityLocked is 1 minus the fraction of label changes across the last 10
// archived regimes. An empty history counts as fully stable.
func (e *RegimeEngine) stabilityLocked() float64 {
	h := e.history
	if len(h) > stabilityWindow {
		h = h[len(h)-stabilityWindow:]
	}
	if len(h) < 2 {
		return 1
	}
	changes := 0
	for i := 1; i < len(h); i++ {
		if h[i].Regime != h[i-1].Regime {
			changes++
		}
	}
	return 1 - float64(changes)/float64(stabilityWindow)
}

func (e *RegimeEngine) shouldCommitLocked(validated models.MarketRegime) bool {
	if validated.Regime != e.current.Regime {
		return true
	}
	if validated.Confidence-e.current.Confidence > confidenceStep {
		return true
	}
	return e.now().Sub(e.current.Timestamp) > regimeStaleAfter
}

func (e *RegimeEngine) commitLocked(validated models.MarketRegime) {
	if len(e.history) >= regimeHistoryCapacity {
		e.history = append(e.history[1:], e.current)
	} else {
		e.history = append(e.history, e.current)
	}
	if validated.Regime != e.current.Regime {
		validated.Metadata.LastRegimeChange = e.now()
	}
	e.current = validated
}

func (e *RegimeEngine) recordError(err error) {
	if e.logger != nil {
		e.logger.Warn("regime detection failed", applogger.Error(err))
	}
	if e.metrics != nil {
		e.metrics.RecordError("regime_detect")
	}
	e.mu.Lock()
	if len(e.errs) >= maxRecordedErrors {
		e.errs = e.errs[1:]
	}
	e.errs = append(e.errs, err.Error())
	e.mu.Unlock()
}

// CurrentRegime returns the regime currently in force.
func (e *RegimeEngine) CurrentRegime() models.MarketRegime {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// RegimeConfidence returns the confidence of the current regime.
func (e *RegimeEngine) RegimeConfidence() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Confidence
}

// RegimeHistory returns up to limit archived regimes, most recent last.
// limit <= 0 returns the full history.
func (e *RegimeEngine) RegimeHistory(limit int) []models.MarketRegime {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]models.MarketRegime(nil), h...)
}

// SymbolAnalysis returns the latest per-symbol analysis from any cycle.
func (e *RegimeEngine) SymbolAnalysis(symbol string) (models.RegimeAnalysis, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.analyses[symbol]
	return a, ok
}

// Metrics returns a diagnostic snapshot of the engine.
func (e *RegimeEngine) Metrics() models.RegimeEngineMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := models.RegimeEngineMetrics{
		TotalDetections:    e.totalDetections,
		Distribution:       make(map[models.RegimeType]int, len(e.distribution)),
		Stability:          e.stabilityLocked(),
		LastProcessingTime: e.lastProcessing,
		UniverseSize:       e.universeSize,
		Errors:             append([]string(nil), e.errs...),
	}
	for k, v := range e.distribution {
		m.Distribution[k] = v
	}
	if e.totalDetections > 0 {
		m.AverageConfidence = e.confidenceSum / float64(e.totalDetections)
	}
	return m
}

// StartContinuousAnalysis begins re-running detection every interval (60s by
// default). Starting while already running replaces the prior timer.
func (e *RegimeEngine) StartContinuousAnalysis(ctx context.Context, symbols []string) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.stopCh != nil {
		close(e.stopCh)
	}
	stop := make(chan struct{})
	e.stopCh = stop

	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.DetectMarketRegime(ctx, symbols)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopContinuousAnalysis cancels the recurring detection. Idempotent.
func (e *RegimeEngine) StopContinuousAnalysis() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
}
