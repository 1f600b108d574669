package models

import "time"

// RegimeType is the discrete classification of aggregate market state.
type RegimeType string

const (
	RegimeTrending RegimeType = "TRENDING"
	RegimeRanging  RegimeType = "RANGING"
	RegimeVolatile RegimeType = "VOLATILE"
	RegimeBreakout RegimeType = "BREAKOUT"
	RegimeCrisis   RegimeType = "CRISIS"
)

// Level is the four-step intensity label used for volatility and correlation.
type Level string

const (
	LevelLow     Level = "LOW"
	LevelMedium  Level = "MEDIUM"
	LevelHigh    Level = "HIGH"
	LevelExtreme Level = "EXTREME"
)

// LiquidityCondition grades aggregate liquidity.
type LiquidityCondition string

const (
	LiquidityNormal   LiquidityCondition = "NORMAL"
	LiquidityStressed LiquidityCondition = "STRESSED"
	LiquidityCritical LiquidityCondition = "CRITICAL"
)

// MomentumDirection labels the sign of aggregate momentum.
type MomentumDirection string

const (
	MomentumBullish MomentumDirection = "BULLISH"
	MomentumBearish MomentumDirection = "BEARISH"
	MomentumNeutral MomentumDirection = "NEUTRAL"
)

// RegimeMetadata carries the raw scores behind a classification plus the
// stability bookkeeping used by the hysteresis gate.
type RegimeMetadata struct {
	VolatilityScore  float64   `json:"volatilityScore"`
	CorrelationScore float64   `json:"correlationScore"`
	LiquidityScore   float64   `json:"liquidityScore"`
	MomentumScore    float64   `json:"momentumScore"`
	RegimeStability  float64   `json:"regimeStability"`
	LastRegimeChange time.Time `json:"lastRegimeChange"`
}

// MarketRegime is the full classification of the symbol universe at a point
// in time. Exactly one current instance exists; prior instances are archived
// into a bounded history on every accepted transition and never mutated.
type MarketRegime struct {
	Regime             RegimeType         `json:"regime"`
	Confidence         float64            `json:"confidence"`
	VolatilityLevel    Level              `json:"volatilityLevel"`
	CorrelationRegime  Level              `json:"correlationRegime"`
	LiquidityCondition LiquidityCondition `json:"liquidityCondition"`
	MomentumDirection  MomentumDirection  `json:"momentumDirection"`
	Timestamp          time.Time          `json:"timestamp"`
	Metadata           RegimeMetadata     `json:"metadata"`
}

// RegimeAnalysis is the transient per-symbol input to a detection cycle.
// Correlation is a fixed placeholder; real pairwise correlation is supplied
// externally through the filtering engine's matrix.
type RegimeAnalysis struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	Volume      float64   `json:"volume"`
	Change24h   float64   `json:"change24h"`
	Volatility  float64   `json:"volatility"`
	Momentum    float64   `json:"momentum"`
	Correlation float64   `json:"correlation"`
	Liquidity   float64   `json:"liquidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// RegimeEngineMetrics is the diagnostic view of the regime engine.
type RegimeEngineMetrics struct {
	TotalDetections    int                `json:"totalDetections"`
	Distribution       map[RegimeType]int `json:"distribution"`
	AverageConfidence  float64            `json:"averageConfidence"`
	Stability          float64            `json:"stability"`
	LastProcessingTime time.Duration      `json:"lastProcessingTime"`
	UniverseSize       int                `json:"universeSize"`
	Errors             []string           `json:"errors"`
}

// Ticker is the point-in-time snapshot the regime engine consumes per symbol.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume24h float64   `json:"volume24h"`
	Change24h float64   `json:"change24h"`
	Timestamp time.Time `json:"timestamp"`
}
