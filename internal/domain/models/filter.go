package models

import "time"

// FilterCriteria configures the three-stage funnel. Weights feed the stage-3
// composite score; they are kept non-negative and usually sum to 1, but
// regime reweighting adjusts only two of them, so the sum can drift (see
// NormalizedWeights).
type FilterCriteria struct {
	// Stage 1: universe screening.
	MinVolume     float64 `yaml:"min_volume" default:"1000000"`
	MaxSpread     float64 `yaml:"max_spread" default:"0.5"`
	MinMarketCap  float64 `yaml:"min_market_cap" default:"0"`
	TradingStatus string  `yaml:"trading_status" default:"TRADING"`

	// Stage 2: volatility and momentum gate.
	MinATR               float64 `yaml:"min_atr" default:"0.002"`
	MinPriceVelocity     float64 `yaml:"min_price_velocity" default:"0.0001"`
	VolumeSurgeThreshold float64 `yaml:"volume_surge_threshold" default:"1.5"`
	BreakoutProximity    float64 `yaml:"breakout_proximity" default:"0.03"`

	// Stage 3: composite score weights.
	VolatilityWeight float64 `yaml:"volatility_weight" default:"0.25"`
	MomentumWeight   float64 `yaml:"momentum_weight" default:"0.30"`
	VolumeWeight     float64 `yaml:"volume_weight" default:"0.25"`
	BreakoutWeight   float64 `yaml:"breakout_weight" default:"0.20"`
}

// NormalizedWeights returns the four weights scaled to sum to 1. The engine
// scores with the raw weights for source compatibility; this is for callers
// that need the normalized view.
func (c FilterCriteria) NormalizedWeights() (volatility, momentum, volume, breakout float64) {
	sum := c.VolatilityWeight + c.MomentumWeight + c.VolumeWeight + c.BreakoutWeight
	if sum <= 0 {
		return 0, 0, 0, 0
	}
	return c.VolatilityWeight / sum, c.MomentumWeight / sum, c.VolumeWeight / sum, c.BreakoutWeight / sum
}

// SymbolMetrics is the raw metric snapshot a FilteredSymbol was evaluated on.
type SymbolMetrics struct {
	Volume24h         float64  `json:"volume24h"`
	Spread            *float64 `json:"spread,omitempty"`
	MarketCap         *float64 `json:"marketCap,omitempty"`
	ATR               float64  `json:"atr"`
	PriceVelocity     float64  `json:"priceVelocity"`
	VolumeSurge       float64  `json:"volumeSurge"`
	BreakoutProximity float64  `json:"breakoutProximity"`
}

// FilteredSymbol is the most-recent evaluation of one symbol. Overwritten on
// every tick for that symbol; only the latest evaluation is retained.
type FilteredSymbol struct {
	Symbol       string        `json:"symbol"`
	Score        float64       `json:"score"`
	Stage1Passed bool          `json:"stage1Passed"`
	Stage2Passed bool          `json:"stage2Passed"`
	Metrics      SymbolMetrics `json:"metrics"`
	Timestamp    time.Time     `json:"timestamp"`
}

// FilterStats summarizes the currently tracked symbol set.
type FilterStats struct {
	TotalSymbols   int     `json:"totalSymbols"`
	Stage1Passed   int     `json:"stage1Passed"`
	Stage2Passed   int     `json:"stage2Passed"`
	HighConfidence int     `json:"highConfidence"`
	AverageScore   float64 `json:"averageScore"`
}
