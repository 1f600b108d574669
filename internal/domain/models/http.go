package models

// CriteriaPatch is a partial FilterCriteria update; nil fields keep their
// current value. Weights must be non-negative.
type CriteriaPatch struct {
	MinVolume     *float64 `json:"minVolume,omitempty" validate:"omitempty,gte=0"`
	MaxSpread     *float64 `json:"maxSpread,omitempty" validate:"omitempty,gte=0"`
	MinMarketCap  *float64 `json:"minMarketCap,omitempty" validate:"omitempty,gte=0"`
	TradingStatus *string  `json:"tradingStatus,omitempty"`

	MinATR               *float64 `json:"minAtr,omitempty" validate:"omitempty,gte=0"`
	MinPriceVelocity     *float64 `json:"minPriceVelocity,omitempty" validate:"omitempty,gte=0"`
	VolumeSurgeThreshold *float64 `json:"volumeSurgeThreshold,omitempty" validate:"omitempty,gte=0"`
	BreakoutProximity    *float64 `json:"breakoutProximity,omitempty" validate:"omitempty,gte=0"`

	VolatilityWeight *float64 `json:"volatilityWeight,omitempty" validate:"omitempty,gte=0"`
	MomentumWeight   *float64 `json:"momentumWeight,omitempty" validate:"omitempty,gte=0"`
	VolumeWeight     *float64 `json:"volumeWeight,omitempty" validate:"omitempty,gte=0"`
	BreakoutWeight   *float64 `json:"breakoutWeight,omitempty" validate:"omitempty,gte=0"`
}

// ApplyTo copies the set fields onto c.
func (p CriteriaPatch) ApplyTo(c *FilterCriteria) {
	if p.MinVolume != nil {
		c.MinVolume = *p.MinVolume
	}
	if p.MaxSpread != nil {
		c.MaxSpread = *p.MaxSpread
	}
	if p.MinMarketCap != nil {
		c.MinMarketCap = *p.MinMarketCap
	}
	if p.TradingStatus != nil {
		c.TradingStatus = *p.TradingStatus
	}
	if p.MinATR != nil {
		c.MinATR = *p.MinATR
	}
	if p.MinPriceVelocity != nil {
		c.MinPriceVelocity = *p.MinPriceVelocity
	}
	if p.VolumeSurgeThreshold != nil {
		c.VolumeSurgeThreshold = *p.VolumeSurgeThreshold
	}
	if p.BreakoutProximity != nil {
		c.BreakoutProximity = *p.BreakoutProximity
	}
	if p.VolatilityWeight != nil {
		c.VolatilityWeight = *p.VolatilityWeight
	}
	if p.MomentumWeight != nil {
		c.MomentumWeight = *p.MomentumWeight
	}
	if p.VolumeWeight != nil {
		c.VolumeWeight = *p.VolumeWeight
	}
	if p.BreakoutWeight != nil {
		c.BreakoutWeight = *p.BreakoutWeight
	}
}

// TopSymbolsRequest is the query contract of GET /api/symbols/top.
type TopSymbolsRequest struct {
	Limit int `query:"limit" default:"5" validate:"gte=1,lte=50"`
}

// EventsRequest is the query contract of GET /api/events.
type EventsRequest struct {
	Type  string `query:"type" validate:"omitempty,max=64"`
	Limit int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// RegimeHistoryRequest is the query contract of GET /api/regime/history.
type RegimeHistoryRequest struct {
	Limit int `query:"limit" default:"20" validate:"gte=1,lte=1000"`
}
