package domain

// EngineConfig is the immutable per-call configuration of the reducer.
// It crosses the wire contract, so every field carries a JSON tag and the
// zero value of an omitted field must be safe (DefaultEngineConfig fills
// the documented defaults).
type EngineConfig struct {
	EntryPct   float64 `json:"entry_pct" yaml:"entry_pct"`
	ProfitPct  float64 `json:"profit_pct" yaml:"profit_pct"`
	RefreshPct float64 `json:"refresh_pct" yaml:"refresh_pct"`

	// OrderSizeUSD is the notional for newly placed entries. The host
	// recomputes it each tick from the capital-layer sizer; already-open
	// orders are never resized.
	OrderSizeUSD float64 `json:"order_size_usd" yaml:"order_size_usd"`

	PriceDecimals  int     `json:"price_decimals" yaml:"price_decimals"`
	VolumeDecimals int     `json:"volume_decimals" yaml:"volume_decimals"`
	MinVolume      float64 `json:"min_volume" yaml:"min_volume"`
	MinCostUSD     float64 `json:"min_cost_usd" yaml:"min_cost_usd"`
	MakerFeePct    float64 `json:"maker_fee_pct" yaml:"maker_fee_pct"`

	// StalePriceMaxAgeSec is enforced by the host price feed, which
	// withholds ticks older than this from the reducer. The reducer
	// itself never reads it.
	StalePriceMaxAgeSec float64 `json:"stale_price_max_age_sec" yaml:"stale_price_max_age_sec"`

	// S1OrphanAfterSec <= 0 disables orphaning entirely (the sticky-slot
	// policy) while keeping the same action vocabulary.
	S1OrphanAfterSec float64 `json:"s1_orphan_after_sec" yaml:"s1_orphan_after_sec"`
	S2OrphanAfterSec float64 `json:"s2_orphan_after_sec" yaml:"s2_orphan_after_sec"`

	// RecoveryOffsetPct reprices an orphaned exit away from the market.
	RecoveryOffsetPct float64 `json:"recovery_offset_pct" yaml:"recovery_offset_pct"`
	MaxRecoveryOrders int     `json:"max_recovery_orders" yaml:"max_recovery_orders"`

	LossBackoffStart     int     `json:"loss_backoff_start" yaml:"loss_backoff_start"`
	LossCooldownStart    int     `json:"loss_cooldown_start" yaml:"loss_cooldown_start"`
	LossCooldownSec      float64 `json:"loss_cooldown_sec" yaml:"loss_cooldown_sec"`
	BackoffFactor        float64 `json:"backoff_factor" yaml:"backoff_factor"`
	BackoffMaxMultiplier float64 `json:"backoff_max_multiplier" yaml:"backoff_max_multiplier"`

	MaxConsecutiveRefreshes int     `json:"max_consecutive_refreshes" yaml:"max_consecutive_refreshes"`
	RefreshCooldownSec      float64 `json:"refresh_cooldown_sec" yaml:"refresh_cooldown_sec"`
}

// DefaultEngineConfig returns the locked v1 defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EntryPct:                0.2,
		ProfitPct:               1.0,
		RefreshPct:              1.0,
		OrderSizeUSD:            2.0,
		PriceDecimals:           6,
		VolumeDecimals:          0,
		MinVolume:               13.0,
		MinCostUSD:              0.0,
		MakerFeePct:             0.25,
		StalePriceMaxAgeSec:     60.0,
		S1OrphanAfterSec:        600.0,
		S2OrphanAfterSec:        1800.0,
		RecoveryOffsetPct:       0.5,
		MaxRecoveryOrders:       2,
		LossBackoffStart:        3,
		LossCooldownStart:       5,
		LossCooldownSec:         900.0,
		BackoffFactor:           0.5,
		BackoffMaxMultiplier:    5.0,
		MaxConsecutiveRefreshes: 3,
		RefreshCooldownSec:      300.0,
	}
}
