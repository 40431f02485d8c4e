package engine

import (
	"math"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

func roundPrice(price float64, cfg domain.EngineConfig) float64 {
	pow := math.Pow(10, float64(cfg.PriceDecimals))
	return math.Round(price*pow) / pow
}

func roundVolume(raw float64, cfg domain.EngineConfig) float64 {
	if cfg.VolumeDecimals <= 0 {
		return math.Round(raw)
	}
	pow := math.Pow(10, float64(cfg.VolumeDecimals))
	return math.Round(raw*pow) / pow
}

// entryPrices returns the standard (buy, sell) entry prices around the mark.
func entryPrices(marketPrice float64, cfg domain.EngineConfig) (buy, sell float64) {
	p := cfg.EntryPct / 100.0
	buy = roundPrice(marketPrice*(1-p), cfg)
	sell = roundPrice(marketPrice*(1+p), cfg)
	return buy, sell
}

// exitPrice is the paired exit for a filled entry: at least profitPct away
// from the fill, but never inside the current entry band around the mark.
func exitPrice(entryFill, marketPrice float64, side domain.Side, cfg domain.EngineConfig, profitPct float64) float64 {
	p := profitPct / 100.0
	e := cfg.EntryPct / 100.0
	if side == domain.SideSell {
		return roundPrice(math.Max(entryFill*(1+p), marketPrice*(1+e)), cfg)
	}
	return roundPrice(math.Min(entryFill*(1-p), marketPrice*(1-e)), cfg)
}

// EntryBackoffMultiplier widens the entry band after a loss streak.
func EntryBackoffMultiplier(lossCount int, cfg domain.EngineConfig) float64 {
	if lossCount < cfg.LossBackoffStart {
		return 1.0
	}
	mul := 1.0 + cfg.BackoffFactor*float64(lossCount-cfg.LossBackoffStart+1)
	return math.Min(cfg.BackoffMaxMultiplier, mul)
}

// ComputeOrderVolume converts a quote notional into a base volume, or
// returns false when the target size does not satisfy the exchange minimums.
// Sizes are never silently raised to a minimum: too small means wait.
func ComputeOrderVolume(price float64, cfg domain.EngineConfig, orderSizeUSD float64) (float64, bool) {
	if price <= 0 || orderSizeUSD <= 0 {
		return 0, false
	}
	if cfg.MinCostUSD > 0 && orderSizeUSD < cfg.MinCostUSD {
		return 0, false
	}
	vol := roundVolume(orderSizeUSD/price, cfg)
	if vol < cfg.MinVolume {
		return 0, false
	}
	if cfg.MinCostUSD > 0 && vol*price < cfg.MinCostUSD {
		return 0, false
	}
	return vol, true
}
