// Package sizing converts free balances into the number of grid layers the
// engine is allowed to keep working. It is pure arithmetic; the host feeds it
// a balance snapshot once per tick and writes the result into the engine
// config before calling the reducer.
package sizing

import "math"

// BalanceSnapshot is the host's per-tick view of free funds.
type BalanceSnapshot struct {
	FreeBase  float64 // base currency available (not locked in open orders)
	FreeQuote float64 // quote currency available
}

// LayerInput carries everything EffectiveLayers needs besides balances.
type LayerInput struct {
	TargetLayers int     // operator-configured ceiling
	BasePerOrder float64 // base volume one grid order consumes
	Price        float64 // current mark price
	Buffer       float64 // safety multiplier >= 1, e.g. 1.05
	SellCount    int     // open sell-side entries a layer must back
	BuyCount     int     // open buy-side entries a layer must back
}

// EffectiveLayers returns how many layers the free balances can actually
// fund, clamped to [0, target]. Sell layers are backed by base, buy layers
// by quote; each divisor is floored at 1 so a one-sided book never divides
// by zero.
func EffectiveLayers(bal BalanceSnapshot, in LayerInput) int {
	if in.TargetLayers <= 0 {
		return 0
	}
	if in.BasePerOrder <= 0 || in.Price <= 0 {
		return 0
	}
	buffer := in.Buffer
	if buffer < 1 {
		buffer = 1
	}

	sells := in.SellCount
	if sells < 1 {
		sells = 1
	}
	buys := in.BuyCount
	if buys < 1 {
		buys = 1
	}

	maxFromBase := int(math.Floor(bal.FreeBase / (float64(sells) * in.BasePerOrder * buffer)))
	maxFromQuote := int(math.Floor(bal.FreeQuote / (float64(buys) * in.BasePerOrder * in.Price * buffer)))

	eff := in.TargetLayers
	if maxFromBase < eff {
		eff = maxFromBase
	}
	if maxFromQuote < eff {
		eff = maxFromQuote
	}
	if eff < 0 {
		eff = 0
	}
	return eff
}

// OrderSizeUSD returns the quote notional one grid order should target under
// the drip model: a fixed floor plus a per-layer increment.
func OrderSizeUSD(baseUSD, perLayerUSD float64, layers int) float64 {
	if layers < 0 {
		layers = 0
	}
	return baseUSD + perLayerUSD*float64(layers)
}
