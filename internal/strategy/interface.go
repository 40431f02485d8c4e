package strategy

import (
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// RegimeSignal classifies the market regime from a price stream. The host
// feeds every observed price through the signal and stamps the returned
// regime onto slot state; the decision core only ever sees the label.
//
// Implementations are stateful and deterministic: the same price sequence
// always yields the same regime sequence.
type RegimeSignal interface {
	// OnPrice ingests one observed price and returns the current regime.
	// Returns RegimeUnknown until the signal has enough history.
	OnPrice(price float64) domain.Regime
}
