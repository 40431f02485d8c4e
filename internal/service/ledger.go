// Package service holds the host-side accounting around the decision core.
package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/sizing"
)

// Ledger tracks free and locked balances for one trading pair in exact
// decimal arithmetic. The host updates it from order placements and fills,
// then samples it once per tick as the consistent balance snapshot the
// layer sizer works from. Slot sizing must never read live balances
// mid-transition, so the snapshot is the only view the core ever sees.
type Ledger struct {
	mu sync.RWMutex

	freeBase    decimal.Decimal
	freeQuote   decimal.Decimal
	lockedBase  decimal.Decimal
	lockedQuote decimal.Decimal
}

// NewLedger starts a ledger with the given free balances.
func NewLedger(freeBase, freeQuote float64) *Ledger {
	return &Ledger{
		freeBase:  decimal.NewFromFloat(freeBase),
		freeQuote: decimal.NewFromFloat(freeQuote),
	}
}

// LockForOrder reserves the funds a new limit order consumes: base for a
// sell, quote (price × volume) for a buy. Returns false without mutating
// anything when free funds do not cover the reservation.
func (l *Ledger) LockForOrder(side domain.Side, price, volume float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if side == domain.SideSell {
		amount := decimal.NewFromFloat(volume)
		if l.freeBase.LessThan(amount) {
			return false
		}
		l.freeBase = l.freeBase.Sub(amount)
		l.lockedBase = l.lockedBase.Add(amount)
		return true
	}

	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(volume))
	if l.freeQuote.LessThan(cost) {
		return false
	}
	l.freeQuote = l.freeQuote.Sub(cost)
	l.lockedQuote = l.lockedQuote.Add(cost)
	return true
}

// ReleaseOrder returns a cancelled order's reservation to free funds.
func (l *Ledger) ReleaseOrder(side domain.Side, price, volume float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if side == domain.SideSell {
		amount := decimal.NewFromFloat(volume)
		l.lockedBase = l.lockedBase.Sub(amount)
		l.freeBase = l.freeBase.Add(amount)
		return
	}
	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(volume))
	l.lockedQuote = l.lockedQuote.Sub(cost)
	l.freeQuote = l.freeQuote.Add(cost)
}

// SettleFill converts one side's reservation into the other side's funds.
// Fees on sells settle in quote; fees on buys settle in base.
func (l *Ledger) SettleFill(side domain.Side, price, volume, fee float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := decimal.NewFromFloat(price)
	v := decimal.NewFromFloat(volume)
	f := decimal.NewFromFloat(fee)
	proceeds := p.Mul(v)

	if side == domain.SideSell {
		l.lockedBase = l.lockedBase.Sub(v)
		l.freeQuote = l.freeQuote.Add(proceeds).Sub(f)
		return
	}
	l.lockedQuote = l.lockedQuote.Sub(proceeds)
	feeInBase := decimal.Zero
	if !p.IsZero() {
		feeInBase = f.Div(p)
	}
	l.freeBase = l.freeBase.Add(v).Sub(feeInBase)
}

// Deposit credits free funds directly (simulation and bootstrap).
func (l *Ledger) Deposit(base, quote float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.freeBase = l.freeBase.Add(decimal.NewFromFloat(base))
	l.freeQuote = l.freeQuote.Add(decimal.NewFromFloat(quote))
}

// Snapshot returns the free balances as the sizer's per-tick view.
func (l *Ledger) Snapshot() sizing.BalanceSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	base, _ := l.freeBase.Float64()
	quote, _ := l.freeQuote.Float64()
	return sizing.BalanceSnapshot{FreeBase: base, FreeQuote: quote}
}

// Totals returns free and locked balances for reporting.
func (l *Ledger) Totals() (freeBase, freeQuote, lockedBase, lockedQuote float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	freeBase, _ = l.freeBase.Float64()
	freeQuote, _ = l.freeQuote.Float64()
	lockedBase, _ = l.lockedBase.Float64()
	lockedQuote, _ = l.lockedQuote.Float64()
	return freeBase, freeQuote, lockedBase, lockedQuote
}
