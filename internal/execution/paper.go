// Package execution simulates the exchange side of the action contract.
// PaperExecution accepts the reducer's order actions, holds the resulting
// limit orders, and converts price movement into fill events the host feeds
// back into the reducer.
package execution

import (
	"fmt"
	"sort"
	"sync"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

type paperOrder struct {
	localID int64
	txid    string
	side    domain.Side
	price   float64
	volume  float64
}

type paperRecovery struct {
	recoveryID int64
	txid       string
	side       domain.Side
	price      float64
	volume     float64
}

// PaperExecution is a deterministic in-memory exchange. Orders fill when
// the simulated price touches their limit; fees accrue at a flat maker
// rate on the filled notional.
type PaperExecution struct {
	mu         sync.Mutex
	feePct     float64
	price      float64
	open       map[int64]*paperOrder
	recoveries map[int64]*paperRecovery
	nextTxid   int64
	fills      []event.Event
}

// NewPaperExecution creates a simulated exchange charging feePct per fill.
func NewPaperExecution(feePct float64) *PaperExecution {
	return &PaperExecution{
		feePct:     feePct,
		open:       make(map[int64]*paperOrder),
		recoveries: make(map[int64]*paperRecovery),
		nextTxid:   1,
	}
}

// Place accepts a PlaceOrderAction and returns the simulated exchange txid.
func (p *PaperExecution) Place(act domain.PlaceOrderAction) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	txid := p.newTxidLocked()
	p.open[act.LocalID] = &paperOrder{
		localID: act.LocalID,
		txid:    txid,
		side:    act.Side,
		price:   act.Price,
		volume:  act.Volume,
	}
	return txid
}

// PlaceRecovery registers a recovery order produced by an orphan
// conversion. The original exit's txid carries over when present.
func (p *PaperExecution) PlaceRecovery(rec domain.RecoveryOrder) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	txid := rec.Txid
	if txid == "" {
		txid = p.newTxidLocked()
	}
	p.recoveries[rec.RecoveryID] = &paperRecovery{
		recoveryID: rec.RecoveryID,
		txid:       txid,
		side:       rec.Side,
		price:      rec.Price,
		volume:     rec.Volume,
	}
	return txid
}

// Cancel removes a working order. Unknown ids are a no-op, matching how a
// real exchange treats already-gone orders on cancel.
func (p *PaperExecution) Cancel(localID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.open, localID)
}

// CancelRecovery removes a standing recovery order.
func (p *PaperExecution) CancelRecovery(recoveryID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.recoveries, recoveryID)
}

// UpdatePrice moves the simulated market and returns the fill events the
// move produced, in ascending id order for determinism.
func (p *PaperExecution) UpdatePrice(price, timestamp float64) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.price = price
	var fills []event.Event

	for _, id := range sortedOrderIDs(p.open) {
		o := p.open[id]
		if !crossed(o.side, o.price, price) {
			continue
		}
		delete(p.open, id)
		fills = append(fills, event.FillEvent{
			OrderLocalID: o.localID,
			Txid:         o.txid,
			Side:         o.side,
			Price:        o.price,
			Volume:       o.volume,
			Fee:          p.fee(o.price, o.volume),
			Timestamp:    timestamp,
		})
	}
	for _, id := range sortedRecoveryIDs(p.recoveries) {
		r := p.recoveries[id]
		if !crossed(r.side, r.price, price) {
			continue
		}
		delete(p.recoveries, id)
		fills = append(fills, event.RecoveryFillEvent{
			RecoveryID: r.recoveryID,
			Txid:       r.txid,
			Side:       r.side,
			Price:      r.price,
			Volume:     r.volume,
			Fee:        p.fee(r.price, r.volume),
			Timestamp:  timestamp,
		})
	}

	p.fills = append(p.fills, fills...)
	return fills
}

// OpenCounts returns the number of working sell and buy orders.
func (p *PaperExecution) OpenCounts() (sells, buys int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range p.open {
		if o.side == domain.SideSell {
			sells++
		} else {
			buys++
		}
	}
	return sells, buys
}

// Fills returns every fill emitted so far.
func (p *PaperExecution) Fills() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Event(nil), p.fills...)
}

func (p *PaperExecution) fee(price, volume float64) float64 {
	return price * volume * p.feePct / 100.0
}

func (p *PaperExecution) newTxidLocked() string {
	txid := fmt.Sprintf("PAPER-%06d", p.nextTxid)
	p.nextTxid++
	return txid
}

// crossed reports whether a limit order fills at the given market price.
func crossed(side domain.Side, limit, price float64) bool {
	if side == domain.SideBuy {
		return price <= limit
	}
	return price >= limit
}

func sortedOrderIDs(m map[int64]*paperOrder) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sortInt64s(ids)
	return ids
}

func sortedRecoveryIDs(m map[int64]*paperRecovery) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sortInt64s(ids)
	return ids
}

func sortInt64s(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
