package engine

import (
	"math"
	"sort"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// recoveryPrice adjusts an orphaned exit's limit wider from the market by
// the configured offset, preserving the eventual profit target while making
// room for a fresh exit on that side.
func recoveryPrice(order domain.OrderState, cfg domain.EngineConfig) float64 {
	off := cfg.RecoveryOffsetPct / 100.0
	if off <= 0 {
		return order.Price
	}
	var price float64
	if order.Side == domain.SideSell {
		price = roundPrice(order.Price*(1+off), cfg)
	} else {
		price = roundPrice(order.Price*(1-off), cfg)
	}
	if price <= 0 {
		return order.Price
	}
	return price
}

// recoveryDistance is the relative distance of a recovery's limit from the
// current mark, the primary eviction key.
func recoveryDistance(rec domain.RecoveryOrder, marketPrice float64) float64 {
	if marketPrice <= 0 {
		return math.Abs(rec.Price)
	}
	return math.Abs(rec.Price-marketPrice) / marketPrice
}

// evictionOrder sorts recovery indices into the deterministic eviction
// priority: furthest from market first, then oldest orphan, then lowest id.
// Replay depends on this total order being exact.
func evictionOrder(recs []domain.RecoveryOrder, marketPrice float64) []int {
	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := recs[idx[a]], recs[idx[b]]
		da, db := recoveryDistance(ra, marketPrice), recoveryDistance(rb, marketPrice)
		if da != db {
			return da > db
		}
		if ra.OrphanedAt != rb.OrphanedAt {
			return ra.OrphanedAt < rb.OrphanedAt
		}
		return ra.RecoveryID < rb.RecoveryID
	})
	return idx
}

// enforceRecoveryCap force-closes standing recoveries until one more can be
// admitted. The evicted order books at the current mark, accepting whatever
// gain or loss that realizes; inventory is never silently dropped.
func enforceRecoveryCap(st *domain.PairState, cfg domain.EngineConfig) []domain.Action {
	var actions []domain.Action
	if cfg.MaxRecoveryOrders <= 0 {
		return actions
	}
	for len(st.RecoveryOrders) >= cfg.MaxRecoveryOrders {
		order := evictionOrder(st.RecoveryOrders, st.MarketPrice)
		victim := st.RecoveryOrders[order[0]]

		st.RecoveryOrders = st.WithoutRecovery(victim.RecoveryID)
		actions = append(actions, domain.CancelOrderAction{
			RecoveryID: victim.RecoveryID,
			Txid:       victim.Txid,
			Reason:     "recovery_cap_evict_priority",
		})

		pseudo := domain.OrderState{
			LocalID:       -1,
			Side:          victim.Side,
			Role:          domain.RoleExit,
			Price:         victim.Price,
			Volume:        victim.Volume,
			TradeID:       victim.TradeID,
			Cycle:         victim.Cycle,
			EntryPrice:    victim.EntryPrice,
			EntryFee:      victim.EntryFee,
			EntryFilledAt: victim.EntryFilledAt,
			RegimeAtEntry: victim.RegimeAtEntry,
		}
		rec, bookAct := bookCycle(st, pseudo, st.MarketPrice, 0.0, st.Now, domain.LineageRecovery)
		updateLossCounters(st, victim.TradeID, rec.NetProfit, cfg)
		actions = append(actions, bookAct)
	}
	return actions
}

// orphanExit converts a stuck exit into a recovery order at an adjusted
// price, enforcing the per-slot cap first, then advances the orphaned
// side's cycle and re-seeds its entry.
func orphanExit(st *domain.PairState, cfg domain.EngineConfig, order domain.OrderState, reason string) []domain.Action {
	actions := enforceRecoveryCap(st, cfg)

	recoveryID := st.NextRecoveryID
	st.RecoveryOrders = append(st.RecoveryOrders, domain.RecoveryOrder{
		RecoveryID:    recoveryID,
		Side:          order.Side,
		Price:         recoveryPrice(order, cfg),
		Volume:        order.Volume,
		TradeID:       order.TradeID,
		Cycle:         order.Cycle,
		EntryPrice:    order.EntryPrice,
		EntryFee:      order.EntryFee,
		EntryFilledAt: order.EntryFilledAt,
		OrphanedAt:    st.Now,
		Txid:          order.Txid,
		Reason:        reason,
		RegimeAtEntry: order.RegimeAtEntry,
	})
	st.NextRecoveryID = recoveryID + 1
	st.Orders = st.WithoutOrder(order.LocalID)
	actions = append(actions, domain.OrphanOrderAction{
		LocalID:    order.LocalID,
		RecoveryID: recoveryID,
		Reason:     reason,
	})

	if order.TradeID == domain.TradeA {
		st.CycleA++
		actions = append(actions, placeFollowupEntry(st, cfg, domain.TradeA, "orphan_A")...)
	} else {
		st.CycleB++
		actions = append(actions, placeFollowupEntry(st, cfg, domain.TradeB, "orphan_B")...)
	}
	return actions
}
