package engine

import (
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// newEntryOrder sizes and tracks a fresh entry order for one side. The entry
// band widens with the side's loss streak. Returns false when the current
// config cannot produce a valid volume; the slot then waits for better
// conditions instead of placing an undersized order.
func newEntryOrder(st *domain.PairState, cfg domain.EngineConfig, side domain.Side, tradeID domain.TradeID, cycle int, reason string) (domain.PlaceOrderAction, bool) {
	buyPrice, sellPrice := entryPrices(st.MarketPrice, cfg)

	var lossCount int
	if tradeID == domain.TradeA {
		lossCount = st.ConsecutiveLossesA
	} else {
		lossCount = st.ConsecutiveLossesB
	}
	band := (cfg.EntryPct * EntryBackoffMultiplier(lossCount, cfg)) / 100.0

	var price float64
	if side == domain.SideBuy {
		price = roundPrice(st.MarketPrice*(1-band), cfg)
	} else {
		price = roundPrice(st.MarketPrice*(1+band), cfg)
	}
	// Backoff rounding can collapse to zero on tiny prices.
	if price <= 0 {
		if side == domain.SideBuy {
			price = buyPrice
		} else {
			price = sellPrice
		}
	}

	vol, ok := ComputeOrderVolume(price, cfg, cfg.OrderSizeUSD)
	if !ok {
		return domain.PlaceOrderAction{}, false
	}

	localID := st.NextOrderID
	st.Orders = append(st.Orders, domain.OrderState{
		LocalID:       localID,
		Side:          side,
		Role:          domain.RoleEntry,
		Price:         price,
		Volume:        vol,
		TradeID:       tradeID,
		Cycle:         cycle,
		Status:        domain.OrderStatusPending,
		PlacedAt:      st.Now,
		RegimeAtEntry: st.CurrentRegime,
	})
	st.NextOrderID = localID + 1

	return domain.PlaceOrderAction{
		LocalID:  localID,
		Side:     side,
		Role:     domain.RoleEntry,
		Price:    price,
		Volume:   vol,
		TradeID:  tradeID,
		Cycle:    cycle,
		PostOnly: true,
		Reason:   reason,
	}, true
}

// placeFollowupEntry re-seeds one side's entry after a cycle completes or an
// exit is orphaned. Suppressed sides and sides in loss cooldown stay empty.
func placeFollowupEntry(st *domain.PairState, cfg domain.EngineConfig, tradeID domain.TradeID, reason string) []domain.Action {
	var actions []domain.Action

	if tradeID == domain.TradeA {
		if st.LongOnly || st.Now < st.CooldownUntilA {
			return actions
		}
		if act, ok := newEntryOrder(st, cfg, domain.SideSell, domain.TradeA, st.CycleA, reason); ok {
			actions = append(actions, act)
		}
	} else {
		if st.ShortOnly || st.Now < st.CooldownUntilB {
			return actions
		}
		if act, ok := newEntryOrder(st, cfg, domain.SideBuy, domain.TradeB, st.CycleB, reason); ok {
			actions = append(actions, act)
		}
	}
	return actions
}

// BootstrapOrders builds fresh entries for an empty slot. When only one side
// can be funded the slot degrades to a directional mode, recording that the
// suppression came from balance so automatic repair may later undo it.
func BootstrapOrders(state domain.PairState, cfg domain.EngineConfig) (domain.PairState, []domain.Action) {
	st := state.Clone()
	var actions []domain.Action

	buyAct, buyOK := newEntryOrder(&st, cfg, domain.SideBuy, domain.TradeB, st.CycleB, "bootstrap")
	if buyOK {
		actions = append(actions, buyAct)
	}
	sellAct, sellOK := newEntryOrder(&st, cfg, domain.SideSell, domain.TradeA, st.CycleA, "bootstrap")
	if sellOK {
		actions = append(actions, sellAct)
	}

	switch {
	case buyOK && !sellOK:
		st.LongOnly = true
		st.LongOnlySource = domain.ModeSourceBalance
		st.ShortOnly = false
		st.ShortOnlySource = domain.ModeSourceNone
	case sellOK && !buyOK:
		st.ShortOnly = true
		st.ShortOnlySource = domain.ModeSourceBalance
		st.LongOnly = false
		st.LongOnlySource = domain.ModeSourceNone
	default:
		st.LongOnly = false
		st.ShortOnly = false
		st.LongOnlySource = domain.ModeSourceNone
		st.ShortOnlySource = domain.ModeSourceNone
	}

	return st, actions
}

// AddEntryOrder is the public helper for host bootstrap and reseed paths.
func AddEntryOrder(state domain.PairState, cfg domain.EngineConfig, side domain.Side, tradeID domain.TradeID, cycle int, reason string) (domain.PairState, *domain.PlaceOrderAction) {
	st := state.Clone()
	act, ok := newEntryOrder(&st, cfg, side, tradeID, cycle, reason)
	if !ok {
		return st, nil
	}
	return st, &act
}
