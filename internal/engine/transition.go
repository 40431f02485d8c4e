package engine

import (
	"fmt"
	"math"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

// Transition is the pure reducer: one event against one slot's state.
// It never reads a clock, performs I/O, or fails; time enters only through
// event timestamps, and malformed input produces a no-op plus a diagnostic.
// The caller owns persistence of the returned state and execution of the
// returned actions.
func Transition(state domain.PairState, ev event.Event, cfg domain.EngineConfig) (domain.PairState, []domain.Action, []domain.Diagnostic) {
	st := state.Clone()
	var actions []domain.Action
	var diags []domain.Diagnostic

	switch e := ev.(type) {
	case event.PriceTick:
		ts := e.Timestamp
		st.Now = ts
		st.MarketPrice = e.Price
		st.LastPriceUpdateAt = &ts
		return st, actions, diags

	case event.TimerTick:
		st.Now = e.Timestamp
		actions = handleTimerTick(&st, cfg)
		return st, actions, diags

	case event.FillEvent:
		st.Now = e.Timestamp
		order := st.FindOrder(e.OrderLocalID)
		if order == nil {
			diags = append(diags, domain.Diagnostic{
				Code:   "unknown_order",
				Detail: fmt.Sprintf("fill for untracked local_id %d", e.OrderLocalID),
			})
			return st, actions, diags
		}
		actions = handleFill(&st, cfg, *order, e)
		clearS2FlagIfNotS2(&st)
		return st, actions, diags

	case event.RecoveryFillEvent:
		st.Now = e.Timestamp
		rec := st.FindRecovery(e.RecoveryID)
		if rec == nil {
			diags = append(diags, domain.Diagnostic{
				Code:   "unknown_recovery",
				Detail: fmt.Sprintf("recovery fill for untracked recovery_id %d", e.RecoveryID),
			})
			return st, actions, diags
		}
		actions = handleRecoveryFill(&st, cfg, *rec, e)
		clearS2FlagIfNotS2(&st)
		return st, actions, diags

	case event.RecoveryCancelEvent:
		st.Now = e.Timestamp
		if st.FindRecovery(e.RecoveryID) == nil {
			diags = append(diags, domain.Diagnostic{
				Code:   "unknown_recovery",
				Detail: fmt.Sprintf("recovery cancel for untracked recovery_id %d", e.RecoveryID),
			})
			return st, actions, diags
		}
		st.RecoveryOrders = st.WithoutRecovery(e.RecoveryID)
		clearS2FlagIfNotS2(&st)
		return st, actions, diags

	default:
		diags = append(diags, domain.Diagnostic{
			Code:   "unknown_event",
			Detail: fmt.Sprintf("unhandled event %T", ev),
		})
		return st, actions, diags
	}
}

func clearS2FlagIfNotS2(st *domain.PairState) {
	if st.S2EnteredAt == nil {
		return
	}
	if domain.DerivePhase(*st) != domain.PhaseS2 {
		st.S2EnteredAt = nil
	}
}

// handleTimerTick runs the patience machinery: stuck-exit orphaning first,
// then the anti-chase entry refresh when nothing was orphaned this tick.
func handleTimerTick(st *domain.PairState, cfg domain.EngineConfig) []domain.Action {
	clearS2FlagIfNotS2(st)
	phase := domain.DerivePhase(*st)

	// Stale exit orphaning after a fixed timeout, only when the market has
	// moved away from the limit. Timeout <= 0 selects the sticky-slot
	// policy: the exit waits indefinitely.
	if (phase == domain.PhaseS1a || phase == domain.PhaseS1b) && cfg.S1OrphanAfterSec > 0 {
		for _, o := range st.Orders {
			if o.Role != domain.RoleExit {
				continue
			}
			ref := o.EntryFilledAt
			if ref == 0 {
				ref = o.PlacedAt
			}
			if ref == 0 {
				ref = st.Now
			}
			age := st.Now - ref
			movedAway := (o.Side == domain.SideSell && st.MarketPrice < o.Price) ||
				(o.Side == domain.SideBuy && st.MarketPrice > o.Price)
			if age >= cfg.S1OrphanAfterSec && movedAway {
				return orphanExit(st, cfg, o, "s1_timeout")
			}
			break
		}
	}

	if phase == domain.PhaseS2 {
		if st.S2EnteredAt == nil {
			now := st.Now
			st.S2EnteredAt = &now
			return nil
		}
		if st.Now-*st.S2EnteredAt >= cfg.S2OrphanAfterSec && cfg.S2OrphanAfterSec > 0 {
			if worse, ok := worseS2Leg(st); ok {
				actions := orphanExit(st, cfg, worse, "s2_timeout")
				st.S2EnteredAt = nil
				return actions
			}
		}
		return nil
	}

	return refreshStaleEntries(st, cfg)
}

// worseS2Leg picks the S2 exit further from the mark in relative terms.
func worseS2Leg(st *domain.PairState) (domain.OrderState, bool) {
	if st.MarketPrice <= 0 {
		return domain.OrderState{}, false
	}
	var buyExit, sellExit *domain.OrderState
	for i := range st.Orders {
		o := &st.Orders[i]
		if o.Role != domain.RoleExit {
			continue
		}
		if o.Side == domain.SideBuy && buyExit == nil {
			buyExit = o
		}
		if o.Side == domain.SideSell && sellExit == nil {
			sellExit = o
		}
	}
	if buyExit == nil || sellExit == nil {
		return domain.OrderState{}, false
	}
	buyDist := math.Abs(buyExit.Price-st.MarketPrice) / st.MarketPrice
	sellDist := math.Abs(sellExit.Price-st.MarketPrice) / st.MarketPrice
	if buyDist > sellDist {
		return *buyExit, true
	}
	return *sellExit, true
}

func handleFill(st *domain.PairState, cfg domain.EngineConfig, order domain.OrderState, e event.FillEvent) []domain.Action {
	var actions []domain.Action
	st.Orders = st.WithoutOrder(order.LocalID)

	if order.Role == domain.RoleEntry {
		// Entry fee books immediately; the rest waits for the exit.
		st.TotalFees += e.Fee

		// Provenance comes from the regime in effect when the entry
		// fills; any label carried since placement is superseded here.
		regime := st.CurrentRegime
		if regime == "" {
			regime = domain.RegimeUnknown
		}
		profitPct := st.ProfitPctRuntime
		if profitPct == 0 {
			profitPct = cfg.ProfitPct
		}

		exitSide := order.Side.Opposite()
		exitLocal := st.NextOrderID
		exitOrder := domain.OrderState{
			LocalID:       exitLocal,
			Side:          exitSide,
			Role:          domain.RoleExit,
			Price:         exitPrice(e.Price, st.MarketPrice, exitSide, cfg, profitPct),
			Volume:        e.Volume,
			TradeID:       order.TradeID,
			Cycle:         order.Cycle,
			Status:        domain.OrderStatusPending,
			PlacedAt:      e.Timestamp,
			EntryPrice:    e.Price,
			EntryFee:      e.Fee,
			EntryFilledAt: e.Timestamp,
			RegimeAtEntry: regime,
		}
		st.Orders = append(st.Orders, exitOrder)
		st.NextOrderID = exitLocal + 1
		actions = append(actions, domain.PlaceOrderAction{
			LocalID:  exitLocal,
			Side:     exitSide,
			Role:     domain.RoleExit,
			Price:    exitOrder.Price,
			Volume:   exitOrder.Volume,
			TradeID:  exitOrder.TradeID,
			Cycle:    exitOrder.Cycle,
			PostOnly: true,
			Reason:   "entry_fill_exit",
		})
		return actions
	}

	// Exit filled: complete the cycle, advance the side, re-seed its entry.
	rec, bookAct := bookCycle(st, order, e.Price, e.Fee, e.Timestamp, domain.LineageNormal)
	updateLossCounters(st, order.TradeID, rec.NetProfit, cfg)
	actions = append(actions, bookAct)

	if order.TradeID == domain.TradeA {
		if order.Cycle+1 > st.CycleA {
			st.CycleA = order.Cycle + 1
		}
	} else {
		if order.Cycle+1 > st.CycleB {
			st.CycleB = order.Cycle + 1
		}
	}
	actions = append(actions, placeFollowupEntry(st, cfg, order.TradeID, "cycle_complete")...)
	return actions
}

func handleRecoveryFill(st *domain.PairState, cfg domain.EngineConfig, rec domain.RecoveryOrder, e event.RecoveryFillEvent) []domain.Action {
	st.RecoveryOrders = st.WithoutRecovery(rec.RecoveryID)

	pseudo := domain.OrderState{
		LocalID:       -1,
		Side:          rec.Side,
		Role:          domain.RoleExit,
		Price:         rec.Price,
		Volume:        rec.Volume,
		TradeID:       rec.TradeID,
		Cycle:         rec.Cycle,
		EntryPrice:    rec.EntryPrice,
		EntryFee:      rec.EntryFee,
		EntryFilledAt: rec.EntryFilledAt,
		RegimeAtEntry: rec.RegimeAtEntry,
	}
	cycleRec, bookAct := bookCycle(st, pseudo, e.Price, e.Fee, e.Timestamp, domain.LineageRecovery)
	updateLossCounters(st, rec.TradeID, cycleRec.NetProfit, cfg)
	return []domain.Action{bookAct}
}
