package engine

import (
	"math"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

const (
	refreshDirUp   = "up"
	refreshDirDown = "down"
)

// refreshStaleEntries cancels and re-places at most one entry per tick whose
// price has drifted beyond the refresh band. Consecutive refreshes chasing
// the market in one direction are capped; hitting the cap arms a cooldown
// instead of placing, so a trending market cannot drag entries indefinitely.
func refreshStaleEntries(st *domain.PairState, cfg domain.EngineConfig) []domain.Action {
	var actions []domain.Action
	if st.MarketPrice <= 0 {
		return actions
	}

	for _, o := range st.Orders {
		if o.Role != domain.RoleEntry {
			continue
		}
		drift := math.Abs(o.Price-st.MarketPrice) / st.MarketPrice * 100.0
		if drift <= cfg.RefreshPct {
			continue
		}

		isA := o.TradeID == domain.TradeA
		cooldownUntil := st.RefreshCooldownUntilB
		if isA {
			cooldownUntil = st.RefreshCooldownUntilA
		}
		if st.Now < cooldownUntil {
			continue
		}

		// Cooldown expired with the counter still at the cap: reset so
		// this refresh counts as the first of a new run.
		prevCount := st.ConsecutiveRefreshesB
		if isA {
			prevCount = st.ConsecutiveRefreshesA
		}
		if prevCount >= cfg.MaxConsecutiveRefreshes && cooldownUntil > 0 {
			if isA {
				st.ConsecutiveRefreshesA = 0
				st.RefreshCooldownUntilA = 0
			} else {
				st.ConsecutiveRefreshesB = 0
				st.RefreshCooldownUntilB = 0
			}
		}

		var direction string
		if o.Side == domain.SideBuy {
			direction = refreshDirUp
			if st.MarketPrice < o.Price {
				direction = refreshDirDown
			}
		} else {
			direction = refreshDirDown
			if st.MarketPrice > o.Price {
				direction = refreshDirUp
			}
		}

		prevDir := st.LastRefreshDirectionB
		prevCount = st.ConsecutiveRefreshesB
		if isA {
			prevDir = st.LastRefreshDirectionA
			prevCount = st.ConsecutiveRefreshesA
		}
		count := 1
		if direction == prevDir {
			count = prevCount + 1
		}

		if count >= cfg.MaxConsecutiveRefreshes {
			if isA {
				st.ConsecutiveRefreshesA = count
				st.LastRefreshDirectionA = direction
				st.RefreshCooldownUntilA = st.Now + cfg.RefreshCooldownSec
			} else {
				st.ConsecutiveRefreshesB = count
				st.LastRefreshDirectionB = direction
				st.RefreshCooldownUntilB = st.Now + cfg.RefreshCooldownSec
			}
			break
		}

		st.Orders = st.WithoutOrder(o.LocalID)
		actions = append(actions, domain.CancelOrderAction{
			LocalID: o.LocalID,
			Txid:    o.Txid,
			Reason:  "stale_entry",
		})
		if act, ok := newEntryOrder(st, cfg, o.Side, o.TradeID, o.Cycle, "refresh_entry"); ok {
			actions = append(actions, act)
		}

		if isA {
			st.ConsecutiveRefreshesA = count
			st.LastRefreshDirectionA = direction
		} else {
			st.ConsecutiveRefreshesB = count
			st.LastRefreshDirectionB = direction
		}
		break
	}
	return actions
}
