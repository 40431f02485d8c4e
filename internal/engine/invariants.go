package engine

import (
	"fmt"
	"math"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// feeTolerance bounds float drift when cross-checking booked records.
const feeTolerance = 1e-9

// CheckInvariants validates one slot snapshot and returns every violation
// found in a single pass. It never fails fast: callers loading snapshots or
// running shadow comparisons need the full picture, not the first problem.
func CheckInvariants(state domain.PairState, cfg domain.EngineConfig) []domain.Violation {
	var violations []domain.Violation
	phase := domain.DerivePhase(state)

	var buyEntries, sellEntries, buyExits, sellExits, entries, exits int
	for _, o := range state.Orders {
		switch {
		case o.Role == domain.RoleEntry && o.Side == domain.SideBuy:
			buyEntries++
			entries++
		case o.Role == domain.RoleEntry && o.Side == domain.SideSell:
			sellEntries++
			entries++
		case o.Role == domain.RoleExit && o.Side == domain.SideBuy:
			buyExits++
			exits++
		case o.Role == domain.RoleExit && o.Side == domain.SideSell:
			sellExits++
			exits++
		}
	}

	seenIDs := make(map[int64]bool, len(state.Orders))
	for _, o := range state.Orders {
		if seenIDs[o.LocalID] {
			violations = append(violations, "duplicate order local_id")
			break
		}
		seenIDs[o.LocalID] = true
	}

	seenTxids := make(map[string]bool, len(state.Orders)+len(state.RecoveryOrders))
	dupTxid := false
	for _, o := range state.Orders {
		if o.Txid == "" {
			continue
		}
		if seenTxids[o.Txid] {
			dupTxid = true
		}
		seenTxids[o.Txid] = true
	}
	for _, r := range state.RecoveryOrders {
		if r.Txid == "" {
			continue
		}
		if seenTxids[r.Txid] {
			dupTxid = true
		}
		seenTxids[r.Txid] = true
	}
	if dupTxid {
		violations = append(violations, "duplicate exchange txid")
	}

	switch phase {
	case domain.PhaseS0:
		switch {
		case state.LongOnly:
			if buyEntries != 1 || sellEntries > 0 || exits > 0 {
				violations = append(violations, "S0 long_only must be exactly one buy entry")
			}
		case state.ShortOnly:
			if sellEntries != 1 || buyEntries > 0 || exits > 0 {
				violations = append(violations, "S0 short_only must be exactly one sell entry")
			}
		default:
			if buyEntries != 1 || sellEntries != 1 || exits > 0 {
				violations = append(violations, "S0 must be exactly A sell entry + B buy entry")
			}
		}
	case domain.PhaseS1a:
		if state.ShortOnly {
			if buyExits != 1 {
				violations = append(violations, "S1a short_only must have one buy exit")
			}
		} else if buyExits != 1 || buyEntries != 1 || sellEntries > 0 || sellExits > 0 {
			violations = append(violations, "S1a must be one buy exit + one buy entry")
		}
	case domain.PhaseS1b:
		if state.LongOnly {
			if sellExits != 1 {
				violations = append(violations, "S1b long_only must have one sell exit")
			}
		} else if sellExits != 1 || sellEntries != 1 || buyEntries > 0 || buyExits > 0 {
			violations = append(violations, "S1b must be one sell exit + one sell entry")
		}
	case domain.PhaseS2:
		if buyExits != 1 || sellExits != 1 || entries > 0 {
			violations = append(violations, "S2 must be one buy exit + one sell exit only")
		}
	}

	if phase != domain.PhaseS2 && state.S2EnteredAt != nil {
		violations = append(violations, "s2_entered_at must be null outside S2")
	}

	for _, o := range state.Orders {
		if o.Cycle < 1 {
			violations = append(violations, "order cycle must be >= 1")
		}
		if o.Role == domain.RoleExit && o.EntryPrice <= 0 {
			violations = append(violations, "exit must carry entry_price")
		}
		if o.Volume <= 0 {
			violations = append(violations, "order volume must be > 0")
		}
	}

	if state.CycleA < 1 || state.CycleB < 1 {
		violations = append(violations, "cycle counters must be >= 1")
	}

	if cfg.MaxRecoveryOrders > 0 && len(state.RecoveryOrders) > cfg.MaxRecoveryOrders {
		violations = append(violations, domain.Violation(
			fmt.Sprintf("recovery order count %d exceeds cap %d", len(state.RecoveryOrders), cfg.MaxRecoveryOrders)))
	}

	for _, c := range state.CompletedCycles {
		if c.EntryFee < 0 || c.ExitFee < 0 || c.Fees < 0 {
			violations = append(violations, "cycle record fees must be non-negative")
		}
		if math.Abs(c.NetProfit-(c.GrossProfit-c.Fees)) > feeTolerance {
			violations = append(violations, "cycle record net_profit inconsistent with gross minus fees")
		}
	}

	return violations
}
