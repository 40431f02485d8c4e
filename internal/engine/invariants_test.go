package engine_test

import (
	"strings"
	"testing"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/engine"
)

func hasViolation(violations []domain.Violation, substr string) bool {
	for _, v := range violations {
		if strings.Contains(string(v), substr) {
			return true
		}
	}
	return false
}

func TestCheckInvariantsCleanStates(t *testing.T) {
	cfg := testConfig()

	t.Run("fresh slot", func(t *testing.T) {
		st := domain.NewPairState(0.10, 100)
		if v := engine.CheckInvariants(st, cfg); len(v) != 0 {
			t.Fatalf("violations on empty slot: %v", v)
		}
	})

	t.Run("bootstrapped S0", func(t *testing.T) {
		st, _ := engine.BootstrapOrders(domain.NewPairState(0.10, 100), cfg)
		if v := engine.CheckInvariants(st, cfg); len(v) != 0 {
			t.Fatalf("violations on S0: %v", v)
		}
	})
}

func TestCheckInvariantsFlagsDefects(t *testing.T) {
	cfg := testConfig()

	t.Run("duplicate local id", func(t *testing.T) {
		st := domain.NewPairState(0.10, 100)
		o := domain.OrderState{LocalID: 1, Side: domain.SideBuy, Role: domain.RoleEntry, Price: 0.1, Volume: 20, TradeID: domain.TradeB, Cycle: 1}
		st.Orders = []domain.OrderState{o, o}
		if v := engine.CheckInvariants(st, cfg); !hasViolation(v, "duplicate order local_id") {
			t.Fatalf("violations = %v", v)
		}
	})

	t.Run("duplicate txid across orders and recoveries", func(t *testing.T) {
		st := domain.NewPairState(0.10, 100)
		st.Orders = []domain.OrderState{{LocalID: 1, Side: domain.SideBuy, Role: domain.RoleEntry, Price: 0.1, Volume: 20, TradeID: domain.TradeB, Cycle: 1, Txid: "T"}}
		st.RecoveryOrders = []domain.RecoveryOrder{{RecoveryID: 1, Side: domain.SideSell, Price: 0.11, Volume: 20, TradeID: domain.TradeB, Cycle: 1, EntryPrice: 0.1, Txid: "T"}}
		v := engine.CheckInvariants(st, cfg)
		if !hasViolation(v, "duplicate exchange txid") {
			t.Fatalf("violations = %v", v)
		}
	})

	t.Run("S0 with extra entry", func(t *testing.T) {
		st := domain.NewPairState(0.10, 100)
		st.Orders = []domain.OrderState{
			{LocalID: 1, Side: domain.SideBuy, Role: domain.RoleEntry, Price: 0.1, Volume: 20, TradeID: domain.TradeB, Cycle: 1},
			{LocalID: 2, Side: domain.SideSell, Role: domain.RoleEntry, Price: 0.102, Volume: 20, TradeID: domain.TradeA, Cycle: 1},
			{LocalID: 3, Side: domain.SideSell, Role: domain.RoleEntry, Price: 0.103, Volume: 20, TradeID: domain.TradeA, Cycle: 1},
		}
		if v := engine.CheckInvariants(st, cfg); !hasViolation(v, "S0 must be exactly") {
			t.Fatalf("violations = %v", v)
		}
	})

	t.Run("s2 flag outside S2", func(t *testing.T) {
		st := domain.NewPairState(0.10, 100)
		ts := 90.0
		st.S2EnteredAt = &ts
		if v := engine.CheckInvariants(st, cfg); !hasViolation(v, "s2_entered_at") {
			t.Fatalf("violations = %v", v)
		}
	})

	t.Run("exit without entry price", func(t *testing.T) {
		st := domain.NewPairState(0.10, 100)
		st.Orders = []domain.OrderState{{LocalID: 1, Side: domain.SideSell, Role: domain.RoleExit, Price: 0.11, Volume: 20, TradeID: domain.TradeB, Cycle: 1}}
		if v := engine.CheckInvariants(st, cfg); !hasViolation(v, "entry_price") {
			t.Fatalf("violations = %v", v)
		}
	})

	t.Run("recovery cap exceeded", func(t *testing.T) {
		c := cfg
		c.MaxRecoveryOrders = 1
		st := domain.NewPairState(0.10, 100)
		st.RecoveryOrders = []domain.RecoveryOrder{
			{RecoveryID: 1, Side: domain.SideSell, Price: 0.11, Volume: 20, TradeID: domain.TradeB, Cycle: 1, EntryPrice: 0.1},
			{RecoveryID: 2, Side: domain.SideSell, Price: 0.12, Volume: 20, TradeID: domain.TradeB, Cycle: 1, EntryPrice: 0.1},
		}
		if v := engine.CheckInvariants(st, c); !hasViolation(v, "exceeds cap") {
			t.Fatalf("violations = %v", v)
		}
	})

	t.Run("inconsistent booked record", func(t *testing.T) {
		st := domain.NewPairState(0.10, 100)
		st.CompletedCycles = []domain.CycleRecord{{
			TradeID: domain.TradeB, Cycle: 1, GrossProfit: 1.0, Fees: 0.1, NetProfit: 0.5,
		}}
		if v := engine.CheckInvariants(st, cfg); !hasViolation(v, "net_profit inconsistent") {
			t.Fatalf("violations = %v", v)
		}
	})
}
