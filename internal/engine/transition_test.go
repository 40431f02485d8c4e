package engine_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/codec"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/engine"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

func testConfig() domain.EngineConfig {
	cfg := domain.DefaultEngineConfig()
	cfg.EntryPct = 0.2
	cfg.ProfitPct = 0.8
	cfg.OrderSizeUSD = 2.0
	cfg.PriceDecimals = 4
	cfg.VolumeDecimals = 0
	cfg.MinVolume = 1
	cfg.MinCostUSD = 0
	return cfg
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPriceTickUpdatesMarketOnly(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.10, 100)

	next, actions, diags := engine.Transition(st, event.PriceTick{Price: 0.11, Timestamp: 105}, cfg)

	if len(actions) != 0 {
		t.Fatalf("price tick emitted %d actions, want 0", len(actions))
	}
	if len(diags) != 0 {
		t.Fatalf("price tick emitted diagnostics: %v", diags)
	}
	if next.MarketPrice != 0.11 || next.Now != 105 {
		t.Errorf("market=%v now=%v, want 0.11/105", next.MarketPrice, next.Now)
	}
	if next.LastPriceUpdateAt == nil || *next.LastPriceUpdateAt != 105 {
		t.Errorf("last_price_update_at not recorded")
	}
	// Input must stay untouched.
	if st.MarketPrice != 0.10 {
		t.Errorf("input state mutated: market=%v", st.MarketPrice)
	}
}

func TestEntryFillPlacesExit(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.1005, 100)
	st.CurrentRegime = domain.RegimeRanging
	st.Orders = []domain.OrderState{{
		LocalID: 1, Side: domain.SideBuy, Role: domain.RoleEntry,
		Price: 0.1003, Volume: 20, TradeID: domain.TradeB, Cycle: 1,
		Status: domain.OrderStatusOpen, RegimeAtEntry: domain.RegimeRanging,
	}}
	st.NextOrderID = 2
	st.ProfitPctRuntime = 0.8

	fill := event.FillEvent{
		OrderLocalID: 1, Txid: "TX1", Side: domain.SideBuy,
		Price: 0.1000, Volume: 20, Fee: 0.005, Timestamp: 110,
	}
	next, actions, diags := engine.Transition(st, fill, cfg)

	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1 exit placement", len(actions))
	}
	place, ok := actions[0].(domain.PlaceOrderAction)
	if !ok {
		t.Fatalf("action is %T, want PlaceOrderAction", actions[0])
	}
	// Exit = max of fill*1.008 and market*1.002: 0.1008 vs 0.1007.
	if !approx(place.Price, 0.1008) {
		t.Errorf("exit price = %v, want 0.1008", place.Price)
	}
	if place.Side != domain.SideSell || place.Role != domain.RoleExit {
		t.Errorf("exit side/role = %s/%s", place.Side, place.Role)
	}
	if place.Reason != "entry_fill_exit" {
		t.Errorf("reason = %q", place.Reason)
	}

	exit := next.FindOrder(place.LocalID)
	if exit == nil {
		t.Fatalf("exit order %d not tracked", place.LocalID)
	}
	if exit.EntryPrice != 0.1000 || exit.EntryFee != 0.005 || exit.EntryFilledAt != 110 {
		t.Errorf("exit provenance = %+v", exit)
	}
	if exit.RegimeAtEntry != domain.RegimeRanging {
		t.Errorf("regime not inherited: %s", exit.RegimeAtEntry)
	}
	if !approx(next.TotalFees, 0.005) {
		t.Errorf("entry fee not booked: %v", next.TotalFees)
	}
	if domain.DerivePhase(next) != domain.PhaseS1b {
		t.Errorf("phase = %s, want S1b", domain.DerivePhase(next))
	}
}

func TestExitFillBooksCycleAndReseeds(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.1010, 100)
	st.Orders = []domain.OrderState{{
		LocalID: 2, Side: domain.SideSell, Role: domain.RoleExit,
		Price: 0.1008, Volume: 20, TradeID: domain.TradeB, Cycle: 1,
		Status: domain.OrderStatusOpen,
		EntryPrice: 0.1000, EntryFee: 0.005, EntryFilledAt: 110,
		RegimeAtEntry: domain.RegimeRanging,
	}}
	st.NextOrderID = 3

	fill := event.FillEvent{
		OrderLocalID: 2, Txid: "TX2", Side: domain.SideSell,
		Price: 0.1008, Volume: 20, Fee: 0.004, Timestamp: 200,
	}
	next, actions, _ := engine.Transition(st, fill, cfg)

	if len(actions) != 2 {
		t.Fatalf("got %d actions, want book + reseed", len(actions))
	}
	book, ok := actions[0].(domain.BookCycleAction)
	if !ok {
		t.Fatalf("first action is %T, want BookCycleAction", actions[0])
	}
	gross := (0.1008 - 0.1000) * 20
	if !approx(book.GrossProfit, gross) {
		t.Errorf("gross = %v, want %v", book.GrossProfit, gross)
	}
	if !approx(book.NetProfit, gross-0.005-0.004) {
		t.Errorf("net = %v", book.NetProfit)
	}
	if book.Lineage != domain.LineageNormal {
		t.Errorf("lineage = %s", book.Lineage)
	}

	reseed, ok := actions[1].(domain.PlaceOrderAction)
	if !ok {
		t.Fatalf("second action is %T, want PlaceOrderAction", actions[1])
	}
	if reseed.Side != domain.SideBuy || reseed.Reason != "cycle_complete" {
		t.Errorf("reseed = %+v", reseed)
	}
	if reseed.Cycle != 2 {
		t.Errorf("reseed cycle = %d, want 2", reseed.Cycle)
	}

	if next.CycleB != 2 {
		t.Errorf("cycle_b = %d, want 2", next.CycleB)
	}
	if len(next.CompletedCycles) != 1 {
		t.Fatalf("completed cycles = %d", len(next.CompletedCycles))
	}
	if next.CompletedCycles[0].RegimeAtEntry != domain.RegimeRanging {
		t.Errorf("cycle regime = %s", next.CompletedCycles[0].RegimeAtEntry)
	}
	if next.TotalRoundTrips != 1 {
		t.Errorf("round trips = %d", next.TotalRoundTrips)
	}
}

func TestLongOnlySkipsSellReseed(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.1010, 100)
	st.LongOnly = true
	st.LongOnlySource = domain.ModeSourceBalance
	st.Orders = []domain.OrderState{{
		LocalID: 2, Side: domain.SideBuy, Role: domain.RoleExit,
		Price: 0.1000, Volume: 20, TradeID: domain.TradeA, Cycle: 1,
		EntryPrice: 0.1010, EntryFee: 0.001, EntryFilledAt: 110,
	}}
	st.NextOrderID = 3

	fill := event.FillEvent{OrderLocalID: 2, Side: domain.SideBuy, Price: 0.1000, Volume: 20, Fee: 0.001, Timestamp: 200}
	_, actions, _ := engine.Transition(st, fill, cfg)

	// Book only; A-side reseed (a sell) is suppressed.
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want book only", len(actions))
	}
	if _, ok := actions[0].(domain.BookCycleAction); !ok {
		t.Fatalf("action is %T", actions[0])
	}
}

func TestUnknownFillAbsorbedWithDiagnostic(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.10, 100)

	next, actions, diags := engine.Transition(st, event.FillEvent{OrderLocalID: 99, Price: 0.1, Volume: 1, Timestamp: 110}, cfg)

	if len(actions) != 0 {
		t.Fatalf("unexpected actions: %v", actions)
	}
	if len(diags) != 1 || diags[0].Code != "unknown_order" {
		t.Fatalf("diagnostics = %v", diags)
	}
	if next.Now != 110 {
		t.Errorf("now = %v, want event timestamp", next.Now)
	}
}

func TestUnknownRecoveryAbsorbedWithDiagnostic(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.10, 100)

	for name, ev := range map[string]event.Event{
		"fill":   event.RecoveryFillEvent{RecoveryID: 7, Price: 0.1, Volume: 1, Timestamp: 110},
		"cancel": event.RecoveryCancelEvent{RecoveryID: 7, Timestamp: 110},
	} {
		t.Run(name, func(t *testing.T) {
			_, actions, diags := engine.Transition(st, ev, cfg)
			if len(actions) != 0 {
				t.Fatalf("unexpected actions: %v", actions)
			}
			if len(diags) != 1 || diags[0].Code != "unknown_recovery" {
				t.Fatalf("diagnostics = %v", diags)
			}
		})
	}
}

func TestS2TimerSetsFlagThenOrphansWorseLeg(t *testing.T) {
	cfg := testConfig()
	cfg.S2OrphanAfterSec = 100
	cfg.S1OrphanAfterSec = 0 // isolate the S2 path
	cfg.MaxRecoveryOrders = 5

	st := domain.NewPairState(0.1000, 1000)
	st.Orders = []domain.OrderState{
		{LocalID: 1, Side: domain.SideSell, Role: domain.RoleExit, Price: 0.1100, Volume: 20,
			TradeID: domain.TradeB, Cycle: 1, EntryPrice: 0.1000, EntryFilledAt: 500},
		{LocalID: 2, Side: domain.SideBuy, Role: domain.RoleExit, Price: 0.0990, Volume: 20,
			TradeID: domain.TradeA, Cycle: 1, EntryPrice: 0.1010, EntryFilledAt: 500},
	}
	st.NextOrderID = 3

	// First tick in S2 only records entry into the phase.
	next, actions, _ := engine.Transition(st, event.TimerTick{Timestamp: 1000}, cfg)
	if len(actions) != 0 {
		t.Fatalf("first S2 tick emitted actions: %v", actions)
	}
	if next.S2EnteredAt == nil || *next.S2EnteredAt != 1000 {
		t.Fatalf("s2_entered_at not set")
	}

	// After the window the leg further from the mark is orphaned:
	// sell at 0.1100 is 10% away, buy at 0.0990 only 1%.
	next, actions, _ = engine.Transition(next, event.TimerTick{Timestamp: 1200}, cfg)
	var orphan *domain.OrphanOrderAction
	for _, a := range actions {
		if o, ok := a.(domain.OrphanOrderAction); ok {
			orphan = &o
		}
	}
	if orphan == nil {
		t.Fatalf("no orphan action, got %v", actions)
	}
	if orphan.LocalID != 1 || orphan.Reason != "s2_timeout" {
		t.Errorf("orphaned %d (%s), want sell leg 1", orphan.LocalID, orphan.Reason)
	}
	if next.S2EnteredAt != nil {
		t.Errorf("s2_entered_at not cleared after orphan")
	}
	if len(next.RecoveryOrders) != 1 {
		t.Fatalf("recovery orders = %d", len(next.RecoveryOrders))
	}
}

func TestStickySlotNeverOrphans(t *testing.T) {
	cfg := testConfig()
	cfg.S1OrphanAfterSec = 0

	st := domain.NewPairState(0.0900, 100000)
	st.Orders = []domain.OrderState{{
		LocalID: 1, Side: domain.SideSell, Role: domain.RoleExit, Price: 0.1100, Volume: 20,
		TradeID: domain.TradeB, Cycle: 1, EntryPrice: 0.1000, EntryFilledAt: 1,
	}}
	st.NextOrderID = 2

	next, actions, _ := engine.Transition(st, event.TimerTick{Timestamp: 100000}, cfg)
	for _, a := range actions {
		if _, ok := a.(domain.OrphanOrderAction); ok {
			t.Fatalf("sticky slot orphaned an exit")
		}
	}
	if len(next.RecoveryOrders) != 0 {
		t.Errorf("recovery orders = %d", len(next.RecoveryOrders))
	}
}

func TestTransitionDeterministic(t *testing.T) {
	cfg := testConfig()
	events := []event.Event{
		event.PriceTick{Price: 0.1005, Timestamp: 100},
		event.TimerTick{Timestamp: 105},
		event.PriceTick{Price: 0.1020, Timestamp: 110},
		event.TimerTick{Timestamp: 115},
		event.FillEvent{OrderLocalID: 99, Price: 0.1, Volume: 1, Timestamp: 120},
		event.PriceTick{Price: 0.0990, Timestamp: 125},
		event.TimerTick{Timestamp: 130},
	}

	run := func() []byte {
		st, _ := engine.BootstrapOrders(domain.NewPairState(0.1000, 50), cfg)
		for _, ev := range events {
			st, _, _ = engine.Transition(st, ev, cfg)
		}
		doc, err := codec.EncodeState(st)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		return doc
	}

	first := run()
	for i := 0; i < 3; i++ {
		if got := run(); !bytes.Equal(first, got) {
			t.Fatalf("run %d diverged:\n%s\nvs\n%s", i, first, got)
		}
	}
}

func TestInvariantsHoldAcrossSequence(t *testing.T) {
	cfg := testConfig()
	st, actions := engine.BootstrapOrders(domain.NewPairState(0.1000, 50), cfg)
	if len(actions) != 2 {
		t.Fatalf("bootstrap placed %d orders", len(actions))
	}

	events := []event.Event{
		event.PriceTick{Price: 0.1003, Timestamp: 100},
		event.FillEvent{OrderLocalID: 1, Side: domain.SideBuy, Price: 0.0998, Volume: 20, Fee: 0.002, Timestamp: 105},
		event.TimerTick{Timestamp: 110},
		event.PriceTick{Price: 0.1010, Timestamp: 115},
		event.TimerTick{Timestamp: 120},
	}
	for _, ev := range events {
		st, _, _ = engine.Transition(st, ev, cfg)
		if v := engine.CheckInvariants(st, cfg); len(v) != 0 {
			t.Fatalf("violations after %T: %v", ev, v)
		}
	}
}

// The regime can shift between entry placement and entry fill. Provenance
// follows the fill: the exit carries the regime in effect when the entry
// filled, and the booked cycle inherits it.
func TestEntryFillStampsFillTimeRegime(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.1005, 100)
	st.CurrentRegime = domain.RegimeBullish
	st.Orders = []domain.OrderState{{
		LocalID: 1, Side: domain.SideBuy, Role: domain.RoleEntry,
		Price: 0.1003, Volume: 20, TradeID: domain.TradeB, Cycle: 1,
		Status: domain.OrderStatusOpen, RegimeAtEntry: domain.RegimeBullish,
	}}
	st.NextOrderID = 2
	st.ProfitPctRuntime = 0.8

	// Tape turns before the entry fills.
	st.CurrentRegime = domain.RegimeBearish

	next, _, diags := engine.Transition(st, event.FillEvent{
		OrderLocalID: 1, Txid: "TX1", Side: domain.SideBuy,
		Price: 0.1000, Volume: 20, Fee: 0.002, Timestamp: 110,
	}, cfg)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	exit := next.FindOrder(2)
	if exit == nil {
		t.Fatalf("exit not placed")
	}
	if exit.RegimeAtEntry != domain.RegimeBearish {
		t.Errorf("exit RegimeAtEntry = %s, want bearish (fill-time context)", exit.RegimeAtEntry)
	}

	// The booked record carries the same provenance.
	next, _, _ = engine.Transition(next, event.FillEvent{
		OrderLocalID: 2, Txid: "TX2", Side: domain.SideSell,
		Price: exit.Price, Volume: 20, Fee: 0.003, Timestamp: 160,
	}, cfg)
	if len(next.CompletedCycles) != 1 {
		t.Fatalf("got %d cycles, want 1", len(next.CompletedCycles))
	}
	if got := next.CompletedCycles[0].RegimeAtEntry; got != domain.RegimeBearish {
		t.Errorf("cycle RegimeAtEntry = %s, want bearish", got)
	}
}
