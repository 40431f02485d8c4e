package codec_test

import (
	"testing"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/codec"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

func TestDecodeEventInfersUntaggedTypes(t *testing.T) {
	price := 0.1
	vol := 20.0
	oid := int64(4)
	rid := int64(2)

	cases := []struct {
		name string
		wire codec.WireEvent
		want event.Type
	}{
		{"price only", codec.WireEvent{Price: &price, Timestamp: 10}, event.TypePriceTick},
		{"bare timestamp", codec.WireEvent{Timestamp: 10}, event.TypeTimerTick},
		{"order fill fields", codec.WireEvent{OrderLocalID: &oid, Price: &price, Volume: &vol, Timestamp: 10}, event.TypeFill},
		{"recovery with volume", codec.WireEvent{RecoveryID: &rid, Price: &price, Volume: &vol, Timestamp: 10}, event.TypeRecoveryFill},
		{"recovery without volume", codec.WireEvent{RecoveryID: &rid, Timestamp: 10}, event.TypeRecoveryCancel},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev, err := codec.DecodeEvent(c.wire)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev.Type() != c.want {
				t.Errorf("inferred %s, want %s", ev.Type(), c.want)
			}
		})
	}
}

func TestEventWireRoundTrip(t *testing.T) {
	events := []event.Event{
		event.PriceTick{Price: 0.1005, Timestamp: 100},
		event.TimerTick{Timestamp: 101},
		event.FillEvent{OrderLocalID: 3, Txid: "TX", Side: domain.SideBuy, Price: 0.1, Volume: 20, Fee: 0.002, Timestamp: 102},
		event.RecoveryFillEvent{RecoveryID: 2, Txid: "TR", Side: domain.SideSell, Price: 0.102, Volume: 15, Fee: 0.001, Timestamp: 103},
		event.RecoveryCancelEvent{RecoveryID: 2, Txid: "TR", Timestamp: 104},
	}
	for _, ev := range events {
		got, err := codec.DecodeEvent(codec.EncodeEvent(ev))
		if err != nil {
			t.Fatalf("%s: %v", ev.Type(), err)
		}
		if got != ev {
			t.Errorf("%s: round trip changed event:\n%+v\n%+v", ev.Type(), ev, got)
		}
	}
}

func TestDecodeActionInfersUntaggedKinds(t *testing.T) {
	id := int64(5)
	rid := int64(2)
	price := 0.1
	vol := 20.0
	net := 0.01

	cases := []struct {
		name string
		wire codec.WireAction
		want domain.ActionKind
	}{
		{"profit fields", codec.WireAction{TradeID: "B", NetProfit: &net}, domain.ActionKindBookCycle},
		{"both ids", codec.WireAction{LocalID: &id, RecoveryID: &rid}, domain.ActionKindOrphanOrder},
		{"price and volume", codec.WireAction{LocalID: &id, Side: "buy", Role: "entry", Price: &price, Volume: &vol}, domain.ActionKindPlaceOrder},
		{"bare local id", codec.WireAction{LocalID: &id}, domain.ActionKindCancelOrder},
		{"bare recovery id", codec.WireAction{RecoveryID: &rid}, domain.ActionKindCancelOrder},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			act, err := codec.DecodeAction(c.wire)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if act.Kind() != c.want {
				t.Errorf("inferred %s, want %s", act.Kind(), c.want)
			}
		})
	}
}

func TestActionWireRoundTrip(t *testing.T) {
	actions := []domain.Action{
		domain.PlaceOrderAction{LocalID: 5, Side: domain.SideBuy, Role: domain.RoleEntry, Price: 0.0998, Volume: 20, TradeID: domain.TradeB, Cycle: 2, PostOnly: true, Reason: "bootstrap"},
		domain.CancelOrderAction{LocalID: 5, Txid: "TX", Reason: "stale_entry"},
		domain.CancelOrderAction{RecoveryID: 2, Txid: "R2", Reason: "recovery_cap_evict_priority"},
		domain.OrphanOrderAction{LocalID: 5, RecoveryID: 2, Reason: "s1_timeout"},
		domain.BookCycleAction{TradeID: domain.TradeA, Cycle: 2, NetProfit: 0.008, GrossProfit: 0.013, Fees: 0.005, QuoteFee: 0.002, SettledUSD: 0.011, Lineage: domain.LineageRecovery},
	}
	for _, act := range actions {
		got, err := codec.DecodeAction(codec.EncodeAction(act))
		if err != nil {
			t.Fatalf("%s: %v", act.Kind(), err)
		}
		if got != act {
			t.Errorf("%s: round trip changed action:\n%+v\n%+v", act.Kind(), act, got)
		}
	}
}
