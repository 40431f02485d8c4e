package codec

import (
	"fmt"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

// WireEvent is the boundary form of an Event. The type tag is authoritative;
// when talking to peers that predate the tag, decoding falls back to field
// presence, mirroring how those peers classify events.
type WireEvent struct {
	Type         string   `json:"type,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Timestamp    float64  `json:"timestamp"`
	OrderLocalID *int64   `json:"order_local_id,omitempty"`
	RecoveryID   *int64   `json:"recovery_id,omitempty"`
	Txid         string   `json:"txid,omitempty"`
	Side         string   `json:"side,omitempty"`
	Volume       *float64 `json:"volume,omitempty"`
	Fee          *float64 `json:"fee,omitempty"`
}

// EncodeEvent converts an Event into its wire form with an explicit tag.
func EncodeEvent(ev event.Event) WireEvent {
	switch e := ev.(type) {
	case event.PriceTick:
		return WireEvent{Type: string(event.TypePriceTick), Price: f64Ptr(e.Price), Timestamp: e.Timestamp}
	case event.TimerTick:
		return WireEvent{Type: string(event.TypeTimerTick), Timestamp: e.Timestamp}
	case event.FillEvent:
		return WireEvent{
			Type:         string(event.TypeFill),
			OrderLocalID: i64Ptr(e.OrderLocalID),
			Txid:         e.Txid,
			Side:         string(e.Side),
			Price:        f64Ptr(e.Price),
			Volume:       f64Ptr(e.Volume),
			Fee:          f64Ptr(e.Fee),
			Timestamp:    e.Timestamp,
		}
	case event.RecoveryFillEvent:
		return WireEvent{
			Type:       string(event.TypeRecoveryFill),
			RecoveryID: i64Ptr(e.RecoveryID),
			Txid:       e.Txid,
			Side:       string(e.Side),
			Price:      f64Ptr(e.Price),
			Volume:     f64Ptr(e.Volume),
			Fee:        f64Ptr(e.Fee),
			Timestamp:  e.Timestamp,
		}
	case event.RecoveryCancelEvent:
		return WireEvent{
			Type:       string(event.TypeRecoveryCancel),
			RecoveryID: i64Ptr(e.RecoveryID),
			Txid:       e.Txid,
			Timestamp:  e.Timestamp,
		}
	default:
		return WireEvent{Timestamp: ev.Time()}
	}
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// DecodeEvent restores an Event from its wire form.
func DecodeEvent(w WireEvent) (event.Event, error) {
	tag := event.Type(w.Type)
	if w.Type == "" {
		tag = inferEventType(w)
	}
	switch tag {
	case event.TypePriceTick:
		if w.Price == nil {
			return nil, fmt.Errorf("price_tick missing price")
		}
		return event.PriceTick{Price: *w.Price, Timestamp: w.Timestamp}, nil
	case event.TypeTimerTick:
		return event.TimerTick{Timestamp: w.Timestamp}, nil
	case event.TypeFill:
		if w.OrderLocalID == nil {
			return nil, fmt.Errorf("fill missing order_local_id")
		}
		return event.FillEvent{
			OrderLocalID: *w.OrderLocalID,
			Txid:         w.Txid,
			Side:         domain.Side(w.Side),
			Price:        deref(w.Price),
			Volume:       deref(w.Volume),
			Fee:          deref(w.Fee),
			Timestamp:    w.Timestamp,
		}, nil
	case event.TypeRecoveryFill:
		if w.RecoveryID == nil {
			return nil, fmt.Errorf("recovery_fill missing recovery_id")
		}
		return event.RecoveryFillEvent{
			RecoveryID: *w.RecoveryID,
			Txid:       w.Txid,
			Side:       domain.Side(w.Side),
			Price:      deref(w.Price),
			Volume:     deref(w.Volume),
			Fee:        deref(w.Fee),
			Timestamp:  w.Timestamp,
		}, nil
	case event.TypeRecoveryCancel:
		if w.RecoveryID == nil {
			return nil, fmt.Errorf("recovery_cancel missing recovery_id")
		}
		return event.RecoveryCancelEvent{RecoveryID: *w.RecoveryID, Txid: w.Txid, Timestamp: w.Timestamp}, nil
	default:
		return nil, fmt.Errorf("%w: type %q", domain.ErrUnknownEvent, w.Type)
	}
}

func inferEventType(w WireEvent) event.Type {
	switch {
	case w.OrderLocalID != nil:
		return event.TypeFill
	case w.RecoveryID != nil && w.Volume != nil:
		return event.TypeRecoveryFill
	case w.RecoveryID != nil:
		return event.TypeRecoveryCancel
	case w.Price != nil:
		return event.TypePriceTick
	default:
		return event.TypeTimerTick
	}
}

// WireAction is the boundary form of an Action. The kind tag is
// authoritative; peers that discriminate by field presence still decode
// correctly because each variant's field set is disjoint.
type WireAction struct {
	Kind        string   `json:"kind,omitempty"`
	LocalID     *int64   `json:"local_id,omitempty"`
	Side        string   `json:"side,omitempty"`
	Role        string   `json:"role,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Volume      *float64 `json:"volume,omitempty"`
	TradeID     string   `json:"trade_id,omitempty"`
	Cycle       *int     `json:"cycle,omitempty"`
	PostOnly    *bool    `json:"post_only,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Txid        *string  `json:"txid,omitempty"`
	RecoveryID  *int64   `json:"recovery_id,omitempty"`
	NetProfit   *float64 `json:"net_profit,omitempty"`
	GrossProfit *float64 `json:"gross_profit,omitempty"`
	Fees        *float64 `json:"fees,omitempty"`
	QuoteFee    *float64 `json:"quote_fee,omitempty"`
	SettledUSD  *float64 `json:"settled_usd,omitempty"`
	Lineage     string   `json:"closure_lineage,omitempty"`
}

// EncodeAction converts an Action into its wire form.
func EncodeAction(act domain.Action) WireAction {
	switch a := act.(type) {
	case domain.PlaceOrderAction:
		return WireAction{
			Kind:     string(domain.ActionKindPlaceOrder),
			LocalID:  i64Ptr(a.LocalID),
			Side:     string(a.Side),
			Role:     string(a.Role),
			Price:    f64Ptr(a.Price),
			Volume:   f64Ptr(a.Volume),
			TradeID:  string(a.TradeID),
			Cycle:    intPtr(a.Cycle),
			PostOnly: &a.PostOnly,
			Reason:   a.Reason,
		}
	case domain.CancelOrderAction:
		w := WireAction{
			Kind:   string(domain.ActionKindCancelOrder),
			Txid:   strPtr(a.Txid),
			Reason: a.Reason,
		}
		if a.LocalID != 0 {
			w.LocalID = i64Ptr(a.LocalID)
		}
		if a.RecoveryID != 0 {
			w.RecoveryID = i64Ptr(a.RecoveryID)
		}
		return w
	case domain.OrphanOrderAction:
		return WireAction{
			Kind:       string(domain.ActionKindOrphanOrder),
			LocalID:    i64Ptr(a.LocalID),
			RecoveryID: i64Ptr(a.RecoveryID),
			Reason:     a.Reason,
		}
	case domain.BookCycleAction:
		return WireAction{
			Kind:        string(domain.ActionKindBookCycle),
			TradeID:     string(a.TradeID),
			Cycle:       intPtr(a.Cycle),
			NetProfit:   f64Ptr(a.NetProfit),
			GrossProfit: f64Ptr(a.GrossProfit),
			Fees:        f64Ptr(a.Fees),
			QuoteFee:    f64Ptr(a.QuoteFee),
			SettledUSD:  f64Ptr(a.SettledUSD),
			Lineage:     string(a.Lineage),
		}
	default:
		return WireAction{}
	}
}

// DecodeAction restores an Action from its wire form.
func DecodeAction(w WireAction) (domain.Action, error) {
	kind := domain.ActionKind(w.Kind)
	if w.Kind == "" {
		kind = inferActionKind(w)
	}
	switch kind {
	case domain.ActionKindPlaceOrder:
		if w.LocalID == nil || w.Price == nil || w.Volume == nil {
			return nil, fmt.Errorf("place_order missing required fields")
		}
		act := domain.PlaceOrderAction{
			LocalID: *w.LocalID,
			Side:    domain.Side(w.Side),
			Role:    domain.Role(w.Role),
			Price:   *w.Price,
			Volume:  *w.Volume,
			TradeID: domain.TradeID(w.TradeID),
			Reason:  w.Reason,
		}
		if w.Cycle != nil {
			act.Cycle = *w.Cycle
		}
		if w.PostOnly != nil {
			act.PostOnly = *w.PostOnly
		}
		return act, nil
	case domain.ActionKindCancelOrder:
		if w.LocalID == nil && w.RecoveryID == nil {
			return nil, fmt.Errorf("cancel_order missing target id")
		}
		act := domain.CancelOrderAction{Reason: w.Reason}
		if w.LocalID != nil {
			act.LocalID = *w.LocalID
		}
		if w.RecoveryID != nil {
			act.RecoveryID = *w.RecoveryID
		}
		if w.Txid != nil {
			act.Txid = *w.Txid
		}
		return act, nil
	case domain.ActionKindOrphanOrder:
		if w.LocalID == nil || w.RecoveryID == nil {
			return nil, fmt.Errorf("orphan_order missing ids")
		}
		return domain.OrphanOrderAction{LocalID: *w.LocalID, RecoveryID: *w.RecoveryID, Reason: w.Reason}, nil
	case domain.ActionKindBookCycle:
		act := domain.BookCycleAction{
			TradeID:     domain.TradeID(w.TradeID),
			NetProfit:   deref(w.NetProfit),
			GrossProfit: deref(w.GrossProfit),
			Fees:        deref(w.Fees),
			QuoteFee:    deref(w.QuoteFee),
			SettledUSD:  deref(w.SettledUSD),
			Lineage:     domain.LineageNormal,
		}
		if w.Cycle != nil {
			act.Cycle = *w.Cycle
		}
		if w.Lineage != "" {
			act.Lineage = domain.ClosureLineage(w.Lineage)
		}
		return act, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", domain.ErrUnknownAction, w.Kind)
	}
}

func inferActionKind(w WireAction) domain.ActionKind {
	switch {
	case w.NetProfit != nil:
		return domain.ActionKindBookCycle
	case w.RecoveryID != nil && w.LocalID != nil:
		return domain.ActionKindOrphanOrder
	case w.Price != nil && w.Volume != nil:
		return domain.ActionKindPlaceOrder
	case w.LocalID != nil || w.RecoveryID != nil:
		return domain.ActionKindCancelOrder
	default:
		return ""
	}
}

// Request is one call over the optional process boundary.
type Request struct {
	Method string               `json:"method"`
	State  PortableState        `json:"state"`
	Event  *WireEvent           `json:"event,omitempty"`
	Config *domain.EngineConfig `json:"config,omitempty"`
}

// TransitionResponse answers a transition request.
type TransitionResponse struct {
	State       PortableState       `json:"state"`
	Actions     []WireAction        `json:"actions"`
	Diagnostics []domain.Diagnostic `json:"diagnostics,omitempty"`
}

// CheckResponse answers a check_invariants request.
type CheckResponse struct {
	Violations []string `json:"violations"`
}

// Boundary method names.
const (
	MethodTransition      = "transition"
	MethodCheckInvariants = "check_invariants"
)
