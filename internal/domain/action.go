package domain

// ActionKind is the explicit wire tag of an Action variant.
type ActionKind string

const (
	ActionKindPlaceOrder  ActionKind = "place_order"
	ActionKindCancelOrder ActionKind = "cancel_order"
	ActionKindOrphanOrder ActionKind = "orphan_order"
	ActionKindBookCycle   ActionKind = "book_cycle"
)

// Action is the closed set of order-management outputs of the reducer.
// Consumers switch exhaustively on the concrete type; the codec serializes
// the Kind tag explicitly instead of inferring it from field presence.
type Action interface {
	Kind() ActionKind
}

// PlaceOrderAction asks the host to place a new limit order.
type PlaceOrderAction struct {
	LocalID  int64   `json:"local_id"`
	Side     Side    `json:"side"`
	Role     Role    `json:"role"`
	Price    float64 `json:"price"`
	Volume   float64 `json:"volume"`
	TradeID  TradeID `json:"trade_id"`
	Cycle    int     `json:"cycle"`
	PostOnly bool    `json:"post_only"`
	Reason   string  `json:"reason"`
}

func (PlaceOrderAction) Kind() ActionKind { return ActionKindPlaceOrder }

// CancelOrderAction asks the host to cancel a working order. Exactly one
// of LocalID and RecoveryID is set: LocalID targets a tracked order,
// RecoveryID a standing recovery order (cap eviction).
type CancelOrderAction struct {
	LocalID    int64  `json:"local_id,omitempty"`
	RecoveryID int64  `json:"recovery_id,omitempty"`
	Txid       string `json:"txid"`
	Reason     string `json:"reason"`
}

func (CancelOrderAction) Kind() ActionKind { return ActionKindCancelOrder }

// OrphanOrderAction converts an existing tracked exit into a recovery
// order. It deliberately carries no trade id, side, price or volume: an
// orphan is a role conversion of an order the host already knows, not a
// new order intent, and the type makes that absence a guarantee.
type OrphanOrderAction struct {
	LocalID    int64  `json:"local_id"`
	RecoveryID int64  `json:"recovery_id"`
	Reason     string `json:"reason"`
}

func (OrphanOrderAction) Kind() ActionKind { return ActionKindOrphanOrder }

// BookCycleAction reports a completed round trip to the host ledger.
type BookCycleAction struct {
	TradeID     TradeID        `json:"trade_id"`
	Cycle       int            `json:"cycle"`
	NetProfit   float64        `json:"net_profit"`
	GrossProfit float64        `json:"gross_profit"`
	Fees        float64        `json:"fees"`
	QuoteFee    float64        `json:"quote_fee"`
	SettledUSD  float64        `json:"settled_usd"`
	Lineage     ClosureLineage `json:"closure_lineage"`
}

func (BookCycleAction) Kind() ActionKind { return ActionKindBookCycle }

// Diagnostic reports an absorbed malformed event. The reducer never fails
// on bad input; it returns a no-op transition plus one of these so tests
// and shadow mode can observe what was ignored.
type Diagnostic struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Violation is one broken invariant found by the checker.
type Violation string
