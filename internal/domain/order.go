package domain

// OrderState is one exchange order tracked by the reducer.
// Prices, volumes and timestamps are float64 because they cross the JSON
// wire contract unchanged; timestamps are Unix seconds taken from events.
type OrderState struct {
	LocalID int64   `json:"local_id"`
	Side    Side    `json:"side"`
	Role    Role    `json:"role"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	TradeID TradeID `json:"trade_id"`
	Cycle   int     `json:"cycle"`

	// Txid is empty until the exchange acknowledges the order.
	Txid     string      `json:"txid"`
	Status   OrderStatus `json:"status"`
	PlacedAt float64     `json:"placed_at"`

	// Exit-only provenance carried from the entry fill.
	EntryPrice    float64 `json:"entry_price"`
	EntryFee      float64 `json:"entry_fee"`
	EntryFilledAt float64 `json:"entry_filled_at"`

	// RegimeAtEntry is stamped once at entry fill and immutable afterward.
	RegimeAtEntry Regime `json:"regime_at_entry"`
}

// IsOpen reports whether the order is still working on the exchange.
func (o *OrderState) IsOpen() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPartiallyFilled
}

// RecoveryOrder is a former exit that missed its patience window and was
// converted into a standing limit order. Tracked apart from normal orders
// so the per-slot backlog can be bounded independently.
type RecoveryOrder struct {
	RecoveryID    int64   `json:"recovery_id"`
	Side          Side    `json:"side"`
	Price         float64 `json:"price"`
	Volume        float64 `json:"volume"`
	TradeID       TradeID `json:"trade_id"`
	Cycle         int     `json:"cycle"`
	EntryPrice    float64 `json:"entry_price"`
	EntryFee      float64 `json:"entry_fee"`
	EntryFilledAt float64 `json:"entry_filled_at"`
	OrphanedAt    float64 `json:"orphaned_at"`
	Txid          string  `json:"txid"`
	Reason        string  `json:"reason"`
	RegimeAtEntry Regime  `json:"regime_at_entry"`
}

// CycleRecord is an immutable closed trade. Append-only; never mutated.
type CycleRecord struct {
	TradeID     TradeID `json:"trade_id"`
	Cycle       int     `json:"cycle"`
	EntryPrice  float64 `json:"entry_price"`
	ExitPrice   float64 `json:"exit_price"`
	Volume      float64 `json:"volume"`
	GrossProfit float64 `json:"gross_profit"`
	EntryFee    float64 `json:"entry_fee"`
	ExitFee     float64 `json:"exit_fee"`

	// QuoteFee is the portion of fees settled in the quote currency
	// (fees on sell orders; fees on buy orders settle in base).
	QuoteFee  float64 `json:"quote_fee"`
	Fees      float64 `json:"fees"`
	NetProfit float64 `json:"net_profit"`

	// SettledUSD estimates the realized quote-balance delta. It differs
	// from NetProfit when part of the fees settled in base currency.
	SettledUSD float64 `json:"settled_usd"`

	EntryTime     float64        `json:"entry_time"`
	ExitTime      float64        `json:"exit_time"`
	RegimeAtEntry Regime         `json:"regime_at_entry"`
	Lineage       ClosureLineage `json:"closure_lineage"`
}
