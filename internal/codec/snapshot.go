// Package codec moves slot state and reducer traffic across process and
// storage boundaries. The portable snapshot form tolerates documents written
// by older schema versions: missing fields decode to documented defaults
// instead of errors, so snapshots survive schema evolution without manual
// migration. Same-version round trips are lossless.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// PortableOrder is the storage/wire form of one tracked order. Pointer
// fields mark schema additions that need defaulting when absent.
type PortableOrder struct {
	LocalID       int64    `json:"local_id"`
	Side          string   `json:"side"`
	Role          string   `json:"role"`
	Price         float64  `json:"price"`
	Volume        float64  `json:"volume"`
	TradeID       string   `json:"trade_id"`
	Cycle         int      `json:"cycle"`
	Txid          string   `json:"txid"`
	Status        *string  `json:"status,omitempty"`
	PlacedAt      float64  `json:"placed_at"`
	EntryPrice    float64  `json:"entry_price"`
	EntryFee      float64  `json:"entry_fee"`
	EntryFilledAt float64  `json:"entry_filled_at"`
	RegimeAtEntry *string  `json:"regime_at_entry,omitempty"`
}

// PortableRecovery is the storage/wire form of one recovery order.
type PortableRecovery struct {
	RecoveryID    int64   `json:"recovery_id"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Volume        float64 `json:"volume"`
	TradeID       string  `json:"trade_id"`
	Cycle         int     `json:"cycle"`
	EntryPrice    float64 `json:"entry_price"`
	EntryFee      float64 `json:"entry_fee"`
	EntryFilledAt float64 `json:"entry_filled_at"`
	OrphanedAt    float64 `json:"orphaned_at"`
	Txid          string  `json:"txid"`
	Reason        string  `json:"reason"`
	RegimeAtEntry *string `json:"regime_at_entry,omitempty"`
}

// PortableCycle is the storage/wire form of one closed trade. Older
// documents carry from_recovery instead of closure_lineage and know nothing
// of the fee split.
type PortableCycle struct {
	TradeID       string   `json:"trade_id"`
	Cycle         int      `json:"cycle"`
	EntryPrice    float64  `json:"entry_price"`
	ExitPrice     float64  `json:"exit_price"`
	Volume        float64  `json:"volume"`
	GrossProfit   float64  `json:"gross_profit"`
	EntryFee      *float64 `json:"entry_fee,omitempty"`
	ExitFee       *float64 `json:"exit_fee,omitempty"`
	QuoteFee      *float64 `json:"quote_fee,omitempty"`
	Fees          float64  `json:"fees"`
	NetProfit     float64  `json:"net_profit"`
	SettledUSD    *float64 `json:"settled_usd,omitempty"`
	EntryTime     float64  `json:"entry_time"`
	ExitTime      float64  `json:"exit_time"`
	RegimeAtEntry *string  `json:"regime_at_entry,omitempty"`
	Lineage       *string  `json:"closure_lineage,omitempty"`
	FromRecovery  *bool    `json:"from_recovery,omitempty"`
}

// PortableState is the full snapshot document for one slot.
type PortableState struct {
	MarketPrice           float64            `json:"market_price"`
	Now                   float64            `json:"now"`
	Orders                []PortableOrder    `json:"orders"`
	RecoveryOrders        []PortableRecovery `json:"recovery_orders"`
	CompletedCycles       []PortableCycle    `json:"completed_cycles"`
	CycleA                *int               `json:"cycle_a,omitempty"`
	CycleB                *int               `json:"cycle_b,omitempty"`
	NextOrderID           *int64             `json:"next_order_id,omitempty"`
	NextRecoveryID        *int64             `json:"next_recovery_id,omitempty"`
	TotalProfit           float64            `json:"total_profit"`
	TotalFees             float64            `json:"total_fees"`
	TotalSettledUSD       *float64           `json:"total_settled_usd,omitempty"`
	TodayRealizedLoss     float64            `json:"today_realized_loss"`
	TotalRoundTrips       int                `json:"total_round_trips"`
	S2EnteredAt           *float64           `json:"s2_entered_at"`
	LastPriceUpdateAt     *float64           `json:"last_price_update_at"`
	ConsecutiveLossesA    int                `json:"consecutive_losses_a"`
	ConsecutiveLossesB    int                `json:"consecutive_losses_b"`
	CooldownUntilA        float64            `json:"cooldown_until_a"`
	CooldownUntilB        float64            `json:"cooldown_until_b"`
	LongOnly              bool               `json:"long_only"`
	ShortOnly             bool               `json:"short_only"`
	LongOnlySource        *string            `json:"long_only_source,omitempty"`
	ShortOnlySource       *string            `json:"short_only_source,omitempty"`
	ModeSource            *string            `json:"mode_source,omitempty"`
	ConsecutiveRefreshesA int                `json:"consecutive_refreshes_a"`
	ConsecutiveRefreshesB int                `json:"consecutive_refreshes_b"`
	LastRefreshDirectionA string             `json:"last_refresh_direction_a"`
	LastRefreshDirectionB string             `json:"last_refresh_direction_b"`
	RefreshCooldownUntilA float64            `json:"refresh_cooldown_until_a"`
	RefreshCooldownUntilB float64            `json:"refresh_cooldown_until_b"`
	ProfitPctRuntime      *float64           `json:"profit_pct_runtime,omitempty"`
	CurrentRegime         *string            `json:"current_regime,omitempty"`
}

func strPtr(s string) *string   { return &s }
func intPtr(i int) *int         { return &i }
func i64Ptr(i int64) *int64     { return &i }
func f64Ptr(f float64) *float64 { return &f }

// ToPortable converts live slot state into its snapshot document.
func ToPortable(s domain.PairState) PortableState {
	doc := PortableState{
		MarketPrice:           s.MarketPrice,
		Now:                   s.Now,
		Orders:                make([]PortableOrder, 0, len(s.Orders)),
		RecoveryOrders:        make([]PortableRecovery, 0, len(s.RecoveryOrders)),
		CompletedCycles:       make([]PortableCycle, 0, len(s.CompletedCycles)),
		CycleA:                intPtr(s.CycleA),
		CycleB:                intPtr(s.CycleB),
		NextOrderID:           i64Ptr(s.NextOrderID),
		NextRecoveryID:        i64Ptr(s.NextRecoveryID),
		TotalProfit:           s.TotalProfit,
		TotalFees:             s.TotalFees,
		TotalSettledUSD:       f64Ptr(s.TotalSettledUSD),
		TodayRealizedLoss:     s.TodayRealizedLoss,
		TotalRoundTrips:       s.TotalRoundTrips,
		ConsecutiveLossesA:    s.ConsecutiveLossesA,
		ConsecutiveLossesB:    s.ConsecutiveLossesB,
		CooldownUntilA:        s.CooldownUntilA,
		CooldownUntilB:        s.CooldownUntilB,
		LongOnly:              s.LongOnly,
		ShortOnly:             s.ShortOnly,
		LongOnlySource:        strPtr(string(s.LongOnlySource)),
		ShortOnlySource:       strPtr(string(s.ShortOnlySource)),
		ConsecutiveRefreshesA: s.ConsecutiveRefreshesA,
		ConsecutiveRefreshesB: s.ConsecutiveRefreshesB,
		LastRefreshDirectionA: s.LastRefreshDirectionA,
		LastRefreshDirectionB: s.LastRefreshDirectionB,
		RefreshCooldownUntilA: s.RefreshCooldownUntilA,
		RefreshCooldownUntilB: s.RefreshCooldownUntilB,
		ProfitPctRuntime:      f64Ptr(s.ProfitPctRuntime),
		CurrentRegime:         strPtr(string(s.CurrentRegime)),
	}
	if s.S2EnteredAt != nil {
		v := *s.S2EnteredAt
		doc.S2EnteredAt = &v
	}
	if s.LastPriceUpdateAt != nil {
		v := *s.LastPriceUpdateAt
		doc.LastPriceUpdateAt = &v
	}
	for _, o := range s.Orders {
		doc.Orders = append(doc.Orders, PortableOrder{
			LocalID:       o.LocalID,
			Side:          string(o.Side),
			Role:          string(o.Role),
			Price:         o.Price,
			Volume:        o.Volume,
			TradeID:       string(o.TradeID),
			Cycle:         o.Cycle,
			Txid:          o.Txid,
			Status:        strPtr(string(o.Status)),
			PlacedAt:      o.PlacedAt,
			EntryPrice:    o.EntryPrice,
			EntryFee:      o.EntryFee,
			EntryFilledAt: o.EntryFilledAt,
			RegimeAtEntry: strPtr(string(o.RegimeAtEntry)),
		})
	}
	for _, r := range s.RecoveryOrders {
		doc.RecoveryOrders = append(doc.RecoveryOrders, PortableRecovery{
			RecoveryID:    r.RecoveryID,
			Side:          string(r.Side),
			Price:         r.Price,
			Volume:        r.Volume,
			TradeID:       string(r.TradeID),
			Cycle:         r.Cycle,
			EntryPrice:    r.EntryPrice,
			EntryFee:      r.EntryFee,
			EntryFilledAt: r.EntryFilledAt,
			OrphanedAt:    r.OrphanedAt,
			Txid:          r.Txid,
			Reason:        r.Reason,
			RegimeAtEntry: strPtr(string(r.RegimeAtEntry)),
		})
	}
	for _, c := range s.CompletedCycles {
		doc.CompletedCycles = append(doc.CompletedCycles, PortableCycle{
			TradeID:       string(c.TradeID),
			Cycle:         c.Cycle,
			EntryPrice:    c.EntryPrice,
			ExitPrice:     c.ExitPrice,
			Volume:        c.Volume,
			GrossProfit:   c.GrossProfit,
			EntryFee:      f64Ptr(c.EntryFee),
			ExitFee:       f64Ptr(c.ExitFee),
			QuoteFee:      f64Ptr(c.QuoteFee),
			Fees:          c.Fees,
			NetProfit:     c.NetProfit,
			SettledUSD:    f64Ptr(c.SettledUSD),
			EntryTime:     c.EntryTime,
			ExitTime:      c.ExitTime,
			RegimeAtEntry: strPtr(string(c.RegimeAtEntry)),
			Lineage:       strPtr(string(c.Lineage)),
		})
	}
	return doc
}

func regimeOrUnknown(p *string) domain.Regime {
	if p == nil {
		return domain.RegimeUnknown
	}
	return domain.ParseRegime(*p)
}

// FromPortable restores slot state from a snapshot document, applying
// defaults for fields the writing version did not know about.
func FromPortable(doc PortableState) (domain.PairState, error) {
	s := domain.PairState{
		MarketPrice:           doc.MarketPrice,
		Now:                   doc.Now,
		CycleA:                1,
		CycleB:                1,
		NextOrderID:           1,
		NextRecoveryID:        1,
		TotalProfit:           doc.TotalProfit,
		TotalFees:             doc.TotalFees,
		TotalSettledUSD:       doc.TotalProfit,
		TodayRealizedLoss:     doc.TodayRealizedLoss,
		TotalRoundTrips:       doc.TotalRoundTrips,
		ConsecutiveLossesA:    doc.ConsecutiveLossesA,
		ConsecutiveLossesB:    doc.ConsecutiveLossesB,
		CooldownUntilA:        doc.CooldownUntilA,
		CooldownUntilB:        doc.CooldownUntilB,
		LongOnly:              doc.LongOnly,
		ShortOnly:             doc.ShortOnly,
		LongOnlySource:        domain.ModeSourceNone,
		ShortOnlySource:       domain.ModeSourceNone,
		ConsecutiveRefreshesA: doc.ConsecutiveRefreshesA,
		ConsecutiveRefreshesB: doc.ConsecutiveRefreshesB,
		LastRefreshDirectionA: doc.LastRefreshDirectionA,
		LastRefreshDirectionB: doc.LastRefreshDirectionB,
		RefreshCooldownUntilA: doc.RefreshCooldownUntilA,
		RefreshCooldownUntilB: doc.RefreshCooldownUntilB,
		ProfitPctRuntime:      1.0,
		CurrentRegime:         domain.RegimeUnknown,
	}

	if doc.CycleA != nil {
		s.CycleA = *doc.CycleA
	}
	if doc.CycleB != nil {
		s.CycleB = *doc.CycleB
	}
	if doc.NextOrderID != nil {
		s.NextOrderID = *doc.NextOrderID
	}
	if doc.NextRecoveryID != nil {
		s.NextRecoveryID = *doc.NextRecoveryID
	}
	if doc.TotalSettledUSD != nil {
		s.TotalSettledUSD = *doc.TotalSettledUSD
	}
	if doc.S2EnteredAt != nil {
		v := *doc.S2EnteredAt
		s.S2EnteredAt = &v
	}
	if doc.LastPriceUpdateAt != nil {
		v := *doc.LastPriceUpdateAt
		s.LastPriceUpdateAt = &v
	}
	if doc.ProfitPctRuntime != nil {
		s.ProfitPctRuntime = *doc.ProfitPctRuntime
	}
	if doc.CurrentRegime != nil {
		s.CurrentRegime = domain.ParseRegime(*doc.CurrentRegime)
	}

	// Suppression provenance. New documents carry one source per flag;
	// legacy documents carried a single mode_source applying to whichever
	// flag was set. Unknown values sanitize to none.
	switch {
	case doc.LongOnlySource != nil || doc.ShortOnlySource != nil:
		if doc.LongOnlySource != nil {
			s.LongOnlySource = domain.ParseModeSource(*doc.LongOnlySource)
		}
		if doc.ShortOnlySource != nil {
			s.ShortOnlySource = domain.ParseModeSource(*doc.ShortOnlySource)
		}
	case doc.ModeSource != nil:
		src := domain.ParseModeSource(*doc.ModeSource)
		if doc.LongOnly {
			s.LongOnlySource = src
		}
		if doc.ShortOnly {
			s.ShortOnlySource = src
		}
	}

	for _, o := range doc.Orders {
		status := domain.OrderStatusPending
		if o.Status != nil {
			status = domain.OrderStatus(*o.Status)
		} else if o.Txid != "" {
			status = domain.OrderStatusOpen
		}
		s.Orders = append(s.Orders, domain.OrderState{
			LocalID:       o.LocalID,
			Side:          domain.Side(o.Side),
			Role:          domain.Role(o.Role),
			Price:         o.Price,
			Volume:        o.Volume,
			TradeID:       domain.TradeID(o.TradeID),
			Cycle:         o.Cycle,
			Txid:          o.Txid,
			Status:        status,
			PlacedAt:      o.PlacedAt,
			EntryPrice:    o.EntryPrice,
			EntryFee:      o.EntryFee,
			EntryFilledAt: o.EntryFilledAt,
			RegimeAtEntry: regimeOrUnknown(o.RegimeAtEntry),
		})
	}
	for _, r := range doc.RecoveryOrders {
		s.RecoveryOrders = append(s.RecoveryOrders, domain.RecoveryOrder{
			RecoveryID:    r.RecoveryID,
			Side:          domain.Side(r.Side),
			Price:         r.Price,
			Volume:        r.Volume,
			TradeID:       domain.TradeID(r.TradeID),
			Cycle:         r.Cycle,
			EntryPrice:    r.EntryPrice,
			EntryFee:      r.EntryFee,
			EntryFilledAt: r.EntryFilledAt,
			OrphanedAt:    r.OrphanedAt,
			Txid:          r.Txid,
			Reason:        r.Reason,
			RegimeAtEntry: regimeOrUnknown(r.RegimeAtEntry),
		})
	}
	for _, c := range doc.CompletedCycles {
		rec := domain.CycleRecord{
			TradeID:       domain.TradeID(c.TradeID),
			Cycle:         c.Cycle,
			EntryPrice:    c.EntryPrice,
			ExitPrice:     c.ExitPrice,
			Volume:        c.Volume,
			GrossProfit:   c.GrossProfit,
			Fees:          c.Fees,
			NetProfit:     c.NetProfit,
			SettledUSD:    c.NetProfit,
			EntryTime:     c.EntryTime,
			ExitTime:      c.ExitTime,
			RegimeAtEntry: regimeOrUnknown(c.RegimeAtEntry),
			Lineage:       domain.LineageNormal,
		}
		if c.EntryFee != nil {
			rec.EntryFee = *c.EntryFee
		}
		if c.ExitFee != nil {
			rec.ExitFee = *c.ExitFee
		}
		if c.QuoteFee != nil {
			rec.QuoteFee = *c.QuoteFee
		}
		if c.SettledUSD != nil {
			rec.SettledUSD = *c.SettledUSD
		}
		switch {
		case c.Lineage != nil:
			switch domain.ClosureLineage(*c.Lineage) {
			case domain.LineageRecovery:
				rec.Lineage = domain.LineageRecovery
			case domain.LineageReplay:
				rec.Lineage = domain.LineageReplay
			}
		case c.FromRecovery != nil && *c.FromRecovery:
			rec.Lineage = domain.LineageRecovery
		}
		s.CompletedCycles = append(s.CompletedCycles, rec)
	}

	for _, o := range s.Orders {
		if o.Side != domain.SideBuy && o.Side != domain.SideSell {
			return domain.PairState{}, fmt.Errorf("decode order %d: invalid side %q", o.LocalID, o.Side)
		}
		if o.Role != domain.RoleEntry && o.Role != domain.RoleExit {
			return domain.PairState{}, fmt.Errorf("decode order %d: invalid role %q", o.LocalID, o.Role)
		}
	}
	return s, nil
}

// EncodeState marshals state to its snapshot JSON.
func EncodeState(s domain.PairState) ([]byte, error) {
	return json.Marshal(ToPortable(s))
}

// DecodeState restores state from snapshot JSON.
func DecodeState(data []byte) (domain.PairState, error) {
	var doc PortableState
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.PairState{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return FromPortable(doc)
}
