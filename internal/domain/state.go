package domain

// PairState is the full persisted state of one slot. The reducer treats it
// as immutable: helpers return modified copies and never alias the slices
// of their input, so repeated transitions from the same state are safe.
type PairState struct {
	MarketPrice float64 `json:"market_price"`
	Now         float64 `json:"now"`

	Orders          []OrderState    `json:"orders"`
	RecoveryOrders  []RecoveryOrder `json:"recovery_orders"`
	CompletedCycles []CycleRecord   `json:"completed_cycles"`

	CycleA int `json:"cycle_a"`
	CycleB int `json:"cycle_b"`

	NextOrderID    int64 `json:"next_order_id"`
	NextRecoveryID int64 `json:"next_recovery_id"`

	TotalProfit       float64 `json:"total_profit"`
	TotalFees         float64 `json:"total_fees"`
	TotalSettledUSD   float64 `json:"total_settled_usd"`
	TodayRealizedLoss float64 `json:"today_realized_loss"`
	TotalRoundTrips   int     `json:"total_round_trips"`

	S2EnteredAt       *float64 `json:"s2_entered_at"`
	LastPriceUpdateAt *float64 `json:"last_price_update_at"`

	ConsecutiveLossesA int     `json:"consecutive_losses_a"`
	ConsecutiveLossesB int     `json:"consecutive_losses_b"`
	CooldownUntilA     float64 `json:"cooldown_until_a"`
	CooldownUntilB     float64 `json:"cooldown_until_b"`

	// Directional suppression. Each flag carries its own provenance so
	// repair logic cannot conflate balance-driven and regime-driven
	// suppression.
	LongOnly        bool       `json:"long_only"`
	ShortOnly       bool       `json:"short_only"`
	LongOnlySource  ModeSource `json:"long_only_source"`
	ShortOnlySource ModeSource `json:"short_only_source"`

	// Anti-chase entry refresh tracking.
	ConsecutiveRefreshesA int     `json:"consecutive_refreshes_a"`
	ConsecutiveRefreshesB int     `json:"consecutive_refreshes_b"`
	LastRefreshDirectionA string  `json:"last_refresh_direction_a"`
	LastRefreshDirectionB string  `json:"last_refresh_direction_b"`
	RefreshCooldownUntilA float64 `json:"refresh_cooldown_until_a"`
	RefreshCooldownUntilB float64 `json:"refresh_cooldown_until_b"`

	// Runtime-adjusted profit target used for new exits.
	ProfitPctRuntime float64 `json:"profit_pct_runtime"`

	// CurrentRegime is the latest externally supplied regime tag. The
	// reducer stamps it onto entries at fill time; it never computes it.
	CurrentRegime Regime `json:"current_regime"`
}

// NewPairState creates an empty S0 slot awaiting bootstrap.
func NewPairState(marketPrice, now float64) PairState {
	return PairState{
		MarketPrice:      marketPrice,
		Now:              now,
		CycleA:           1,
		CycleB:           1,
		NextOrderID:      1,
		NextRecoveryID:   1,
		ProfitPctRuntime: 1.0,
		LongOnlySource:   ModeSourceNone,
		ShortOnlySource:  ModeSourceNone,
		CurrentRegime:    RegimeUnknown,
	}
}

// Clone returns a deep copy. Slices are reallocated so mutating the copy
// never leaks into the receiver.
func (s PairState) Clone() PairState {
	out := s
	out.Orders = append([]OrderState(nil), s.Orders...)
	out.RecoveryOrders = append([]RecoveryOrder(nil), s.RecoveryOrders...)
	out.CompletedCycles = append([]CycleRecord(nil), s.CompletedCycles...)
	if s.S2EnteredAt != nil {
		v := *s.S2EnteredAt
		out.S2EnteredAt = &v
	}
	if s.LastPriceUpdateAt != nil {
		v := *s.LastPriceUpdateAt
		out.LastPriceUpdateAt = &v
	}
	return out
}

// DerivePhase computes the slot phase from the active order set. Phase is
// never stored, which rules out "stored phase disagrees with orders" drift.
func DerivePhase(s PairState) Phase {
	var buyExit, sellExit bool
	for i := range s.Orders {
		o := &s.Orders[i]
		if o.Role != RoleExit {
			continue
		}
		if o.Side == SideBuy {
			buyExit = true
		} else {
			sellExit = true
		}
	}
	switch {
	case buyExit && sellExit:
		return PhaseS2
	case buyExit:
		return PhaseS1a
	case sellExit:
		return PhaseS1b
	}
	// Entry-only order sets, including long/short-only degraded modes,
	// are all S0.
	return PhaseS0
}

// FindOrder returns the tracked order with the given local id, or nil.
func (s *PairState) FindOrder(localID int64) *OrderState {
	for i := range s.Orders {
		if s.Orders[i].LocalID == localID {
			return &s.Orders[i]
		}
	}
	return nil
}

// FindRecovery returns the recovery order with the given id, or nil.
func (s *PairState) FindRecovery(recoveryID int64) *RecoveryOrder {
	for i := range s.RecoveryOrders {
		if s.RecoveryOrders[i].RecoveryID == recoveryID {
			return &s.RecoveryOrders[i]
		}
	}
	return nil
}

// WithoutOrder returns a copy of the order slice minus the given local id.
func (s PairState) WithoutOrder(localID int64) []OrderState {
	out := make([]OrderState, 0, len(s.Orders))
	for _, o := range s.Orders {
		if o.LocalID != localID {
			out = append(out, o)
		}
	}
	return out
}

// WithoutRecovery returns a copy of the recovery slice minus the given id.
func (s PairState) WithoutRecovery(recoveryID int64) []RecoveryOrder {
	out := make([]RecoveryOrder, 0, len(s.RecoveryOrders))
	for _, r := range s.RecoveryOrders {
		if r.RecoveryID != recoveryID {
			out = append(out, r)
		}
	}
	return out
}

// BindOrderTxid records the exchange txid on a tracked order and marks it
// open. Used by the host after a place acknowledgment.
func BindOrderTxid(s PairState, localID int64, txid string) PairState {
	out := s.Clone()
	for i := range out.Orders {
		if out.Orders[i].LocalID == localID {
			out.Orders[i].Txid = txid
			out.Orders[i].Status = OrderStatusOpen
		}
	}
	return out
}

// BindRecoveryTxid records the exchange txid on a recovery order.
func BindRecoveryTxid(s PairState, recoveryID int64, txid string) PairState {
	out := s.Clone()
	for i := range out.RecoveryOrders {
		if out.RecoveryOrders[i].RecoveryID == recoveryID {
			out.RecoveryOrders[i].Txid = txid
		}
	}
	return out
}

// RemoveOrder drops a tracked order without booking anything.
func RemoveOrder(s PairState, localID int64) PairState {
	out := s.Clone()
	out.Orders = out.WithoutOrder(localID)
	return out
}

// RemoveRecovery drops a recovery order without booking anything.
func RemoveRecovery(s PairState, recoveryID int64) PairState {
	out := s.Clone()
	out.RecoveryOrders = out.WithoutRecovery(recoveryID)
	return out
}

// ApplyRegime records an externally supplied regime tag on the state.
func ApplyRegime(s PairState, regime Regime) PairState {
	out := s.Clone()
	out.CurrentRegime = ParseRegime(string(regime))
	return out
}
