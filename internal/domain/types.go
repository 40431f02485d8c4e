package domain

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Role distinguishes the opening and closing order of a round trip.
type Role string

const (
	RoleEntry Role = "entry"
	RoleExit  Role = "exit"
)

// TradeID identifies the logical sub-position of a slot.
// A is the sell-first leg, B is the buy-first leg.
type TradeID string

const (
	TradeA TradeID = "A"
	TradeB TradeID = "B"
)

// Phase is derived from the active order set, never persisted.
type Phase string

const (
	PhaseS0  Phase = "S0"  // both sides awaiting entry fill
	PhaseS1a Phase = "S1a" // B entry filled, buy-side exit live
	PhaseS1b Phase = "S1b" // A entry filled, sell-side exit live
	PhaseS2  Phase = "S2"  // both sides in exit phase
)

// Regime is an externally supplied market-state label. The core stamps it
// onto orders at entry time and propagates it; it never computes it.
type Regime string

const (
	RegimeBearish Regime = "bearish"
	RegimeRanging Regime = "ranging"
	RegimeBullish Regime = "bullish"
	RegimeUnknown Regime = "unknown"
)

// ParseRegime sanitizes an arbitrary wire value to a valid Regime.
// Unrecognized or empty input maps to RegimeUnknown.
func ParseRegime(raw string) Regime {
	switch Regime(raw) {
	case RegimeBearish, RegimeRanging, RegimeBullish:
		return Regime(raw)
	default:
		return RegimeUnknown
	}
}

// ModeSource records why a directional-suppression flag was set.
// Repair logic may only restore a side suppressed for balance reasons;
// a regime suppression stays until the signal explicitly clears.
type ModeSource string

const (
	ModeSourceNone    ModeSource = "none"
	ModeSourceBalance ModeSource = "balance"
	ModeSourceRegime  ModeSource = "regime"
)

// ParseModeSource sanitizes an arbitrary wire value to a valid ModeSource.
func ParseModeSource(raw string) ModeSource {
	switch ModeSource(raw) {
	case ModeSourceBalance, ModeSourceRegime:
		return ModeSource(raw)
	default:
		return ModeSourceNone
	}
}

// ClosureLineage records how a cycle reached its booked state.
type ClosureLineage string

const (
	LineageNormal   ClosureLineage = "normal"
	LineageRecovery ClosureLineage = "recovery"
	LineageReplay   ClosureLineage = "replay"
)

// OrderStatus tracks exchange acknowledgment of a tracked order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusClosed          OrderStatus = "closed"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusExpired         OrderStatus = "expired"
)
