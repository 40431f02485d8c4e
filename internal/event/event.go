package event

import "github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"

// Type is the explicit wire tag of an Event variant.
type Type string

const (
	TypePriceTick      Type = "price_tick"
	TypeTimerTick      Type = "timer_tick"
	TypeFill           Type = "fill"
	TypeRecoveryFill   Type = "recovery_fill"
	TypeRecoveryCancel Type = "recovery_cancel"
)

// Event is the closed set of reducer inputs. Time enters the reducer only
// through event payloads (Unix seconds); the reducer never reads a clock.
type Event interface {
	Type() Type
	Time() float64
}

// PriceTick updates the mark price used for recovery pricing and layer
// sizing. It emits no actions by itself.
type PriceTick struct {
	Price     float64 `json:"price"`
	Timestamp float64 `json:"timestamp"`
}

func (PriceTick) Type() Type      { return TypePriceTick }
func (e PriceTick) Time() float64 { return e.Timestamp }

// TimerTick advances patience windows and drives orphaning and stale-entry
// refresh.
type TimerTick struct {
	Timestamp float64 `json:"timestamp"`
}

func (TimerTick) Type() Type      { return TypeTimerTick }
func (e TimerTick) Time() float64 { return e.Timestamp }

// FillEvent reports a fill of a tracked order.
type FillEvent struct {
	OrderLocalID int64       `json:"order_local_id"`
	Txid         string      `json:"txid"`
	Side         domain.Side `json:"side"`
	Price        float64     `json:"price"`
	Volume       float64     `json:"volume"`
	Fee          float64     `json:"fee"`
	Timestamp    float64     `json:"timestamp"`
}

func (FillEvent) Type() Type      { return TypeFill }
func (e FillEvent) Time() float64 { return e.Timestamp }

// RecoveryFillEvent reports a fill of a standing recovery order.
type RecoveryFillEvent struct {
	RecoveryID int64       `json:"recovery_id"`
	Txid       string      `json:"txid"`
	Side       domain.Side `json:"side"`
	Price      float64     `json:"price"`
	Volume     float64     `json:"volume"`
	Fee        float64     `json:"fee"`
	Timestamp  float64     `json:"timestamp"`
}

func (RecoveryFillEvent) Type() Type      { return TypeRecoveryFill }
func (e RecoveryFillEvent) Time() float64 { return e.Timestamp }

// RecoveryCancelEvent removes a recovery order from tracking without
// booking anything (manual or administrative cancellation).
type RecoveryCancelEvent struct {
	RecoveryID int64   `json:"recovery_id"`
	Txid       string  `json:"txid"`
	Timestamp  float64 `json:"timestamp"`
}

func (RecoveryCancelEvent) Type() Type      { return TypeRecoveryCancel }
func (e RecoveryCancelEvent) Time() float64 { return e.Timestamp }
