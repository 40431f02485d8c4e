// Package core routes reducer calls to an implementation. The default is
// the in-process reducer; an external process speaking the JSON line
// protocol can be swapped in, shadow-compared, or used with automatic
// fallback so the host loop never depends on the external process being
// healthy.
package core

import (
	"context"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

// Backend is one implementation of the decision core.
type Backend interface {
	// Transition applies one event to one slot's state.
	Transition(ctx context.Context, state domain.PairState, ev event.Event, cfg domain.EngineConfig) (TransitionResult, error)

	// CheckInvariants validates a state snapshot.
	CheckInvariants(ctx context.Context, state domain.PairState, cfg domain.EngineConfig) ([]domain.Violation, error)

	// Name identifies the backend in logs and metrics.
	Name() string

	// Close releases any held resources (child processes, pipes).
	Close() error
}

// TransitionResult bundles one reducer call's outputs.
type TransitionResult struct {
	State       domain.PairState
	Actions     []domain.Action
	Diagnostics []domain.Diagnostic
}
