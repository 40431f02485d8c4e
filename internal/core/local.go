package core

import (
	"context"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/engine"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

// LocalBackend runs the in-process reducer. It is the authoritative
// implementation and the fallback target for every other backend; it
// never returns an error.
type LocalBackend struct{}

func NewLocalBackend() *LocalBackend { return &LocalBackend{} }

func (*LocalBackend) Name() string { return "local" }

func (*LocalBackend) Close() error { return nil }

func (*LocalBackend) Transition(_ context.Context, state domain.PairState, ev event.Event, cfg domain.EngineConfig) (TransitionResult, error) {
	next, actions, diags := engine.Transition(state, ev, cfg)
	return TransitionResult{State: next, Actions: actions, Diagnostics: diags}, nil
}

func (*LocalBackend) CheckInvariants(_ context.Context, state domain.PairState, cfg domain.EngineConfig) ([]domain.Violation, error) {
	return engine.CheckInvariants(state, cfg), nil
}
