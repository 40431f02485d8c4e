package core

import (
	"context"
	"log/slog"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/infra"
)

// FallbackBackend tries a remote backend first and reruns the call on the
// local reducer when the remote fails. No event is ever dropped because the
// external process was slow, dead, or talking garbage; the failure is
// logged and counted, never surfaced to trading logic.
type FallbackBackend struct {
	remote  Backend
	local   Backend
	metrics *infra.Metrics
}

func NewFallbackBackend(remote Backend, local Backend, metrics *infra.Metrics) *FallbackBackend {
	if local == nil {
		local = NewLocalBackend()
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &FallbackBackend{remote: remote, local: local, metrics: metrics}
}

func (b *FallbackBackend) Name() string { return b.remote.Name() + "+fallback" }

func (b *FallbackBackend) Close() error {
	err := b.remote.Close()
	if lerr := b.local.Close(); err == nil {
		err = lerr
	}
	return err
}

func (b *FallbackBackend) Transition(ctx context.Context, state domain.PairState, ev event.Event, cfg domain.EngineConfig) (TransitionResult, error) {
	res, err := b.remote.Transition(ctx, state, ev, cfg)
	if err == nil {
		return res, nil
	}
	b.metrics.RecordTransportFallback()
	slog.Warn("remote transition failed, using local reducer",
		slog.String("backend", b.remote.Name()),
		slog.String("event", string(ev.Type())),
		slog.String("error", err.Error()))
	return b.local.Transition(ctx, state, ev, cfg)
}

func (b *FallbackBackend) CheckInvariants(ctx context.Context, state domain.PairState, cfg domain.EngineConfig) ([]domain.Violation, error) {
	violations, err := b.remote.CheckInvariants(ctx, state, cfg)
	if err == nil {
		return violations, nil
	}
	b.metrics.RecordTransportFallback()
	slog.Warn("remote invariant check failed, using local checker",
		slog.String("backend", b.remote.Name()),
		slog.String("error", err.Error()))
	return b.local.CheckInvariants(ctx, state, cfg)
}
