package core

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/codec"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/infra"
)

// ShadowBackend runs every call against a primary and a shadow
// implementation and compares the encoded results. The primary's answer is
// always the one returned; divergences and shadow failures only feed
// metrics and logs. This is how an alternate core implementation earns
// trust before being promoted to primary.
type ShadowBackend struct {
	primary Backend
	shadow  Backend
	metrics *infra.Metrics
}

func NewShadowBackend(primary, shadow Backend, metrics *infra.Metrics) *ShadowBackend {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &ShadowBackend{primary: primary, shadow: shadow, metrics: metrics}
}

func (b *ShadowBackend) Name() string { return b.primary.Name() + "+shadow:" + b.shadow.Name() }

func (b *ShadowBackend) Close() error {
	err := b.primary.Close()
	if serr := b.shadow.Close(); err == nil {
		err = serr
	}
	return err
}

func (b *ShadowBackend) Transition(ctx context.Context, state domain.PairState, ev event.Event, cfg domain.EngineConfig) (TransitionResult, error) {
	res, err := b.primary.Transition(ctx, state, ev, cfg)
	if err != nil {
		return res, err
	}

	shadowRes, shadowErr := b.shadow.Transition(ctx, state, ev, cfg)
	if shadowErr != nil {
		b.metrics.RecordShadowCheck(false)
		slog.Warn("shadow transition failed",
			slog.String("backend", b.shadow.Name()),
			slog.String("error", shadowErr.Error()))
		return res, nil
	}

	diverged := !transitionResultsEqual(res, shadowRes)
	b.metrics.RecordShadowCheck(diverged)
	if diverged {
		slog.Warn("shadow transition divergence",
			slog.String("backend", b.shadow.Name()),
			slog.String("event", string(ev.Type())))
	}
	return res, nil
}

func (b *ShadowBackend) CheckInvariants(ctx context.Context, state domain.PairState, cfg domain.EngineConfig) ([]domain.Violation, error) {
	violations, err := b.primary.CheckInvariants(ctx, state, cfg)
	if err != nil {
		return violations, err
	}

	shadowViolations, shadowErr := b.shadow.CheckInvariants(ctx, state, cfg)
	if shadowErr != nil {
		b.metrics.RecordShadowCheck(false)
		slog.Warn("shadow invariant check failed",
			slog.String("backend", b.shadow.Name()),
			slog.String("error", shadowErr.Error()))
		return violations, nil
	}

	diverged := !violationsEqual(violations, shadowViolations)
	b.metrics.RecordShadowCheck(diverged)
	if diverged {
		slog.Warn("shadow invariant divergence", slog.String("backend", b.shadow.Name()))
	}
	return violations, nil
}

// transitionResultsEqual compares results in wire form so both sides are
// judged by what they would put on the boundary, not by in-memory layout.
func transitionResultsEqual(a, b TransitionResult) bool {
	aState, errA := codec.EncodeState(a.State)
	bState, errB := codec.EncodeState(b.State)
	if errA != nil || errB != nil {
		return false
	}
	if !bytes.Equal(aState, bState) {
		return false
	}
	if len(a.Actions) != len(b.Actions) {
		return false
	}
	for i := range a.Actions {
		// Wire forms hold pointers, so compare their JSON encodings.
		aw, errA := json.Marshal(codec.EncodeAction(a.Actions[i]))
		bw, errB := json.Marshal(codec.EncodeAction(b.Actions[i]))
		if errA != nil || errB != nil || !bytes.Equal(aw, bw) {
			return false
		}
	}
	return true
}

func violationsEqual(a, b []domain.Violation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
