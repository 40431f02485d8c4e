package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	transitions         atomic.Uint64
	actionsEmitted      atomic.Uint64
	cyclesBooked        atomic.Uint64
	orphans             atomic.Uint64
	evictions           atomic.Uint64
	diagnostics         atomic.Uint64
	invariantViolations atomic.Uint64
	shadowChecks        atomic.Uint64
	shadowDivergences   atomic.Uint64
	transportFallbacks  atomic.Uint64

	// Latency tracking for reducer calls
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeSlots       atomic.Int32
	recoveryOrders    atomic.Int32
	lastDivergenceSec atomic.Int64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTransition records one reducer call with its latency and output
// sizes.
func (m *Metrics) RecordTransition(latencyNs int64, actions, diagnostics int) {
	m.transitions.Add(1)
	m.actionsEmitted.Add(uint64(actions))
	m.diagnostics.Add(uint64(diagnostics))
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordCycleBooked records a completed round trip.
func (m *Metrics) RecordCycleBooked() {
	m.cyclesBooked.Add(1)
}

// RecordOrphan records an exit converted to a recovery order.
func (m *Metrics) RecordOrphan() {
	m.orphans.Add(1)
}

// RecordEviction records a recovery order force-closed by the cap.
func (m *Metrics) RecordEviction() {
	m.evictions.Add(1)
}

// RecordInvariantViolations records violations found by a checker pass.
func (m *Metrics) RecordInvariantViolations(n int) {
	if n > 0 {
		m.invariantViolations.Add(uint64(n))
	}
}

// RecordShadowCheck records one shadow comparison and its outcome.
func (m *Metrics) RecordShadowCheck(diverged bool) {
	m.shadowChecks.Add(1)
	if diverged {
		m.shadowDivergences.Add(1)
		m.lastDivergenceSec.Store(time.Now().Unix())
	}
}

// RecordTransportFallback records a remote backend call that fell back to
// the local reducer.
func (m *Metrics) RecordTransportFallback() {
	m.transportFallbacks.Add(1)
}

// SetActiveSlots sets the current slot count.
func (m *Metrics) SetActiveSlots(count int32) {
	m.activeSlots.Store(count)
}

// SetRecoveryOrders sets the current total standing recovery count.
func (m *Metrics) SetRecoveryOrders(count int32) {
	m.recoveryOrders.Store(count)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Transitions         uint64
	ActionsEmitted      uint64
	CyclesBooked        uint64
	Orphans             uint64
	Evictions           uint64
	Diagnostics         uint64
	InvariantViolations uint64
	ShadowChecks        uint64
	ShadowDivergences   uint64
	TransportFallbacks  uint64
	AvgLatencyNs        int64
	ActiveSlots         int32
	RecoveryOrders      int32
	LastDivergence      time.Time
	Timestamp           time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	var lastDivergence time.Time
	if sec := m.lastDivergenceSec.Load(); sec > 0 {
		lastDivergence = time.Unix(sec, 0)
	}

	return MetricsSnapshot{
		Transitions:         m.transitions.Load(),
		ActionsEmitted:      m.actionsEmitted.Load(),
		CyclesBooked:        m.cyclesBooked.Load(),
		Orphans:             m.orphans.Load(),
		Evictions:           m.evictions.Load(),
		Diagnostics:         m.diagnostics.Load(),
		InvariantViolations: m.invariantViolations.Load(),
		ShadowChecks:        m.shadowChecks.Load(),
		ShadowDivergences:   m.shadowDivergences.Load(),
		TransportFallbacks:  m.transportFallbacks.Load(),
		AvgLatencyNs:        avgLatency,
		ActiveSlots:         m.activeSlots.Load(),
		RecoveryOrders:      m.recoveryOrders.Load(),
		LastDivergence:      lastDivergence,
		Timestamp:           time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.transitions.Store(0)
	m.actionsEmitted.Store(0)
	m.cyclesBooked.Store(0)
	m.orphans.Store(0)
	m.evictions.Store(0)
	m.diagnostics.Store(0)
	m.invariantViolations.Store(0)
	m.shadowChecks.Store(0)
	m.shadowDivergences.Store(0)
	m.transportFallbacks.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeSlots.Store(0)
	m.recoveryOrders.Store(0)
	m.lastDivergenceSec.Store(0)
}
