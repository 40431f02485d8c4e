package event

import (
	"sync"
)

// Envelope wraps an Event with the slot it targets and the monotonically
// increasing sequence number the host assigns on ingestion. The sequencer
// uses Seq to detect dropped inbox items.
type Envelope struct {
	Seq  uint64
	Slot int
	Ev   Event
}

// envelopePool provides sync.Pool for high-frequency envelope allocation.
// Use this to reduce GC pressure in the hotpath.
//
// Usage:
//
//	env := AcquireEnvelope()
//	env.Seq = seq
//	env.Ev = ev
//	// ... process ...
//	ReleaseEnvelope(env)  // Return to pool after processing
var envelopePool = sync.Pool{
	New: func() interface{} {
		return &Envelope{}
	},
}

// AcquireEnvelope gets an Envelope from the pool.
// The returned envelope has zero values and must be initialized.
func AcquireEnvelope() *Envelope {
	return envelopePool.Get().(*Envelope)
}

// ReleaseEnvelope returns an Envelope to the pool.
// The envelope is reset to zero values before being pooled.
func ReleaseEnvelope(env *Envelope) {
	if env == nil {
		return
	}
	env.Seq = 0
	env.Slot = 0
	env.Ev = nil

	envelopePool.Put(env)
}

// Warmup pre-allocates envelopes to reduce GC pressure at startup.
// It acquires and releases a batch.
func Warmup() {
	const batchSize = 1000

	envs := make([]*Envelope, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		envs = append(envs, AcquireEnvelope())
	}
	for _, env := range envs {
		ReleaseEnvelope(env)
	}
}
