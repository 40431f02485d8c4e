package strategy

import (
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// SMACrossSignal classifies regime from the spread between a short and a
// long simple moving average. Short above long by more than the band is
// bullish, below by more than the band is bearish, inside the band is
// ranging.
// It is stateful and deterministic.
// OPTIMIZED: Uses a Ring Buffer to ensure Zero-Alloc in the hotpath.
type SMACrossSignal struct {
	shortPeriod int
	longPeriod  int
	bandPct     float64 // spread threshold in percent of the long SMA

	// State (Ring Buffer)
	prices []float64
	head   int     // Current write position
	count  int     // Number of elements filled
	sum    float64 // Running sum for the longest period (optimization)
}

// NewSMACrossSignal creates a new instance. bandPct is the dead band in
// percent; a spread inside it reads as ranging rather than flapping
// between bullish and bearish on every tick.
func NewSMACrossSignal(shortPeriod, longPeriod int, bandPct float64) *SMACrossSignal {
	if shortPeriod >= longPeriod {
		panic("SMACrossSignal: shortPeriod must be less than longPeriod")
	}
	if bandPct < 0 {
		bandPct = 0
	}
	return &SMACrossSignal{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		bandPct:     bandPct,
		prices:      make([]float64, longPeriod), // Fixed size allocation
	}
}

// OnPrice ingests one observed price and returns the current regime.
func (s *SMACrossSignal) OnPrice(price float64) domain.Regime {
	if price <= 0 {
		return s.classify()
	}

	// Update Price History (Ring Buffer)
	// If full, subtract the oldest value from sum before overwriting
	if s.count == s.longPeriod {
		s.sum -= s.prices[s.head] // s.head points to the oldest value when full
	}

	s.prices[s.head] = price
	s.sum += price
	s.head = (s.head + 1) % s.longPeriod

	if s.count < s.longPeriod {
		s.count++
	}

	return s.classify()
}

func (s *SMACrossSignal) classify() domain.Regime {
	if s.count < s.longPeriod {
		return domain.RegimeUnknown
	}

	longSMA := s.sum / float64(s.longPeriod)
	shortSMA := s.shortSMA()
	if longSMA <= 0 {
		return domain.RegimeUnknown
	}

	spreadPct := (shortSMA - longSMA) / longSMA * 100
	switch {
	case spreadPct > s.bandPct:
		return domain.RegimeBullish
	case spreadPct < -s.bandPct:
		return domain.RegimeBearish
	default:
		return domain.RegimeRanging
	}
}

// shortSMA averages the most recent shortPeriod entries of the ring buffer.
func (s *SMACrossSignal) shortSMA() float64 {
	var sum float64
	// Walk backwards from current head (which points to next write slot, so head-1 is latest)
	idx := s.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum += s.prices[idx]
	}
	return sum / float64(s.shortPeriod)
}
