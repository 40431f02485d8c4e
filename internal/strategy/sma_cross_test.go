package strategy_test

import (
	"testing"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/strategy"
)

func TestSMACrossSignal(t *testing.T) {
	// Setup: Short=3, Long=5, band=1%
	sig := strategy.NewSMACrossSignal(3, 5, 1.0)

	// Sequence:
	// T1-T4: 100 -> buffer warming up, regime unknown
	// T5: 100 -> [100 x5]. Short=100, Long=100, spread 0% => RANGING
	for i := 1; i <= 4; i++ {
		if got := sig.OnPrice(100); got != domain.RegimeUnknown {
			t.Errorf("T%d: regime = %s, want unknown during warmup", i, got)
		}
	}
	if got := sig.OnPrice(100); got != domain.RegimeRanging {
		t.Errorf("T5: regime = %s, want ranging", got)
	}

	// T6: Price jumps to 200
	//    Short(3) = (100+100+200)/3 = 133.33
	//    Long(5)  = (100+100+100+100+200)/5 = 120
	//    Spread = +11.1% > 1% band => BULLISH
	if got := sig.OnPrice(200); got != domain.RegimeBullish {
		t.Errorf("T6: regime = %s, want bullish", got)
	}

	// T7: Price drops to 50
	//    Prices: [100, 100, 100, 200, 50]
	//    Short(3) = (100+200+50)/3 = 116.67
	//    Long(5)  = (100+100+100+200+50)/5 = 110
	//    Spread = +6.1% => still BULLISH, no flap
	if got := sig.OnPrice(50); got != domain.RegimeBullish {
		t.Errorf("T7: regime = %s, want bullish", got)
	}

	// T8-T9: Two more 50s
	//    Prices: [100, 200, 50, 50, 50]
	//    Short(3) = 50, Long(5) = 90, spread = -44% => BEARISH
	sig.OnPrice(50)
	if got := sig.OnPrice(50); got != domain.RegimeBearish {
		t.Errorf("T9: regime = %s, want bearish", got)
	}
}

func TestSMACrossDeadBand(t *testing.T) {
	// Wide 5% band: small drifts must read as ranging.
	sig := strategy.NewSMACrossSignal(2, 4, 5.0)

	var got domain.Regime
	for _, p := range []float64{100, 100, 100, 100} {
		got = sig.OnPrice(p)
	}
	if got != domain.RegimeRanging {
		t.Fatalf("flat tape: regime = %s, want ranging", got)
	}

	// Prices: [100, 100, 100, 102]
	// Short(2) = 101, Long(4) = 100.5, spread = +0.497% < 5% band
	if got := sig.OnPrice(102); got != domain.RegimeRanging {
		t.Errorf("small drift: regime = %s, want ranging", got)
	}
}

func TestSMACrossIgnoresBadPrices(t *testing.T) {
	sig := strategy.NewSMACrossSignal(2, 3, 0)

	sig.OnPrice(100)
	sig.OnPrice(100)
	// Zero and negative prices must not enter the buffer.
	if got := sig.OnPrice(0); got != domain.RegimeUnknown {
		t.Errorf("zero price advanced the buffer: %s", got)
	}
	if got := sig.OnPrice(-5); got != domain.RegimeUnknown {
		t.Errorf("negative price advanced the buffer: %s", got)
	}
	// Third real price completes the window.
	if got := sig.OnPrice(100); got != domain.RegimeRanging {
		t.Errorf("regime = %s, want ranging after third price", got)
	}
}

func TestSMACrossRejectsInvertedPeriods(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("short >= long did not panic")
		}
	}()
	strategy.NewSMACrossSignal(5, 5, 0)
}
