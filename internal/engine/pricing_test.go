package engine_test

import (
	"testing"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/engine"
)

func TestEntryBackoffMultiplier(t *testing.T) {
	cfg := domain.DefaultEngineConfig()
	cfg.LossBackoffStart = 3
	cfg.BackoffFactor = 0.5
	cfg.BackoffMaxMultiplier = 5.0

	cases := []struct {
		losses int
		want   float64
	}{
		{0, 1.0},
		{2, 1.0},
		{3, 1.5},
		{4, 2.0},
		{7, 3.5},
		{20, 5.0}, // clamped
	}
	for _, c := range cases {
		if got := engine.EntryBackoffMultiplier(c.losses, cfg); got != c.want {
			t.Errorf("multiplier(%d) = %v, want %v", c.losses, got, c.want)
		}
	}
}

func TestComputeOrderVolume(t *testing.T) {
	cfg := domain.DefaultEngineConfig()
	cfg.VolumeDecimals = 0
	cfg.MinVolume = 13
	cfg.MinCostUSD = 0

	t.Run("rounds to whole units", func(t *testing.T) {
		vol, ok := engine.ComputeOrderVolume(0.10, cfg, 2.0)
		if !ok || vol != 20 {
			t.Fatalf("vol = %v ok = %v, want 20", vol, ok)
		}
	})

	t.Run("below minimum volume waits", func(t *testing.T) {
		// 2 USD at 0.20 is 10 units, under the 13 minimum. Sizes are
		// never raised to the minimum.
		if vol, ok := engine.ComputeOrderVolume(0.20, cfg, 2.0); ok {
			t.Fatalf("undersized order allowed: %v", vol)
		}
	})

	t.Run("below minimum notional waits", func(t *testing.T) {
		c := cfg
		c.MinCostUSD = 5.0
		if vol, ok := engine.ComputeOrderVolume(0.10, c, 2.0); ok {
			t.Fatalf("under-notional order allowed: %v", vol)
		}
	})

	t.Run("invalid inputs", func(t *testing.T) {
		if _, ok := engine.ComputeOrderVolume(0, cfg, 2.0); ok {
			t.Error("zero price accepted")
		}
		if _, ok := engine.ComputeOrderVolume(0.10, cfg, 0); ok {
			t.Error("zero notional accepted")
		}
	})

	t.Run("fractional decimals", func(t *testing.T) {
		c := cfg
		c.VolumeDecimals = 2
		c.MinVolume = 0.1
		vol, ok := engine.ComputeOrderVolume(3.0, c, 2.0)
		if !ok || !approx(vol, 0.67) {
			t.Fatalf("vol = %v ok = %v, want 0.67", vol, ok)
		}
	})
}

func TestBootstrapDegradesToDirectionalMode(t *testing.T) {
	cfg := testConfig()
	cfg.MinVolume = 15

	// At this price the notional sizes to 20 units, above the minimum,
	// so both sides fund and no suppression applies.
	st, actions := engine.BootstrapOrders(domain.NewPairState(0.10, 50), cfg)
	if len(actions) != 2 {
		t.Fatalf("bootstrap placed %d orders, want 2", len(actions))
	}
	if st.LongOnly || st.ShortOnly {
		t.Errorf("unexpected suppression: long=%v short=%v", st.LongOnly, st.ShortOnly)
	}
	if st.LongOnlySource != domain.ModeSourceNone {
		t.Errorf("source = %s", st.LongOnlySource)
	}

	// Starved config funds nothing: the slot stays empty rather than
	// placing undersized orders.
	lean := cfg
	lean.OrderSizeUSD = 0.5
	st, actions = engine.BootstrapOrders(domain.NewPairState(0.10, 50), lean)
	if len(actions) != 0 {
		t.Fatalf("underfunded bootstrap placed %d orders", len(actions))
	}
	if len(st.Orders) != 0 {
		t.Errorf("orders tracked without placement")
	}
}
