package infra

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// Config holds the full application configuration. Values load from YAML
// and sensitive or deployment-specific entries can be overridden through
// environment variables afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		Pair    string `yaml:"pair"`
		Slots   int    `yaml:"slots"`
	} `yaml:"app"`

	Engine domain.EngineConfig `yaml:"engine"`

	Capital struct {
		TargetLayers int     `yaml:"target_layers"`
		BaseOrderUSD float64 `yaml:"base_order_usd"`
		PerLayerUSD  float64 `yaml:"per_layer_usd"`
		BasePerOrder float64 `yaml:"base_per_order"`
		Buffer       float64 `yaml:"buffer"`
	} `yaml:"capital"`

	Backend struct {
		Mode       string  `yaml:"mode"` // local | subprocess
		ExePath    string  `yaml:"exe_path"`
		TimeoutSec float64 `yaml:"timeout_sec"`
		Persistent bool    `yaml:"persistent"`
		Shadow     bool    `yaml:"shadow"`
	} `yaml:"backend"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Sim struct {
		InitialBaseBalance  float64 `yaml:"initial_base_balance"`
		InitialQuoteBalance float64 `yaml:"initial_quote_balance"`
		StartPrice          float64 `yaml:"start_price"`
		PriceTickMS         int     `yaml:"price_tick_ms"`
		TimerTickSec        int     `yaml:"timer_tick_sec"`
		FeePct              float64 `yaml:"fee_pct"`
	} `yaml:"sim"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{Engine: domain.DefaultEngineConfig()}
	cfg.App.Name = "grid-core"
	cfg.App.Pair = "DOGE/USD"
	cfg.App.Slots = 1
	cfg.Capital.TargetLayers = 3
	cfg.Capital.BaseOrderUSD = 2.0
	cfg.Capital.PerLayerUSD = 1.0
	cfg.Capital.BasePerOrder = 13.0
	cfg.Capital.Buffer = 1.05
	cfg.Backend.Mode = "local"
	cfg.Backend.TimeoutSec = 5
	cfg.Backend.Persistent = true
	cfg.Storage.Path = "data/grid.db"
	cfg.Sim.InitialBaseBalance = 500
	cfg.Sim.InitialQuoteBalance = 50
	cfg.Sim.StartPrice = 0.1
	cfg.Sim.PriceTickMS = 1000
	cfg.Sim.TimerTickSec = 5
	cfg.Sim.FeePct = 0.25
	cfg.Logging.Level = "info"
	return cfg
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.App.Slots <= 0 {
		return &domain.ConfigError{Field: "app.slots", Err: fmt.Errorf("must be positive, got %d", c.App.Slots)}
	}
	if c.Engine.EntryPct <= 0 || c.Engine.ProfitPct <= 0 {
		return &domain.ConfigError{Field: "engine", Err: fmt.Errorf("entry_pct and profit_pct must be positive")}
	}
	if c.Engine.PriceDecimals < 0 || c.Engine.PriceDecimals > 12 {
		return &domain.ConfigError{Field: "engine.price_decimals", Err: fmt.Errorf("out of range: %d", c.Engine.PriceDecimals)}
	}
	if c.Engine.MaxRecoveryOrders < 0 {
		return &domain.ConfigError{Field: "engine.max_recovery_orders", Err: fmt.Errorf("must not be negative")}
	}
	if c.Capital.TargetLayers < 0 {
		return &domain.ConfigError{Field: "capital.target_layers", Err: fmt.Errorf("must not be negative")}
	}
	if c.Capital.BasePerOrder <= 0 {
		return &domain.ConfigError{Field: "capital.base_per_order", Err: fmt.Errorf("must be positive")}
	}
	if c.Capital.Buffer < 1 {
		return &domain.ConfigError{Field: "capital.buffer", Err: fmt.Errorf("must be >= 1, got %g", c.Capital.Buffer)}
	}
	switch c.Backend.Mode {
	case "local", "subprocess":
	default:
		return &domain.ConfigError{Field: "backend.mode", Err: fmt.Errorf("unknown mode %q", c.Backend.Mode)}
	}
	if c.Backend.Mode == "subprocess" && c.Backend.ExePath == "" {
		return &domain.ConfigError{Field: "backend.exe_path", Err: fmt.Errorf("required in subprocess mode")}
	}
	if c.Storage.Path == "" {
		return &domain.ConfigError{Field: "storage.path", Err: fmt.Errorf("required")}
	}
	return nil
}

// overrideWithEnv applies environment overrides for deployment knobs.
func overrideWithEnv(cfg *Config) {
	if mode := os.Getenv("GRID_CORE_BACKEND"); mode != "" {
		cfg.Backend.Mode = mode
	}
	if exe := os.Getenv("GRID_CORE_EXE"); exe != "" {
		cfg.Backend.ExePath = exe
	}
	if raw := os.Getenv("GRID_CORE_TIMEOUT_SEC"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			cfg.Backend.TimeoutSec = v
		}
	}
	if raw := os.Getenv("GRID_CORE_PERSISTENT"); raw != "" {
		cfg.Backend.Persistent = raw != "0" && raw != "false" && raw != "no" && raw != "off"
	}
	if raw := os.Getenv("GRID_CORE_SHADOW"); raw != "" {
		cfg.Backend.Shadow = raw == "1" || raw == "true" || raw == "yes" || raw == "on"
	}
	if path := os.Getenv("GRID_CORE_DB"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("GRID_CORE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
