package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Venue struct {
		Adapter         string  `yaml:"adapter"` // "paper"
		StartingBalance float64 `yaml:"starting_balance"`
		Seed            int64   `yaml:"seed"`
	} `yaml:"venue"`

	Trading struct {
		Instruments       []string  `yaml:"instruments"`
		Timeframe         string    `yaml:"timeframe"`
		CandleCount       int       `yaml:"candle_count"`
		RiskPct           float64   `yaml:"risk_pct"`
		CooldownMinutes   int       `yaml:"cooldown_minutes"`
		MaxCascadeLevels  int       `yaml:"max_cascade_levels"`
		Multipliers       []float64 `yaml:"multipliers"`
		InstrumentPauseMs int       `yaml:"instrument_pause_ms"`
		CyclePauseMs      int       `yaml:"cycle_pause_ms"`
		Strategy          string    `yaml:"strategy"`
		DebugMode         bool      `yaml:"debug_mode"`
	} `yaml:"trading"`

	Exits struct {
		DrawdownFloor      float64 `yaml:"drawdown_floor"`
		ProfitTargetMult   float64 `yaml:"profit_target_mult"`
		DivergenceLookback int     `yaml:"divergence_lookback"`
		LevelTolerancePips float64 `yaml:"level_tolerance_pips"`
	} `yaml:"exits"`

	Advisor struct {
		Enabled       bool    `yaml:"enabled"`
		Endpoint      string  `yaml:"endpoint"`
		MinConfidence float64 `yaml:"min_confidence"`
		TimeoutMs     int     `yaml:"timeout_ms"`
	} `yaml:"advisor"`

	Storage struct {
		DBPath       string `yaml:"db_path"`
		TradeLogPath string `yaml:"trade_log_path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Venue.Adapter == "" {
		c.Venue.Adapter = "paper"
	}
	if c.Venue.StartingBalance <= 0 {
		c.Venue.StartingBalance = 10000
	}
	if len(c.Trading.Instruments) == 0 {
		c.Trading.Instruments = []string{"EURUSD"}
	}
	if c.Trading.Timeframe == "" {
		c.Trading.Timeframe = "M5"
	}
	if c.Trading.CandleCount <= 0 {
		c.Trading.CandleCount = 260
	}
	if c.Trading.RiskPct <= 0 {
		c.Trading.RiskPct = 0.02
	}
	if c.Trading.CooldownMinutes <= 0 {
		c.Trading.CooldownMinutes = 60
	}
	if c.Trading.InstrumentPauseMs <= 0 {
		c.Trading.InstrumentPauseMs = 250
	}
	if c.Trading.CyclePauseMs <= 0 {
		c.Trading.CyclePauseMs = 30000
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "trader.db"
	}
	if c.Storage.TradeLogPath == "" {
		c.Storage.TradeLogPath = "trades.jsonl"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Advisor.MinConfidence <= 0 {
		c.Advisor.MinConfidence = 0.7
	}
	if c.Advisor.TimeoutMs <= 0 {
		c.Advisor.TimeoutMs = 5000
	}
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Trading.CooldownMinutes) * time.Minute
}

func (c *Config) InstrumentPause() time.Duration {
	return time.Duration(c.Trading.InstrumentPauseMs) * time.Millisecond
}

func (c *Config) CyclePause() time.Duration {
	return time.Duration(c.Trading.CyclePauseMs) * time.Millisecond
}
