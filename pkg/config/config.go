package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Redis struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"5"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	Bus struct {
		Group        string        `yaml:"group" default:"sigfuse"`
		Consumer     string        `yaml:"consumer" default:"sigfuse-1"`
		ReadBlock    time.Duration `yaml:"read_block" default:"500ms"`
		ReadCount    int           `yaml:"read_count" default:"50"`
		MaxStreamLen int64         `yaml:"max_stream_len" default:"100000"`
	} `yaml:"bus"`
	Pipeline struct {
		TriggerThreshold float64       `yaml:"trigger_threshold" default:"40"`
		WindowSeconds    float64       `yaml:"window_seconds" default:"2"`
		SweepInterval    time.Duration `yaml:"sweep_interval" default:"75ms"`
		DedupCapacity    int           `yaml:"dedup_capacity" default:"10000"`
		BatchSize        int           `yaml:"batch_size" default:"50"`
		BonusPerSource   float64       `yaml:"bonus_per_source" default:"10"`
		MaxMultiBonus    float64       `yaml:"max_multi_bonus" default:"30"`
		// Freshness step function: elapsed-seconds upper bounds and the
		// multiplier applied below each bound; the zero-bound entry is the floor.
		FreshnessSteps []FreshnessStep `yaml:"freshness_steps"`
		MaxSourceRPS   int             `yaml:"max_source_rps" default:"20"`
		BufferSize     int             `yaml:"buffer_size" default:"1000"`
	} `yaml:"pipeline"`
	Exchanges struct {
		// Weight table, 0-100 per exchange; unknown exchanges fall back to
		// default_weight.
		Weights       map[string]float64 `yaml:"weights"`
		DefaultWeight float64            `yaml:"default_weight" default:"30"`
		Tier1         []string           `yaml:"tier1"`
		Preferred     []string           `yaml:"preferred"`
	} `yaml:"exchanges"`
	Sources struct {
		TierS []string `yaml:"tier_s"`
		TierA []string `yaml:"tier_a"`
	} `yaml:"sources"`
	Routing struct {
		LockTTL         time.Duration `yaml:"lock_ttl" default:"10s"`
		DexKeywords     []string      `yaml:"dex_keywords"`
		SpeculativeMin  float64       `yaml:"speculative_min" default:"80"`
		DefaultChain    string        `yaml:"default_chain" default:"ethereum"`
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"5m"`
	} `yaml:"routing"`
	Risk struct {
		TotalCapital        float64       `yaml:"total_capital" default:"10000"`
		MaxSingleTradePct   float64       `yaml:"max_single_trade_pct" default:"5"`
		MaxSymbolExposure   float64       `yaml:"max_symbol_exposure_pct" default:"10"`
		MaxTotalExposure    float64       `yaml:"max_total_exposure_pct" default:"50"`
		MinTradeAmount      float64       `yaml:"min_trade_amount" default:"10"`
		StopLossPct         float64       `yaml:"stop_loss_pct" default:"5"`
		DailyLossLimit      float64       `yaml:"daily_loss_limit" default:"500"`
		MaxDailyTrades      int           `yaml:"max_daily_trades" default:"40"`
		DrawdownReducePct   float64       `yaml:"drawdown_reduce_pct" default:"10"`
		DrawdownHaltPct     float64       `yaml:"drawdown_halt_pct" default:"20"`
		CooldownLosses      int           `yaml:"cooldown_losses" default:"3"`
		CooldownBase        time.Duration `yaml:"cooldown_base" default:"5m"`
		CooldownMax         time.Duration `yaml:"cooldown_max" default:"1h"`
		KellyMinFraction    float64       `yaml:"kelly_min_fraction" default:"0.01"`
		KellyMaxFraction    float64       `yaml:"kelly_max_fraction" default:"0.10"`
		StaticBlacklist     []string      `yaml:"static_blacklist"`
		DynamicBlacklistTTL time.Duration `yaml:"dynamic_blacklist_ttl" default:"24h"`
	} `yaml:"risk"`
	Execution struct {
		DryRun          bool          `yaml:"dry_run" default:"true"`
		CallTimeout     time.Duration `yaml:"call_timeout" default:"3s"`
		RetryMax        int           `yaml:"retry_max" default:"2"`
		DirectoryURL    string        `yaml:"directory_url"`
		QuoteURL        string        `yaml:"quote_url"`
		SafetyURL       string        `yaml:"safety_url"`
		ResolverURL     string        `yaml:"resolver_url"`
		OrderGatewayURL string        `yaml:"order_gateway_url"`
	} `yaml:"execution"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		AuditTopic   string   `yaml:"audit_topic" default:"trades.executed"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Consumer     struct {
			GroupID    string        `yaml:"group_id" default:"sigfuse-audit"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"sigfuse"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Notifications struct {
		Topic          string        `yaml:"topic" default:"notifications.alerts"`
		FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
		CountThreshold int           `yaml:"count_threshold" default:"100"`
	} `yaml:"notifications"`
}

// FreshnessStep is one step of the non-increasing freshness function.
type FreshnessStep struct {
	WithinSeconds float64 `yaml:"within_seconds"`
	Multiplier    float64 `yaml:"multiplier"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyFallbacks()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		c.Execution.DryRun = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("BUS_CONSUMER"); v != "" {
		c.Bus.Consumer = v
	}

	return c, nil
}

// Default returns a config with defaults applied and no file loaded.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	c.applyFallbacks()
	return &c
}

// applyFallbacks fills slice/map fields struct defaults cannot express.
func (c *Config) applyFallbacks() {
	if len(c.Pipeline.FreshnessSteps) == 0 {
		c.Pipeline.FreshnessSteps = []FreshnessStep{
			{WithinSeconds: 30, Multiplier: 1.3},
			{WithinSeconds: 120, Multiplier: 1.0},
			{WithinSeconds: 300, Multiplier: 0.8},
			{WithinSeconds: 0, Multiplier: 0.5}, // floor
		}
	}
	if len(c.Exchanges.Weights) == 0 {
		c.Exchanges.Weights = map[string]float64{
			"binance":  100,
			"upbit":    95,
			"coinbase": 90,
			"okx":      80,
			"bybit":    75,
			"kucoin":   60,
			"gate":     55,
			"bitget":   50,
			"mexc":     40,
		}
	}
	if len(c.Exchanges.Tier1) == 0 {
		c.Exchanges.Tier1 = []string{"binance", "upbit", "coinbase"}
	}
	if len(c.Exchanges.Preferred) == 0 {
		c.Exchanges.Preferred = []string{"binance", "okx", "bybit", "gate", "mexc"}
	}
	if len(c.Sources.TierS) == 0 {
		c.Sources.TierS = []string{"binance_announcement", "upbit_notice", "tg_alpha_intel"}
	}
	if len(c.Routing.DexKeywords) == 0 {
		c.Routing.DexKeywords = []string{"uniswap", "pancakeswap", "raydium", "dex", "liquidity pool", "fair launch"}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Pipeline.TriggerThreshold <= 0 {
		return fmt.Errorf("pipeline.trigger_threshold must be positive")
	}
	if c.Pipeline.WindowSeconds <= 0 {
		return fmt.Errorf("pipeline.window_seconds must be positive")
	}
	if c.Pipeline.DedupCapacity <= 0 {
		return fmt.Errorf("pipeline.dedup_capacity must be positive")
	}
	if c.Routing.LockTTL <= 0 {
		return fmt.Errorf("routing.lock_ttl must be positive")
	}
	if c.Risk.TotalCapital <= 0 {
		return fmt.Errorf("risk.total_capital must be positive")
	}
	if c.Risk.DrawdownHaltPct <= c.Risk.DrawdownReducePct {
		return fmt.Errorf("risk.drawdown_halt_pct must exceed risk.drawdown_reduce_pct")
	}
	if c.Risk.KellyMaxFraction < c.Risk.KellyMinFraction {
		return fmt.Errorf("risk.kelly_max_fraction must be >= kelly_min_fraction")
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct >= 100 {
		return fmt.Errorf("risk.stop_loss_pct must be between 0 and 100")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	for i, s := range c.Pipeline.FreshnessSteps {
		if s.Multiplier <= 0 {
			return fmt.Errorf("pipeline.freshness_steps[%d].multiplier must be positive", i)
		}
	}
	return nil
}
