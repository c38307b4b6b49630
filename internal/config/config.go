package config

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BufferModule is the allocation key for the shared budget slice.
const BufferModule = "buffer"

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Budget     BudgetConfig     `yaml:"budget" mapstructure:"budget"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	ICP        ICPConfig        `yaml:"icp" mapstructure:"icp"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the on-disk pipeline output.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LedgerPath is the append-only usage log.
func (d DataConfig) LedgerPath() string {
	return filepath.Join(d.Dir, "usage_log.jsonl")
}

// ReportDir is where usage report snapshots are written.
func (d DataConfig) ReportDir() string {
	return filepath.Join(d.Dir, "usage_reports")
}

// StoreConfig configures the entity persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	EconomyModel string `yaml:"economy_model" mapstructure:"economy_model"`
	PremiumModel string `yaml:"premium_model" mapstructure:"premium_model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// BudgetConfig splits the total spend across pipeline modules.
type BudgetConfig struct {
	TotalUSD   float64            `yaml:"total_usd" mapstructure:"total_usd"`
	Allocation map[string]float64 `yaml:"allocation" mapstructure:"allocation"`
}

// PricingConfig holds per-model token pricing (USD per 1K tokens).
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
	Search SearchPricing           `yaml:"search" mapstructure:"search"`
}

// ModelPricing holds per-1K token rates for a chat model.
type ModelPricing struct {
	InputPer1K  float64 `yaml:"input_per_1k" mapstructure:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k" mapstructure:"output_per_1k"`
}

// SearchPricing holds the flat real-time search rate.
type SearchPricing struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// PipelineConfig configures call pacing and retry behavior.
type PipelineConfig struct {
	CallDelayMs      int `yaml:"call_delay_ms" mapstructure:"call_delay_ms"`
	RetryAttempts    int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	CircuitThreshold int `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
}

// ICPConfig points at an optional ideal-customer-profile override.
type ICPConfig struct {
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
}

// ServerConfig configures the read-only dashboard API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// MonitoringConfig configures budget alerting.
type MonitoringConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	BudgetAlertPct    float64 `yaml:"budget_alert_pct" mapstructure:"budget_alert_pct"`
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		zap.L().Debug("config: .env not loaded", zap.Error(err))
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "leadgen"))
	}

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.key", "LEADGEN_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("perplexity.key", "LEADGEN_PERPLEXITY_KEY", "PERPLEXITY_API_KEY")

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.database_url", filepath.Join("data", "leadgen.db"))
	v.SetDefault("anthropic.economy_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.premium_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("budget.total_usd", 200.0)
	v.SetDefault("budget.allocation", map[string]float64{
		"event_research":             0.10,
		"company_analysis":           0.25,
		"stakeholder_identification": 0.15,
		"outreach_generation":        0.30,
		BufferModule:                 0.20,
	})
	v.SetDefault("pricing.models", map[string]any{
		"claude-haiku-4-5-20251001":  map[string]float64{"input_per_1k": 0.0008, "output_per_1k": 0.004},
		"claude-sonnet-4-5-20250929": map[string]float64{"input_per_1k": 0.003, "output_per_1k": 0.015},
		"claude-opus-4-6":            map[string]float64{"input_per_1k": 0.015, "output_per_1k": 0.075},
	})
	v.SetDefault("pricing.search.per_request", 0.01)
	v.SetDefault("pipeline.call_delay_ms", 500)
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.retry_backoff_ms", 2000)
	v.SetDefault("pipeline.circuit_threshold", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.textfile", filepath.Join("data", "usage_reports", "leadgen.prom"))
	v.SetDefault("monitoring.budget_alert_pct", 80.0)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the budget split and store settings, reporting every
// problem found in a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Budget.TotalUSD <= 0 {
		errs = append(errs, "budget.total_usd must be positive")
	}
	if _, ok := c.Budget.Allocation[BufferModule]; !ok {
		errs = append(errs, "budget.allocation must include buffer")
	}

	modules := make([]string, 0, len(c.Budget.Allocation))
	for m := range c.Budget.Allocation {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	var sum float64
	for _, m := range modules {
		frac := c.Budget.Allocation[m]
		if frac < 0 || frac > 1 {
			errs = append(errs, "budget.allocation."+m+" must be within [0,1]")
		}
		sum += frac
	}
	if sum > 1+1e-9 {
		errs = append(errs, "budget.allocation fractions sum above 1.0")
	}

	switch c.Store.Driver {
	case "file", "sqlite":
	default:
		errs = append(errs, "store.driver must be file or sqlite, got "+c.Store.Driver)
	}

	if c.Pipeline.RetryAttempts < 1 {
		errs = append(errs, "pipeline.retry_attempts must be at least 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Allocated returns the dollar allocation for a module.
func (b BudgetConfig) Allocated(module string) float64 {
	return roundUSD(b.TotalUSD * b.Allocation[module])
}

func roundUSD(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
