package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/destination-cli/internal/cost"
	"github.com/sells-group/destination-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Files     FilesConfig     `yaml:"files" mapstructure:"files"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Pricing   cost.Rates      `yaml:"pricing" mapstructure:"pricing"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FilesConfig locates the work list.
type FilesConfig struct {
	WorkList string `yaml:"work_list" mapstructure:"work_list"`
}

// CacheConfig selects the cache backend. Dir holds the geocode and enrich
// caches (one file, table namespace or badger directory each).
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// GeocodeConfig configures the precise geocoder and the fallback table.
type GeocodeConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleKey    string `yaml:"google_key" mapstructure:"google_key"`
	MinDelayMs   int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FallbackFile string `yaml:"fallback_file" mapstructure:"fallback_file"`
	CityOnly     bool   `yaml:"city_only" mapstructure:"city_only"`
}

// BatchConfig sizes batch runs.
type BatchConfig struct {
	Width           int `yaml:"width" mapstructure:"width"`
	DelayMs         int `yaml:"delay_ms" mapstructure:"delay_ms"`
	CheckpointEvery int `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MinDelayMs  int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for tagging.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinDelayMs int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
}

// ExportConfig configures the SQL export.
type ExportConfig struct {
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	Table           string `yaml:"table" mapstructure:"table"`
	RefreshLocation bool   `yaml:"refresh_location" mapstructure:"refresh_location"`
	MaxConns        int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// RetryConfig configures transient-error retries for provider calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Resilience converts the config to a retry policy.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	return resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction)
}

// CircuitConfig configures the per-resolver circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DESTINATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even when
// no config file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("files.work_list", "public/destinations.json")

	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.dir", "cache")

	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.base_url", "")
	v.SetDefault("geocode.user_agent", "destination-cli/1.0")
	v.SetDefault("geocode.google_key", "")
	v.SetDefault("geocode.min_delay_ms", 1000)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.fallback_file", "")
	v.SetDefault("geocode.city_only", true)

	v.SetDefault("batch.width", 5)
	v.SetDefault("batch.delay_ms", 1000)
	v.SetDefault("batch.checkpoint_every", 25)

	v.SetDefault("places.key", "")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.min_delay_ms", 100)
	v.SetDefault("places.timeout_secs", 15)

	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 300)
	v.SetDefault("anthropic.min_delay_ms", 200)

	v.SetDefault("export.database_url", "")
	v.SetDefault("export.table", "destinations")
	v.SetDefault("export.refresh_location", true)
	v.SetDefault("export.max_conns", 4)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	rates := cost.DefaultRates()
	for name, r := range rates.Anthropic {
		prefix := "pricing.anthropic." + name + "."
		v.SetDefault(prefix+"input", r.Input)
		v.SetDefault(prefix+"output", r.Output)
		v.SetDefault(prefix+"cache_write_mul", r.CacheWriteMul)
		v.SetDefault(prefix+"cache_read_mul", r.CacheReadMul)
	}
	v.SetDefault("pricing.places.text_search", rates.Places.TextSearch)
	v.SetDefault("pricing.places.details", rates.Places.Details)
	for name, r := range rates.Geocode {
		v.SetDefault("pricing.geocode."+name, r)
	}
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "file", "sqlite", "badger":
	default:
		return eris.Errorf("config: unknown cache.driver %q", c.Cache.Driver)
	}
	switch c.Geocode.Provider {
	case "nominatim", "google":
	default:
		return eris.Errorf("config: unknown geocode.provider %q", c.Geocode.Provider)
	}
	if c.Batch.Width < 1 {
		return eris.Errorf("config: batch.width must be at least 1, got %d", c.Batch.Width)
	}
	if c.Batch.DelayMs < 0 || c.Batch.CheckpointEvery < 0 {
		return eris.New("config: batch.delay_ms and batch.checkpoint_every must not be negative")
	}
	return nil
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
