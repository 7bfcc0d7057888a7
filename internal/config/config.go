package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Sniper     SniperConfig     `yaml:"sniper" mapstructure:"sniper"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ClassifierConfig selects the completion backend and bounds its calls.
type ClassifierConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens     int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// Timeout returns the per-call oracle deadline.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LanguageCode string `yaml:"language_code" mapstructure:"language_code"`
}

// SniperConfig configures the prospect discovery batch.
type SniperConfig struct {
	DelayMs          int            `yaml:"delay_ms" mapstructure:"delay_ms"`
	MinRating        float64        `yaml:"min_rating" mapstructure:"min_rating"`
	MaxRating        float64        `yaml:"max_rating" mapstructure:"max_rating"`
	MaxResults       int            `yaml:"max_results" mapstructure:"max_results"`
	PitchConcurrency int            `yaml:"pitch_concurrency" mapstructure:"pitch_concurrency"`
	BreakerThreshold int            `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	Schedule         string         `yaml:"schedule" mapstructure:"schedule"`
	Targets          []TargetConfig `yaml:"targets" mapstructure:"targets"`
}

// Delay returns the fixed interval between detail fetches.
func (c SniperConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// TargetConfig is one scheduled (city, category, country) sweep.
type TargetConfig struct {
	City        string `yaml:"city" mapstructure:"city"`
	Category    string `yaml:"category" mapstructure:"category"`
	CountryCode string `yaml:"country_code" mapstructure:"country_code"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the dashboard refresh and alert webhook.
type MonitoringConfig struct {
	Enabled                bool   `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs      int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL             string `yaml:"webhook_url" mapstructure:"webhook_url"`
	SecurityAlertThreshold int    `yaml:"security_alert_threshold" mapstructure:"security_alert_threshold"`
	MinutesPerReview       int    `yaml:"minutes_per_review" mapstructure:"minutes_per_review"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ConfigurationError reports oracle credentials that are required for the
// requested operation but absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "config: missing " + strings.Join(e.Missing, ", ")
}

// RequireClassifier checks the credentials of the selected completion backend.
func (c *Config) RequireClassifier() error {
	switch c.Classifier.Provider {
	case "openai":
		if c.OpenAI.Key == "" {
			return &ConfigurationError{Missing: []string{"openai.key"}}
		}
	case "anthropic":
		if c.Anthropic.Key == "" {
			return &ConfigurationError{Missing: []string{"anthropic.key"}}
		}
	default:
		return &ConfigurationError{Missing: []string{"classifier.provider"}}
	}
	return nil
}

// RequirePlaces checks the place search credentials.
func (c *Config) RequirePlaces() error {
	if c.Google.Key == "" {
		return &ConfigurationError{Missing: []string{"google.key"}}
	}
	return nil
}

// RequireSniper checks everything the prospect batch needs, reporting all
// missing keys at once.
func (c *Config) RequireSniper() error {
	var missing []string
	for _, err := range []error{c.RequirePlaces(), c.RequireClassifier()} {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			missing = append(missing, ce.Missing...)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Validate checks value ranges and the credentials needed by mode
// ("review", "sniper" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Classifier.TimeoutSecs <= 0 {
		errs = append(errs, "classifier.timeout_secs must be > 0")
	}
	if c.Sniper.MinRating > c.Sniper.MaxRating {
		errs = append(errs, "sniper.min_rating must be <= sniper.max_rating")
	}
	if c.Sniper.MaxResults < 1 || c.Sniper.MaxResults > 20 {
		errs = append(errs, "sniper.max_results must be between 1 and 20")
	}
	if c.Sniper.PitchConcurrency < 1 || c.Sniper.PitchConcurrency > 20 {
		errs = append(errs, "sniper.pitch_concurrency must be between 1 and 20")
	}

	if c.Monitoring.SecurityAlertThreshold < 0 {
		errs = append(errs, "monitoring.security_alert_threshold must be >= 0")
	}

	switch mode {
	case "review":
	case "sniper":
		if c.Google.TimeoutSecs <= 0 {
			errs = append(errs, "google.timeout_secs must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REPUTEXA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional names used by the hosted deployments.
	for key, alias := range map[string]string{
		"openai.key":         "OPENAI_API_KEY",
		"anthropic.key":      "ANTHROPIC_API_KEY",
		"google.key":         "MAPS_API_KEY",
		"store.database_url": "DATABASE_URL",
	} {
		envKey := "REPUTEXA_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reputexa.db")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("classifier.provider", "openai")
	v.SetDefault("classifier.timeout_secs", 30)
	v.SetDefault("classifier.max_tokens", 1024)
	v.SetDefault("classifier.retry_attempts", 3)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.timeout_secs", 10)
	v.SetDefault("google.language_code", "fr")
	v.SetDefault("sniper.delay_ms", 200)
	v.SetDefault("sniper.min_rating", 3.2)
	v.SetDefault("sniper.max_rating", 4.1)
	v.SetDefault("sniper.max_results", 20)
	v.SetDefault("sniper.pitch_concurrency", 3)
	v.SetDefault("sniper.breaker_threshold", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.security_alert_threshold", 0)
	v.SetDefault("monitoring.minutes_per_review", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
