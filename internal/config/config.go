package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google    GoogleConfig     `yaml:"google" mapstructure:"google"`
	Verifier  VerifierConfig   `yaml:"verifier" mapstructure:"verifier"`
	Sheets    SheetsConfig     `yaml:"sheets" mapstructure:"sheets"`
	Pipeline  PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Auth      AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitor   MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds the fallback Anthropic credentials and model used
// when a user's settings leave them unset.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GoogleConfig configures the Sheets and Gmail adapters.
type GoogleConfig struct {
	// CredentialsFile is a service account key used when a user has no
	// credentials stored in their settings.
	CredentialsFile string  `yaml:"credentials_file" mapstructure:"credentials_file"`
	SheetsRPS       float64 `yaml:"sheets_rps" mapstructure:"sheets_rps"`
	SheetsBurst     int     `yaml:"sheets_burst" mapstructure:"sheets_burst"`
}

// VerifierConfig configures the email reputation lookup.
type VerifierConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	Key              string `yaml:"key" mapstructure:"key"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SheetsConfig tunes the Sheets retry policy and schedule write-back.
type SheetsConfig struct {
	MaxAttempts           int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs      int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs          int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MaxJitterMs           int `yaml:"max_jitter_ms" mapstructure:"max_jitter_ms"`
	ScheduleOffsetMinutes int `yaml:"schedule_offset_minutes" mapstructure:"schedule_offset_minutes"`
}

// PipelineConfig holds run-level defaults.
type PipelineConfig struct {
	DefaultDelayMs int `yaml:"default_delay_ms" mapstructure:"default_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// AuthConfig configures access token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Audience  string `yaml:"audience" mapstructure:"audience"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run alerts. Alerts are disabled when
// WebhookURL is empty.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinProcessed         int     `yaml:"min_processed" mapstructure:"min_processed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and LEADFLOW_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("google.credentials_file", "")
	v.SetDefault("google.sheets_rps", 1.0)
	v.SetDefault("google.sheets_burst", 5)
	v.SetDefault("verifier.base_url", "https://api.usercheck.com/email")
	v.SetDefault("verifier.key", "")
	v.SetDefault("verifier.timeout_secs", 10)
	v.SetDefault("verifier.failure_threshold", 5)
	v.SetDefault("verifier.reset_timeout_secs", 60)
	v.SetDefault("sheets.max_attempts", 5)
	v.SetDefault("sheets.initial_backoff_ms", 1000)
	v.SetDefault("sheets.max_backoff_ms", 32000)
	v.SetDefault("sheets.max_jitter_ms", 1000)
	v.SetDefault("sheets.schedule_offset_minutes", 60)
	v.SetDefault("pipeline.default_delay_ms", 0)
	v.SetDefault("pipeline.max_delay_ms", 60000)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_processed", 5)
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

// Validate reports every missing requirement for mode ("serve", "process",
// "store") in a single error.
func (c *Config) Validate(mode string) error {
	var missing []string
	require := func(ok bool, msg string) {
		if !ok {
			missing = append(missing, msg)
		}
	}

	switch c.Store.Driver {
	case "postgres":
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	case "sqlite":
	default:
		missing = append(missing, "store.driver must be postgres or sqlite")
	}

	switch mode {
	case "serve":
		require(c.Auth.JWTSecret != "", "auth.jwt_secret is required")
		require(c.Server.Port > 0 && c.Server.Port <= 65535, "server.port must be between 1 and 65535")
		c.validatePipeline(require)
	case "process":
		c.validatePipeline(require)
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

func (c *Config) validatePipeline(require func(bool, string)) {
	require(c.Sheets.MaxAttempts >= 1, "sheets.max_attempts must be at least 1")
	require(c.Sheets.ScheduleOffsetMinutes >= 0, "sheets.schedule_offset_minutes must not be negative")
	require(c.Pipeline.DefaultDelayMs >= 0, "pipeline.default_delay_ms must not be negative")
	require(c.Pipeline.MaxDelayMs >= c.Pipeline.DefaultDelayMs, "pipeline.max_delay_ms must be >= pipeline.default_delay_ms")
	require(c.Google.SheetsRPS >= 0, "google.sheets_rps must not be negative")
	require(c.Monitor.FailureRateThreshold >= 0 && c.Monitor.FailureRateThreshold <= 1,
		"monitoring.failure_rate_threshold must be between 0 and 1")
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
