package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ImportConfig configures import run behavior.
type ImportConfig struct {
	Concurrency     int    `yaml:"concurrency" mapstructure:"concurrency"`
	DefaultLanguage string `yaml:"default_language" mapstructure:"default_language"`
	SkipDuplicates  bool   `yaml:"skip_duplicates" mapstructure:"skip_duplicates"`
	UseLLM          bool   `yaml:"use_llm" mapstructure:"use_llm"`
	FallbackOnError bool   `yaml:"fallback_on_error" mapstructure:"fallback_on_error"`
}

// ClassifierConfig bounds the LLM classification path.
type ClassifierConfig struct {
	MaxTokens        int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxPromptLength  int     `yaml:"max_prompt_length" mapstructure:"max_prompt_length"`
	MaxMessages      int     `yaml:"max_messages" mapstructure:"max_messages"`
	MaxMessageLength int     `yaml:"max_message_length" mapstructure:"max_message_length"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// SessionConfig configures session artifact handling.
type SessionConfig struct {
	StagingDir           string `yaml:"staging_dir" mapstructure:"staging_dir"`
	SnapshotIntervalMins int    `yaml:"snapshot_interval_mins" mapstructure:"snapshot_interval_mins"`
}

// CacheConfig configures the in-process TTL cache.
type CacheConfig struct {
	TTLSecs   int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	SweepSecs int `yaml:"sweep_secs" mapstructure:"sweep_secs"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHATIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("import.concurrency", 3)
	v.SetDefault("import.default_language", "en")
	v.SetDefault("import.skip_duplicates", true)
	v.SetDefault("import.use_llm", false)
	v.SetDefault("import.fallback_on_error", true)
	v.SetDefault("classifier.max_tokens", 1024)
	v.SetDefault("classifier.temperature", 0.2)
	v.SetDefault("classifier.max_prompt_length", 12000)
	v.SetDefault("classifier.max_messages", 100)
	v.SetDefault("classifier.max_message_length", 500)
	v.SetDefault("classifier.requests_per_sec", 2.0)
	v.SetDefault("session.staging_dir", "/tmp/chatimport-sessions")
	v.SetDefault("session.snapshot_interval_mins", 60)
	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("cache.sweep_secs", 60)

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

// Validate checks that the fields required for the given mode are set.
// Modes: "import", "serve", "inspect".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "import", "serve", "inspect":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if mode == "import" || mode == "serve" {
		if c.Import.Concurrency < 1 || c.Import.Concurrency > 5 {
			problems = append(problems, "import.concurrency must be between 1 and 5")
		}
		if c.Import.UseLLM && c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required when import.use_llm is set")
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// ValidateLLMMode checks that LLM classification can actually run when
// requested. Validate only sees the config default for use_llm; flag and
// request-body overrides must be checked with the effective value, so a
// requested LLM run fails loudly instead of degrading to the heuristic.
func (c *Config) ValidateLLMMode(useLLM bool) error {
	if useLLM && c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required when llm classification is requested")
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
