package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-bill-must-split/internal/classification"
	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/engine"
	"github.com/Veraticus/the-bill-must-split/internal/llm"
	"github.com/Veraticus/the-bill-must-split/internal/secrets"
	"github.com/Veraticus/the-bill-must-split/internal/validation"
)

// Default file locations.
const (
	DefaultDatabasePath = "$HOME/.local/share/split/split.db"
	DefaultSecretsPath  = "$HOME/.config/split/gemini.key"
	DefaultConfigDir    = "$HOME/.config/split"
)

// SetDefaults registers a default for every key read by this package.
func SetDefaults(v *viper.Viper) {
	chain := classification.DefaultChainConfig()
	eng := engine.DefaultConfig()

	v.SetDefault("engine.kind", string(eng.Kind))
	v.SetDefault("engine.llm_budget", eng.LLMBudget)
	v.SetDefault("engine.concurrency", eng.Concurrency)
	v.SetDefault("engine.enable_llm", eng.EnableLLM)
	v.SetDefault("chain.high_threshold", chain.HighConfidenceThreshold)
	v.SetDefault("chain.medium_threshold", chain.MediumConfidenceThreshold)
	v.SetDefault("validation.tolerance", validation.DefaultTolerance)

	v.SetDefault("llm.endpoint", llm.DefaultEndpoint)
	v.SetDefault("llm.model", llm.DefaultModel)
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.rate_limit", llm.DefaultRateLimit)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.cache_ttl", "15m")

	v.SetDefault("secrets.path", DefaultSecretsPath)
	v.SetDefault("secrets.env", secrets.DefaultEnvVar)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadEngineConfig reads the engine settings. An explicit kind (from a flag
// or the settings table) overrides engine.kind when non-empty.
func LoadEngineConfig(v *viper.Viper, kind string) (engine.Config, error) {
	if kind == "" {
		kind = v.GetString("engine.kind")
	}

	cfg := engine.DefaultConfig()
	if kind != "" {
		parsed, err := engine.ParseKind(kind)
		if err != nil {
			return engine.Config{}, err
		}
		cfg.Kind = parsed
	}

	if v.IsSet("engine.llm_budget") {
		cfg.LLMBudget = v.GetInt("engine.llm_budget")
	}
	if v.IsSet("engine.concurrency") {
		cfg.Concurrency = v.GetInt("engine.concurrency")
	}
	if v.IsSet("engine.enable_llm") {
		cfg.EnableLLM = v.GetBool("engine.enable_llm")
	}
	if v.IsSet("chain.high_threshold") {
		cfg.Chain.HighConfidenceThreshold = v.GetFloat64("chain.high_threshold")
	}
	if v.IsSet("chain.medium_threshold") {
		cfg.Chain.MediumConfidenceThreshold = v.GetFloat64("chain.medium_threshold")
	}
	if v.IsSet("validation.tolerance") {
		cfg.Tolerance = v.GetFloat64("validation.tolerance")
	}

	if err := validateEngineConfig(cfg); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

func validateEngineConfig(cfg engine.Config) error {
	switch {
	case cfg.LLMBudget < 0:
		return fmt.Errorf("%w: engine.llm_budget must not be negative", common.ErrInvalidConfig)
	case cfg.Concurrency < 1:
		return fmt.Errorf("%w: engine.concurrency must be at least 1", common.ErrInvalidConfig)
	case cfg.Chain.HighConfidenceThreshold <= 0 || cfg.Chain.HighConfidenceThreshold > 1:
		return fmt.Errorf("%w: chain.high_threshold must be in (0, 1]", common.ErrInvalidConfig)
	case cfg.Chain.MediumConfidenceThreshold <= 0 || cfg.Chain.MediumConfidenceThreshold > cfg.Chain.HighConfidenceThreshold:
		return fmt.Errorf("%w: chain.medium_threshold must be in (0, high_threshold]", common.ErrInvalidConfig)
	case cfg.Tolerance < 0 || cfg.Tolerance >= 1:
		return fmt.Errorf("%w: validation.tolerance must be in [0, 1)", common.ErrInvalidConfig)
	}
	return nil
}

// LoadLLMConfig reads the Gemini client settings.
func LoadLLMConfig(v *viper.Viper) llm.Config {
	return llm.Config{
		Endpoint:   v.GetString("llm.endpoint"),
		Model:      v.GetString("llm.model"),
		Timeout:    v.GetDuration("llm.timeout"),
		RetryDelay: v.GetDuration("llm.retry_delay"),
		CacheTTL:   v.GetDuration("llm.cache_ttl"),
		RateLimit:  v.GetInt("llm.rate_limit"),
		MaxRetries: v.GetInt("llm.max_retries"),
	}.WithDefaults()
}

// DatabasePath returns the expanded database path.
func DatabasePath(v *viper.Viper) string {
	path := v.GetString("database.path")
	if path == "" {
		path = DefaultDatabasePath
	}
	return ExpandPath(path)
}

// SecretsPath returns the expanded path of the API key file.
func SecretsPath(v *viper.Viper) string {
	path := v.GetString("secrets.path")
	if path == "" {
		path = DefaultSecretsPath
	}
	return ExpandPath(path)
}

// SecretsEnvVar returns the environment variable consulted for the API key.
func SecretsEnvVar(v *viper.Viper) string {
	if name := v.GetString("secrets.env"); name != "" {
		return name
	}
	return secrets.DefaultEnvVar
}

// MetricsFile returns the expanded textfile path, or "" when metrics are off.
func MetricsFile(v *viper.Viper) string {
	return ExpandPath(v.GetString("metrics.file"))
}
