// Package config provides Viper-based configuration for srtoolkit.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/henrybloomingdale/srtoolkit/internal/ncbi"
	"github.com/henrybloomingdale/srtoolkit/internal/validation"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. SRTOOLKIT_NCBI_BASE_URL.
	EnvPrefix = "SRTOOLKIT"
	// APIKeyEnv is the conventional NCBI API key variable.
	APIKeyEnv = "NCBI_API_KEY"
	// APIKeySecret is the file holding the API key inside the secrets dir.
	APIKeySecret = "ncbi-api-key"

	redacted = "********"
)

// Config represents the complete srtoolkit configuration.
type Config struct {
	NCBI       ncbi.Config  `mapstructure:"ncbi" yaml:"ncbi"`
	Cache      CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Trend      TrendConfig  `mapstructure:"trend" yaml:"trend"`
	Server     ServerConfig `mapstructure:"server" yaml:"server"`
	Log        LogConfig    `mapstructure:"log" yaml:"log"`
	SecretsDir string       `mapstructure:"secrets_dir" yaml:"secrets_dir"`
}

// CacheConfig sizes the per-stage memo caches.
type CacheConfig struct {
	Size int `mapstructure:"size" yaml:"size" validate:"gte=1"`
}

// TrendConfig tunes the yearly trend analyzer.
type TrendConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1,lte=10"`
	StartYear   int `mapstructure:"start_year" yaml:"start_year" validate:"gte=1900"`
}

// ServerConfig contains dashboard settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// LoadOptions carries the command-line inputs that shape loading.
type LoadOptions struct {
	// ConfigFile is an explicit config path. Empty searches . and
	// ~/.config/srtoolkit for srtoolkit.yaml.
	ConfigFile string
	// EnvFile is loaded into the environment first. Defaults to .env.
	EnvFile string
	// APIKey from the command line wins over every other source.
	APIKey string
}

// Load reads configuration from file and environment variables.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("srtoolkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/srtoolkit")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	key, err := resolveAPIKey(opts.APIKey, cfg.NCBI.APIKey, cfg.SecretsDir)
	if err != nil {
		return nil, err
	}
	cfg.NCBI.APIKey = key

	if err := validation.New().Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values. Every key is registered so that
// AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ncbi.api_key", "")
	v.SetDefault("ncbi.base_url", ncbi.DefaultBaseURL)
	v.SetDefault("ncbi.max_results", ncbi.DefaultMaxResults)
	v.SetDefault("ncbi.tool", ncbi.DefaultTool)
	v.SetDefault("ncbi.email", ncbi.DefaultEmail)
	v.SetDefault("ncbi.timeout", ncbi.DefaultTimeout)

	v.SetDefault("cache.size", 1024)

	v.SetDefault("trend.concurrency", 1)
	v.SetDefault("trend.start_year", 2000)

	v.SetDefault("server.addr", ":8501")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("secrets_dir", ".secrets")
}

// resolveAPIKey picks the first non-empty key from the flag, NCBI_API_KEY,
// the config, and finally the secrets directory.
func resolveAPIKey(flag, configured, secretsDir string) (string, error) {
	if k := strings.TrimSpace(flag); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(os.Getenv(APIKeyEnv)); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(configured); k != "" {
		return k, nil
	}
	if secretsDir == "" {
		return "", nil
	}

	data, err := os.ReadFile(filepath.Join(secretsDir, APIKeySecret))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading API key secret: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Redacted returns a copy safe to print: the API key is masked.
func (c Config) Redacted() Config {
	if c.NCBI.APIKey != "" {
		c.NCBI.APIKey = redacted
	}
	return c
}
