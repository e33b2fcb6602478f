// Package config handles configuration loading for cclview.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Reference ReferenceConfig `mapstructure:"reference" yaml:"reference"`
	Fetch     FetchConfig     `mapstructure:"fetch"     yaml:"fetch"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	News      NewsConfig      `mapstructure:"news"      yaml:"news"`
}

// ReferenceConfig names the dual-listed pairs the implied rate is derived
// from. The primary pair is a 1:1 dual listing; the fallback triangulates
// through an ADR with a share ratio.
type ReferenceConfig struct {
	Local           string  `mapstructure:"local"            yaml:"local"`
	Foreign         string  `mapstructure:"foreign"          yaml:"foreign"`
	FallbackLocal   string  `mapstructure:"fallback_local"   yaml:"fallback_local"`
	FallbackForeign string  `mapstructure:"fallback_foreign" yaml:"fallback_foreign"`
	FallbackRatio   float64 `mapstructure:"fallback_ratio"   yaml:"fallback_ratio"`
}

// FetchConfig holds market-data fetching settings.
type FetchConfig struct {
	Concurrency int `mapstructure:"concurrency"  yaml:"concurrency"`
	CacheTTLSec int `mapstructure:"cache_ttl"    yaml:"cache_ttl"`    // seconds
	TimeoutSec  int `mapstructure:"timeout_sec"  yaml:"timeout_sec"`  // per request
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// NewsConfig holds headline-feed settings.
type NewsConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.cclview/config.yaml (home directory)
//  3. /etc/cclview/config.yaml (system)
//
// Environment variables override config file values.
// Format: CCLVIEW_<SECTION>_<KEY>, e.g., CCLVIEW_API_PORT
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".cclview"))
	v.AddConfigPath("/etc/cclview")

	v.SetEnvPrefix("CCLVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("CCLVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Reference defaults: YPF dual listing primary, Galicia ADR fallback.
	v.SetDefault("reference.local", "YPFD.BA")
	v.SetDefault("reference.foreign", "YPF")
	v.SetDefault("reference.fallback_local", "GGAL.BA")
	v.SetDefault("reference.fallback_foreign", "GGAL")
	v.SetDefault("reference.fallback_ratio", 10.0)

	// Fetch defaults
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("fetch.cache_ttl", 900) // 15 minutes
	v.SetDefault("fetch.timeout_sec", 30)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// News defaults
	v.SetDefault("news.limit", 20)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
