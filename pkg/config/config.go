// Package config loads and saves the stigforge YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/stigforge/pkg/record"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	dirName  = ".stigforge"
	fileName = "config.yaml"

	EnvDatabaseURL = "STIGFORGE_DATABASE_URL"
	EnvGoogleKey   = "GOOGLE_API_KEY"

	DefaultProvider = "gemini"
	DefaultModel    = "gemini-1.5-flash"
)

// Path overrides the default location when set, from the root --config flag.
var Path string

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ExportConfig names the files the classification stream is written to
// after a run. Empty paths disable the export.
type ExportConfig struct {
	JSON string `yaml:"json,omitempty"`
	CSV  string `yaml:"csv,omitempty"`
}

type Config struct {
	OutputDir   string `yaml:"output_dir"`
	Workers     int    `yaml:"workers"`
	Platform    string `yaml:"platform,omitempty"`
	RulesFile   string `yaml:"rules_file,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty"`

	Server ServerConfig `yaml:"server"`
	Export ExportConfig `yaml:"export,omitempty"`

	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		OutputDir:        "stigforge-out",
		Workers:          runtime.NumCPU(),
		Server:           ServerConfig{Addr: ":8080"},
		SelectedProvider: DefaultProvider,
		SelectedModel:    DefaultModel,
		Providers:        make(map[string]ProviderConfig),
	}
}

// GetConfigPath returns Path, or ~/.stigforge/config.yaml, creating the
// directory with 0700.
func GetConfigPath() (string, error) {
	if Path != "" {
		return Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, dirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, fileName), nil
}

// LoadConfig reads the file over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		c.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGoogleKey)); v != "" && c.GetAPIKey(DefaultProvider) == "" {
		c.SetAPIKey(DefaultProvider, v)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is empty", ErrInvalid)
	}
	if c.Platform != "" && record.ParsePlatform(c.Platform) == "" {
		return fmt.Errorf("%w: unknown platform %q, must be one of %v", ErrInvalid, c.Platform, record.Platforms)
	}
	if c.Export.JSON != "" && strings.EqualFold(filepath.Ext(c.Export.JSON), ".csv") {
		return fmt.Errorf("%w: export.json %q has a .csv extension", ErrInvalid, c.Export.JSON)
	}
	if c.Export.CSV != "" && !strings.EqualFold(filepath.Ext(c.Export.CSV), ".csv") {
		return fmt.Errorf("%w: export.csv %q must end in .csv", ErrInvalid, c.Export.CSV)
	}
	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); err != nil {
			return fmt.Errorf("%w: rules_file: %v", ErrInvalid, err)
		}
	}
	return nil
}

// ForcedPlatform returns the configured platform, or "" for detection.
func (c *Config) ForcedPlatform() record.Platform {
	return record.ParsePlatform(c.Platform)
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}
