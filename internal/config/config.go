package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Schwab   SchwabConfig   `yaml:"schwab"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
}

// SchwabConfig holds market-data API credentials
type SchwabConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RateLimit    int    `yaml:"rate_limit"` // requests per minute
}

// AnalysisConfig holds the default strategy parameters
type AnalysisConfig struct {
	MaxDelta  float64 `yaml:"max_delta"` // risk tolerance for covered calls
	Weeks     int     `yaml:"weeks"`     // weekly expirations to consider
	RSIPeriod int     `yaml:"rsi_period"`
}

// ServerConfig holds web dashboard settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Schwab: SchwabConfig{
			ClientID:     os.Getenv("SCHWAB_CLIENT_ID"),
			ClientSecret: os.Getenv("SCHWAB_CLIENT_SECRET"),
			RateLimit:    120,
		},
		Analysis: AnalysisConfig{
			MaxDelta:  0.31,
			Weeks:     6,
			RSIPeriod: 14,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Environment variables take precedence over the file
	if id := os.Getenv("SCHWAB_CLIENT_ID"); id != "" {
		cfg.Schwab.ClientID = id
	}
	if secret := os.Getenv("SCHWAB_CLIENT_SECRET"); secret != "" {
		cfg.Schwab.ClientSecret = secret
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Schwab.ClientID == "" || c.Schwab.ClientSecret == "" {
		return fmt.Errorf("schwab credentials are required (SCHWAB_CLIENT_ID / SCHWAB_CLIENT_SECRET or config file)")
	}
	if c.Analysis.MaxDelta <= 0 || c.Analysis.MaxDelta > 1 {
		return fmt.Errorf("max_delta must be in (0, 1], got %v", c.Analysis.MaxDelta)
	}
	if c.Analysis.Weeks < 1 {
		return fmt.Errorf("weeks must be at least 1")
	}
	if c.Analysis.RSIPeriod < 1 {
		return fmt.Errorf("rsi_period must be at least 1")
	}
	return nil
}
