package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port      int    `yaml:"port"`
	ClientURL string `yaml:"client_url"`
	LogLevel  string `yaml:"log_level"`

	Sweep struct {
		Interval string `yaml:"interval"`
		MaxAge   string `yaml:"max_age"`
	} `yaml:"sweep"`

	// Parsed from the Sweep strings.
	SweepInterval time.Duration `yaml:"-"`
	SweepMaxAge   time.Duration `yaml:"-"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Port:      8080,
		ClientURL: "http://localhost:3001",
		LogLevel:  "info",
	}
	cfg.Sweep.Interval = "1h"
	cfg.Sweep.MaxAge = "24h"
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the optional yaml config file and applies environment
// overrides on top. A missing file just means defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.Port = getEnvAsInt("PORT", cfg.Port)
	cfg.ClientURL = getEnv("CLIENT_URL", cfg.ClientURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if cfg.SweepInterval, err = time.ParseDuration(cfg.Sweep.Interval); err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	if cfg.SweepMaxAge, err = time.ParseDuration(cfg.Sweep.MaxAge); err != nil {
		return nil, fmt.Errorf("invalid sweep max age: %w", err)
	}

	return cfg, nil
}
