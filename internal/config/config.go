// Package config loads the market data hub's YAML configuration and applies
// environment variable overrides for secrets and deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document, unmarshaled from a YAML file
// and then overridden by recognized environment variables.
type Config struct {
	EnableLiveData     bool     `yaml:"enableLiveData"`
	PrimaryStockSource string   `yaml:"primaryStockSource"`
	CacheTTLMs         int      `yaml:"cacheTtlMs"`
	CandleCacheTTLMs   int      `yaml:"candleCacheTtlMs"`
	OrderBookTTLMs     int      `yaml:"orderBookTtlMs"`
	PollingIntervalMs  int      `yaml:"pollingIntervalMs"`
	MaxRetries         int      `yaml:"maxRetries"`
	ArenaSymbols       []string `yaml:"arenaSymbols"`

	Redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`

	Credentials struct {
		EODHDAPIKey     string `yaml:"-"`
		AlpacaAPIKey    string `yaml:"-"`
		AlpacaAPISecret string `yaml:"-"`
	} `yaml:"-"`

	HTTPAddr string `yaml:"httpAddr"`
}

// Default returns the configuration baseline from spec.md §6: 5s quote
// cache, 30s candle cache, 2s order book cache, 1s polling, 2 retries.
func Default() *Config {
	c := &Config{
		EnableLiveData:     true,
		PrimaryStockSource: "yahoo",
		CacheTTLMs:         5000,
		CandleCacheTTLMs:   30000,
		OrderBookTTLMs:     2000,
		PollingIntervalMs:  1000,
		MaxRetries:         2,
		HTTPAddr:           ":8090",
	}
	return c
}

// Load reads a YAML config file, falling back to Default() field values for
// anything the file omits, then applies environment overrides.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Credentials.EODHDAPIKey = os.Getenv("EODHD_API_KEY")
	c.Credentials.AlpacaAPIKey = os.Getenv("ALPACA_API_KEY")
	c.Credentials.AlpacaAPISecret = os.Getenv("ALPACA_API_SECRET")

	if v := os.Getenv("ARENAFEED_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ARENAFEED_PRIMARY_STOCK_SOURCE"); v != "" {
		c.PrimaryStockSource = v
	}
	if v := os.Getenv("ARENAFEED_ENABLE_LIVE_DATA"); v != "" {
		c.EnableLiveData = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("ARENAFEED_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("ARENAFEED_ARENA_SYMBOLS"); v != "" {
		c.ArenaSymbols = strings.Split(v, ",")
	}
	if v := os.Getenv("ARENAFEED_POLLING_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollingIntervalMs = n
		}
	}
}

// Validate rejects configurations that would make the hub misbehave rather
// than merely underperform.
func (c *Config) Validate() error {
	if c.CacheTTLMs <= 0 {
		return fmt.Errorf("cacheTtlMs must be positive, got %d", c.CacheTTLMs)
	}
	if c.PollingIntervalMs <= 0 {
		return fmt.Errorf("pollingIntervalMs must be positive, got %d", c.PollingIntervalMs)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must be non-negative, got %d", c.MaxRetries)
	}
	switch c.PrimaryStockSource {
	case "yahoo", "alpaca", "eodhd":
	default:
		return fmt.Errorf("primaryStockSource %q not recognized (want yahoo, alpaca, or eodhd)", c.PrimaryStockSource)
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration       { return time.Duration(c.CacheTTLMs) * time.Millisecond }
func (c *Config) CandleCacheTTL() time.Duration { return time.Duration(c.CandleCacheTTLMs) * time.Millisecond }
func (c *Config) OrderBookTTL() time.Duration   { return time.Duration(c.OrderBookTTLMs) * time.Millisecond }
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalMs) * time.Millisecond
}
