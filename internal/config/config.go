package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all giftflow configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Headless browser used by discovery and checkout
	Browser BrowserConfig `yaml:"browser"`

	// Product search
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Checkout automaton timings and probes
	Checkout CheckoutConfig `yaml:"checkout"`

	// External generators
	Riddle RiddleConfig `yaml:"riddle"`
	Card   CardConfig   `yaml:"card"`

	// Work-item storage
	Store StoreConfig `yaml:"store"`

	// HTTP API
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BrowserConfig configures the rod-controlled Chrome instance.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"` // attach instead of launching
	Launch            []string `yaml:"launch"`       // binary followed by extra flags
	Headless          bool     `yaml:"headless"`
	NoSandbox         bool     `yaml:"no_sandbox"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	UserAgent         string   `yaml:"user_agent"`
	AcceptLanguage    string   `yaml:"accept_language"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
}

// DiscoveryConfig configures the product search.
type DiscoveryConfig struct {
	// SearchURL is a fmt template receiving the escaped query.
	SearchURL        string `yaml:"search_url"`
	Source           string `yaml:"source"`
	ResultWait       string `yaml:"result_wait"`
	PlaceholderImage string `yaml:"placeholder_image"`
	// Optional probe overrides, highest priority first.
	CardSelectors  []string `yaml:"card_selectors"`
	TitleSelectors []string `yaml:"title_selectors"`
	PriceSelectors []string `yaml:"price_selectors"`
	LinkSelectors  []string `yaml:"link_selectors"`
}

// CheckoutConfig configures the checkout automaton.
type CheckoutConfig struct {
	CartSettle string `yaml:"cart_settle"`
	AuthSettle string `yaml:"auth_settle"`
	// Optional probe overrides, highest priority first.
	AddToCartSelectors []string `yaml:"add_to_cart_selectors"`
	CheckoutSelectors  []string `yaml:"checkout_selectors"`
}

// RiddleConfig configures the Gemini riddle generator.
type RiddleConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
	Timeout         string  `yaml:"timeout"`
}

// CardConfig configures the Gamma card generator.
type CardConfig struct {
	APIKey     string  `yaml:"api_key"`
	BaseURL    string  `yaml:"base_url"`
	Style      string  `yaml:"style"`
	ImageModel string  `yaml:"image_model"`
	Timeout    string  `yaml:"timeout"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

// StoreConfig selects the work-item store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite
	// DSN for the sqlite backend. The default is a private in-memory database,
	// so nothing outlives the process.
	DSN string `yaml:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	RequestTimeout  string `yaml:"request_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "giftflow",
		Version: "0.3.0",

		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage:    "en-US,en;q=0.9",
			NavigationTimeout: "30s",
		},

		Discovery: DiscoveryConfig{
			SearchURL:        "https://www.google.com/search?q=%s&tbm=shop",
			Source:           "google_shopping",
			ResultWait:       "10s",
			PlaceholderImage: "https://via.placeholder.com/200",
		},

		Checkout: CheckoutConfig{
			CartSettle: "2s",
			AuthSettle: "3s",
		},

		Riddle: RiddleConfig{
			Model:           "gemini-2.0-flash",
			Temperature:     0.8,
			MaxOutputTokens: 150,
			Timeout:         "60s",
		},

		Card: CardConfig{
			BaseURL:    "https://api.gamma.app/v2",
			Style:      "festive holiday theme with warm colors",
			ImageModel: "nano-banana-pro",
			Timeout:    "120s",
			RatePerSec: 1,
			Burst:      1,
		},

		Store: StoreConfig{
			Backend: "memory",
			DSN:     "file:giftflow?mode=memory&cache=shared",
		},

		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  "10m",
			ShutdownTimeout: "15s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// Defaults if the file doesn't exist
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Riddle API key (GEMINI wins over GOOGLE)
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Riddle.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Riddle.APIKey = key
	}
	if key := os.Getenv("GAMMA_API_KEY"); key != "" {
		c.Card.APIKey = key
	}

	if addr := os.Getenv("GIFTFLOW_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if dsn := os.Getenv("GIFTFLOW_DB"); dsn != "" {
		c.Store.Backend = "sqlite"
		c.Store.DSN = dsn
	}
	if v := os.Getenv("GIFTFLOW_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if bin := os.Getenv("GIFTFLOW_CHROME"); bin != "" {
		c.Browser.Launch = []string{bin}
	}
	if url := os.Getenv("GIFTFLOW_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// GetNavigationTimeout returns the page navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetResultWait returns how long discovery waits for the result container.
func (c *Config) GetResultWait() time.Duration {
	return parseDuration(c.Discovery.ResultWait, 10*time.Second)
}

// GetCartSettle returns the delay after clicking add-to-cart.
func (c *Config) GetCartSettle() time.Duration {
	return parseDuration(c.Checkout.CartSettle, 2*time.Second)
}

// GetAuthSettle returns the delay after clicking proceed-to-checkout.
func (c *Config) GetAuthSettle() time.Duration {
	return parseDuration(c.Checkout.AuthSettle, 3*time.Second)
}

// GetRiddleTimeout returns the riddle generation timeout.
func (c *Config) GetRiddleTimeout() time.Duration {
	return parseDuration(c.Riddle.Timeout, 60*time.Second)
}

// GetCardTimeout returns the card generation timeout.
func (c *Config) GetCardTimeout() time.Duration {
	return parseDuration(c.Card.Timeout, 120*time.Second)
}

// GetRequestTimeout returns the per-request timeout of the HTTP API.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.Server.RequestTimeout, 10*time.Minute)
}

// GetShutdownTimeout returns the graceful shutdown window of the HTTP API.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 15*time.Second)
}

// ValidBackends lists the supported store backends.
var ValidBackends = []string{"memory", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range ValidBackends {
		if c.Store.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, ValidBackends)
	}
	if c.Store.Backend == "sqlite" && c.Store.DSN == "" {
		return fmt.Errorf("store dsn is required for the sqlite backend")
	}
	if c.Discovery.SearchURL == "" {
		return fmt.Errorf("discovery search_url is required")
	}
	if c.Card.RatePerSec < 0 {
		return fmt.Errorf("card rate_per_sec must not be negative")
	}
	return nil
}
