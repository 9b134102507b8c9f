package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Cache store configuration
	Database DatabaseConfig `yaml:"database"`

	// HTTP configuration
	HTTP HTTPConfig `yaml:"http"`

	// External service configurations
	Quotes       QuotesConfig       `yaml:"quotes"`
	Alpaca       AlpacaConfig       `yaml:"alpaca"`
	AlphaVantage AlphaVantageConfig `yaml:"alpha_vantage"`

	// Forecast process configuration
	Forecast ForecastConfig `yaml:"forecast"`

	// Market data behavior
	Market MarketConfig `yaml:"market"`

	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig holds cache store configuration.
// URL selects Postgres; SQLitePath selects the embedded store when URL is empty.
type DatabaseConfig struct {
	URL        string `yaml:"url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr                  string `yaml:"addr"`
	CORSAllowedOrigins    string `yaml:"cors_allowed_origins"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// QuotesConfig selects and tunes the live quote/history provider
type QuotesConfig struct {
	Provider       string `yaml:"provider"` // yahoo or alpaca
	YahooBaseURL   string `yaml:"yahoo_base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AlpacaConfig holds Alpaca market data configuration
type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey string `yaml:"api_key"`
}

// ForecastConfig describes the external forecast process.
// The symbol is appended after Args.
type ForecastConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// MarketConfig holds market data and aggregation settings
type MarketConfig struct {
	FetchConcurrency int      `yaml:"fetch_concurrency"`
	DefaultDays      int      `yaml:"default_days"`
	MaxDays          int      `yaml:"max_days"`
	PortfolioDays    int      `yaml:"portfolio_days"`
	ListPageSize     int      `yaml:"list_page_size"`
	Universe         []string `yaml:"universe"`
}

// AuthConfig holds the hosted auth provider settings
type AuthConfig struct {
	SupabaseURL     string `yaml:"supabase_url"`
	SupabaseAnonKey string `yaml:"supabase_anon_key"`
}

// SchedulerConfig controls the background cache warmer
type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RefreshCron string `yaml:"refresh_cron"`
	RefreshDays int    `yaml:"refresh_days"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Format string `yaml:"format"` // json or text
	Level  string `yaml:"level"`
}

// DefaultUniverse is the symbol set served by the stock list when none is configured
var DefaultUniverse = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK-B", "JPM", "V",
	"JNJ", "WMT", "PG", "MA", "HD", "DIS", "NFLX", "KO", "PEP", "INTC",
}

// Load loads configuration from an optional YAML file named by CONFIG_FILE,
// then applies environment variable overrides
func Load() (*Config, error) {
	cfg := NewDefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.URL = getEnvString("DATABASE_URL", c.Database.URL)
	c.Database.SQLitePath = getEnvString("SQLITE_PATH", c.Database.SQLitePath)

	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDR") == "" {
		c.HTTP.Addr = ":" + port
	}
	c.HTTP.CORSAllowedOrigins = getEnvString("CORS_ALLOWED_ORIGINS", c.HTTP.CORSAllowedOrigins)
	c.HTTP.RequestTimeoutSeconds = getEnvInt("HTTP_REQUEST_TIMEOUT_SECONDS", c.HTTP.RequestTimeoutSeconds)

	c.Quotes.Provider = strings.ToLower(getEnvString("QUOTE_PROVIDER", c.Quotes.Provider))
	c.Quotes.YahooBaseURL = getEnvString("YAHOO_BASE_URL", c.Quotes.YahooBaseURL)
	c.Quotes.TimeoutSeconds = getEnvInt("QUOTE_TIMEOUT_SECONDS", c.Quotes.TimeoutSeconds)

	c.Alpaca.APIKey = getEnvString("ALPACA_API_KEY", c.Alpaca.APIKey)
	c.Alpaca.APISecret = getEnvString("ALPACA_API_SECRET", c.Alpaca.APISecret)
	c.Alpaca.DataURL = getEnvString("ALPACA_DATA_URL", c.Alpaca.DataURL)

	c.AlphaVantage.APIKey = getEnvString("ALPHA_VANTAGE_API_KEY", c.AlphaVantage.APIKey)

	c.Forecast.Command = getEnvString("FORECAST_COMMAND", c.Forecast.Command)
	c.Forecast.Args = getEnvList("FORECAST_ARGS", " ", c.Forecast.Args)
	c.Forecast.TimeoutSeconds = getEnvInt("FORECAST_TIMEOUT_SECONDS", c.Forecast.TimeoutSeconds)

	c.Market.FetchConcurrency = getEnvInt("MARKET_FETCH_CONCURRENCY", c.Market.FetchConcurrency)
	c.Market.DefaultDays = getEnvInt("MARKET_DEFAULT_DAYS", c.Market.DefaultDays)
	c.Market.MaxDays = getEnvInt("MARKET_MAX_DAYS", c.Market.MaxDays)
	c.Market.PortfolioDays = getEnvInt("MARKET_PORTFOLIO_DAYS", c.Market.PortfolioDays)
	c.Market.ListPageSize = getEnvInt("MARKET_LIST_PAGE_SIZE", c.Market.ListPageSize)
	c.Market.Universe = getEnvList("STOCK_UNIVERSE", ",", c.Market.Universe)

	c.Auth.SupabaseURL = strings.TrimRight(getEnvString("SUPABASE_URL", c.Auth.SupabaseURL), "/")
	c.Auth.SupabaseAnonKey = getEnvString("SUPABASE_ANON_KEY", c.Auth.SupabaseAnonKey)

	c.Scheduler.Enabled = getEnvBool("SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Scheduler.RefreshCron = getEnvString("SCHEDULER_REFRESH_CRON", c.Scheduler.RefreshCron)
	c.Scheduler.RefreshDays = getEnvInt("SCHEDULER_REFRESH_DAYS", c.Scheduler.RefreshDays)

	c.Logging.Format = strings.ToLower(getEnvString("LOG_FORMAT", c.Logging.Format))
	c.Logging.Level = getEnvString("LOG_LEVEL", c.Logging.Level)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Quotes.Provider {
	case "yahoo", "alpaca":
	default:
		return fmt.Errorf("QUOTE_PROVIDER must be yahoo or alpaca, got %q", c.Quotes.Provider)
	}
	if c.Quotes.Provider == "alpaca" && !c.HasAlpaca() {
		return fmt.Errorf("QUOTE_PROVIDER=alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}

	// Validate positive integers
	if c.Quotes.TimeoutSeconds <= 0 {
		return fmt.Errorf("QUOTE_TIMEOUT_SECONDS must be positive, got %d", c.Quotes.TimeoutSeconds)
	}
	if c.Forecast.TimeoutSeconds <= 0 {
		return fmt.Errorf("FORECAST_TIMEOUT_SECONDS must be positive, got %d", c.Forecast.TimeoutSeconds)
	}
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.HTTP.RequestTimeoutSeconds)
	}
	if c.Market.FetchConcurrency <= 0 {
		return fmt.Errorf("MARKET_FETCH_CONCURRENCY must be positive, got %d", c.Market.FetchConcurrency)
	}
	if c.Market.DefaultDays <= 0 || c.Market.MaxDays <= 0 {
		return fmt.Errorf("market day windows must be positive, got default=%d max=%d", c.Market.DefaultDays, c.Market.MaxDays)
	}
	if c.Market.DefaultDays > c.Market.MaxDays {
		return fmt.Errorf("MARKET_DEFAULT_DAYS (%d) must not exceed MARKET_MAX_DAYS (%d)", c.Market.DefaultDays, c.Market.MaxDays)
	}
	if c.Market.PortfolioDays <= 0 {
		return fmt.Errorf("MARKET_PORTFOLIO_DAYS must be positive, got %d", c.Market.PortfolioDays)
	}
	if c.Market.ListPageSize <= 0 {
		return fmt.Errorf("MARKET_LIST_PAGE_SIZE must be positive, got %d", c.Market.ListPageSize)
	}
	if len(c.Market.Universe) == 0 {
		return fmt.Errorf("stock universe must not be empty")
	}
	if c.Scheduler.Enabled && c.Scheduler.RefreshCron == "" {
		return fmt.Errorf("SCHEDULER_REFRESH_CRON is required when the scheduler is enabled")
	}

	return nil
}

// HasDatabase returns true if a Postgres URL is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasSQLite returns true if an embedded store path is configured
func (c *Config) HasSQLite() bool {
	return c.Database.SQLitePath != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasForecast returns true if a forecast command is configured
func (c *Config) HasForecast() bool {
	return c.Forecast.Command != ""
}

// HasAuth returns true if the auth provider is configured
func (c *Config) HasAuth() bool {
	return c.Auth.SupabaseURL != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key, sep string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// NewDefaultConfig returns the configuration used when nothing is overridden
func NewDefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:                  ":8080",
			CORSAllowedOrigins:    "*",
			RequestTimeoutSeconds: 60,
		},
		Quotes: QuotesConfig{
			Provider:       "yahoo",
			YahooBaseURL:   "https://query1.finance.yahoo.com",
			TimeoutSeconds: 10,
		},
		Alpaca: AlpacaConfig{
			DataURL: "https://data.alpaca.markets",
		},
		Forecast: ForecastConfig{
			Command:        "python3",
			Args:           []string{"forecast.py"},
			TimeoutSeconds: 120,
		},
		Market: MarketConfig{
			FetchConcurrency: 5,
			DefaultDays:      30,
			MaxDays:          3650,
			PortfolioDays:    365,
			ListPageSize:     20,
			Universe:         append([]string(nil), DefaultUniverse...),
		},
		Scheduler: SchedulerConfig{
			Enabled:     false,
			RefreshCron: "0 30 21 * * 1-5",
			RefreshDays: 400,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Forecast.Command = ""
	cfg.Forecast.Args = nil
	cfg.Forecast.TimeoutSeconds = 5
	cfg.Quotes.TimeoutSeconds = 2
	cfg.Market.Universe = []string{"AAPL", "MSFT", "TSLA"}
	return cfg
}
