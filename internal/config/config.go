// Package config provides configuration for the API server, read from the environment and
// an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string        `mapstructure:"PORT"`
	ServerReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	ServerWriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`

	// NATS settings
	NATSEnabled  bool          `mapstructure:"NATS_ENABLED"`
	NATSURL      string        `mapstructure:"NATS_URL"`
	NATSCAFile   string        `mapstructure:"NATS_CA_FILE"`
	NATSCertFile string        `mapstructure:"NATS_CERT_FILE"`
	NATSKeyFile  string        `mapstructure:"NATS_KEY_FILE"`
	NATSToken    string        `mapstructure:"NATS_TOKEN"`
	AuditMaxAge  time.Duration `mapstructure:"AUDIT_MAX_AGE"`

	// JWT settings
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// LLM settings
	AnthropicAPIKey string `mapstructure:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKey    string `mapstructure:"GEMINI_API_KEY"`
	DefaultLLM      string `mapstructure:"DEFAULT_LLM"`
	LLMModel        string `mapstructure:"LLM_MODEL"`
	DialogueHistory int    `mapstructure:"DIALOGUE_HISTORY"`

	// Rate limiting
	RateLimitRequests int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Tracing
	TracingEndpoint string `mapstructure:"TRACING_ENDPOINT"`
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`

	// Redis session store; an empty address keeps sessions in memory
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Mongo booking repository; an empty URI keeps bookings in memory
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// Inventory provider
	ProviderBaseURL        string        `mapstructure:"PROVIDER_BASE_URL"`
	ProviderToken          string        `mapstructure:"PROVIDER_TOKEN"`
	ProviderVersion        string        `mapstructure:"PROVIDER_VERSION"`
	ProviderRateLimit      float64       `mapstructure:"PROVIDER_RATE_LIMIT"`
	ProviderBurst          int           `mapstructure:"PROVIDER_BURST"`
	ProviderRequestTimeout time.Duration `mapstructure:"PROVIDER_REQUEST_TIMEOUT"`
	SearchTimeout          time.Duration `mapstructure:"SEARCH_TIMEOUT"`
	MultiCitySearchTimeout time.Duration `mapstructure:"MULTI_CITY_SEARCH_TIMEOUT"`
	SearchLimit            int           `mapstructure:"SEARCH_LIMIT"`

	// Sessions
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	SweepInterval       time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SearchHistoryLimit  int           `mapstructure:"SEARCH_HISTORY_LIMIT"`
	ViewedOffersLimit   int           `mapstructure:"VIEWED_OFFERS_LIMIT"`
	RejectedOffersLimit int           `mapstructure:"REJECTED_OFFERS_LIMIT"`

	// Booking
	DefaultCountryCode string `mapstructure:"DEFAULT_COUNTRY_CODE"`
	FallbackGender     string `mapstructure:"FALLBACK_GENDER"`
	RequireAuth        bool   `mapstructure:"REQUIRE_AUTH"`
	RequirePassport    bool   `mapstructure:"REQUIRE_PASSPORT"`
	EnrichConcurrency  int    `mapstructure:"ENRICH_CONCURRENCY"`
	ResultSize         int    `mapstructure:"RESULT_SIZE"`
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"SERVER_READ_TIMEOUT":  30 * time.Second,
	"SERVER_WRITE_TIMEOUT": 180 * time.Second,
	"CORS_ORIGINS":         []string{"*"},

	"NATS_ENABLED":   false,
	"NATS_URL":       "nats://localhost:4222",
	"NATS_CA_FILE":   "",
	"NATS_CERT_FILE": "",
	"NATS_KEY_FILE":  "",
	"NATS_TOKEN":     "",
	"AUDIT_MAX_AGE":  365 * 24 * time.Hour,

	"JWT_SECRET": "development-secret-change-in-production",

	"ANTHROPIC_API_KEY": "",
	"OPENAI_API_KEY":    "",
	"GEMINI_API_KEY":    "",
	"DEFAULT_LLM":       "anthropic",
	"LLM_MODEL":         "",
	"DIALOGUE_HISTORY":  12,

	"RATE_LIMIT_REQUESTS": 60,
	"RATE_LIMIT_WINDOW":   time.Minute,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"TRACING_ENDPOINT": "localhost:4318",
	"TRACING_ENABLED":  false,

	"REDIS_ADDR":     "",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"MONGO_URI":      "",
	"MONGO_DATABASE": "flight_concierge",

	"PROVIDER_BASE_URL":         "https://api.duffel.com",
	"PROVIDER_TOKEN":            "",
	"PROVIDER_VERSION":          "v2",
	"PROVIDER_RATE_LIMIT":       5.0,
	"PROVIDER_BURST":            10,
	"PROVIDER_REQUEST_TIMEOUT":  30 * time.Second,
	"SEARCH_TIMEOUT":            60 * time.Second,
	"MULTI_CITY_SEARCH_TIMEOUT": 120 * time.Second,
	"SEARCH_LIMIT":              50,

	"SESSION_TTL":           30 * time.Minute,
	"SWEEP_INTERVAL":        5 * time.Minute,
	"SEARCH_HISTORY_LIMIT":  10,
	"VIEWED_OFFERS_LIMIT":   50,
	"REJECTED_OFFERS_LIMIT": 50,

	"DEFAULT_COUNTRY_CODE": "1",
	"FALLBACK_GENDER":      "",
	"REQUIRE_AUTH":         false,
	"REQUIRE_PASSPORT":     false,
	"ENRICH_CONCURRENCY":   5,
	"RESULT_SIZE":          5,
}

// Load reads configuration from a config.yaml in the working directory or ./config, then
// from environment variables, which win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.ResultSize <= 0 {
		return fmt.Errorf("RESULT_SIZE must be positive")
	}
	switch c.FallbackGender {
	case "", "m", "f":
	default:
		return fmt.Errorf("FALLBACK_GENDER must be m, f or empty")
	}
	return nil
}

// UsesRedis reports whether sessions are stored in Redis.
func (c *Config) UsesRedis() bool { return c.RedisAddr != "" }

// UsesMongo reports whether bookings are stored in MongoDB.
func (c *Config) UsesMongo() bool { return c.MongoURI != "" }
