// Package config provides configuration for the widget gateway.
//
// Values come from, in order of precedence: environment variables, a .env
// file, an optional widget.yaml and the defaults below.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSAllowedOrigins []string

	// Query API settings
	APIBaseURL      string
	PageOrigin      string
	APITimeout      time.Duration
	PageSize        int
	DefaultLanguage string
	ChainDelay      time.Duration

	// Analytics
	AnalyticsEnabled bool

	// Sessions
	JWTSecret  string
	SessionTTL time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Widget presentation
	WidgetPosition     string
	WidgetPrimaryColor string
	WidgetGreeting     string
	WidgetPlaceholder  string
	WidgetSuggestions  []string
}

const devSecret = "development-secret-change-in-production"

var defaults = map[string]any{
	"PORT":                 "8080",
	"SERVER_READ_TIMEOUT":  "30s",
	"SERVER_WRITE_TIMEOUT": "60s",
	"CORS_ALLOWED_ORIGINS": "",
	"API_BASE_URL":         "",
	"PAGE_ORIGIN":          "",
	"API_TIMEOUT":          "30s",
	"PAGE_SIZE":            5,
	"DEFAULT_LANGUAGE":     "en",
	"CHAIN_DELAY":          "800ms",
	"ANALYTICS_ENABLED":    true,
	"JWT_SECRET":           devSecret,
	"SESSION_TTL":          "24h",
	"RATE_LIMIT_REQUESTS":  60,
	"RATE_LIMIT_WINDOW":    "1m",
	"LOG_LEVEL":            "info",
	"TRACING_ENDPOINT":     "localhost:4318",
	"TRACING_ENABLED":      false,
	"NATS_URL":             "",
	"NATS_CA_FILE":         "",
	"NATS_CERT_FILE":       "",
	"NATS_KEY_FILE":        "",
	"NATS_TOKEN":           "",
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"WIDGET_POSITION":      "bottom-right",
	"WIDGET_PRIMARY_COLOR": "#0066cc",
	"WIDGET_GREETING":      "¡Hola! ¿En qué puedo ayudarte?",
	"WIDGET_PLACEHOLDER":   "Escribe tu pregunta...",
	"WIDGET_SUGGESTIONS":   "¿Cómo obtener el NIE?|Busco dentista en Barcelona|Quiero aprender español|Colegios internacionales",
}

// Load reads configuration from the environment, a .env file in the working
// directory and an optional widget.yaml.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	v.SetConfigName("widget")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading widget config: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:         v.GetString("PORT"),
		ServerReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
		ServerWriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		CORSAllowedOrigins: getList(v, "CORS_ALLOWED_ORIGINS", ","),

		APIBaseURL:      v.GetString("API_BASE_URL"),
		PageOrigin:      v.GetString("PAGE_ORIGIN"),
		APITimeout:      v.GetDuration("API_TIMEOUT"),
		PageSize:        v.GetInt("PAGE_SIZE"),
		DefaultLanguage: strings.ToLower(v.GetString("DEFAULT_LANGUAGE")),
		ChainDelay:      v.GetDuration("CHAIN_DELAY"),

		AnalyticsEnabled: v.GetBool("ANALYTICS_ENABLED"),

		JWTSecret:  v.GetString("JWT_SECRET"),
		SessionTTL: v.GetDuration("SESSION_TTL"),

		RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),

		LogLevel: v.GetString("LOG_LEVEL"),

		TracingEndpoint: v.GetString("TRACING_ENDPOINT"),
		TracingEnabled:  v.GetBool("TRACING_ENABLED"),

		NATSURL:      v.GetString("NATS_URL"),
		NATSCAFile:   v.GetString("NATS_CA_FILE"),
		NATSCertFile: v.GetString("NATS_CERT_FILE"),
		NATSKeyFile:  v.GetString("NATS_KEY_FILE"),
		NATSToken:    v.GetString("NATS_TOKEN"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		WidgetPosition:     v.GetString("WIDGET_POSITION"),
		WidgetPrimaryColor: v.GetString("WIDGET_PRIMARY_COLOR"),
		WidgetGreeting:     v.GetString("WIDGET_GREETING"),
		WidgetPlaceholder:  v.GetString("WIDGET_PLACEHOLDER"),
		WidgetSuggestions:  getList(v, "WIDGET_SUGGESTIONS", "|"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.PageSize < 1 {
		return errors.New("PAGE_SIZE must be at least 1")
	}
	if c.APITimeout <= 0 {
		return errors.New("API_TIMEOUT must be positive")
	}
	if len(c.DefaultLanguage) != 2 {
		return errors.New("DEFAULT_LANGUAGE must be a two-letter code")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.ChainDelay < 0 {
		return errors.New("CHAIN_DELAY cannot be negative")
	}
	return nil
}

// UsesDevSecret reports whether the built-in development JWT secret is active.
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == devSecret
}

// getList reads a key that is either a YAML list or a separated string.
func getList(v *viper.Viper, key, sep string) []string {
	if raw, ok := v.Get(key).([]any); ok {
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	out := []string{}
	for _, part := range strings.Split(v.GetString(key), sep) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
