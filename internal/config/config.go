// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"locale/internal/domain/event"
)

// Providers understood by the retrieval client
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	NATS        NATSConfig      `yaml:"nats"`
	Model       ModelConfig     `yaml:"model"`
	Retrieval   RetrievalConfig `yaml:"retrieval"`
	Session     SessionConfig   `yaml:"session"`
	Render      RenderConfig    `yaml:"render"`
	Assistant   AssistantConfig `yaml:"assistant"`
	Auth        AuthConfig      `yaml:"auth"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	CorsOrigins     []string      `yaml:"cors_origins"`
}

// NATSConfig holds NATS configuration. An empty URL disables push updates.
type NATSConfig struct {
	URL            string        `yaml:"url"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	EventsTopic    string        `yaml:"events_topic"`
}

// ModelConfig holds the model provider settings
type ModelConfig struct {
	Provider     string  `yaml:"provider"`
	GoogleAPIKey string  `yaml:"-"`
	OpenAIAPIKey string  `yaml:"-"`
	GeminiModel  string  `yaml:"gemini_model"`
	OpenAIModel  string  `yaml:"openai_model"`
	OpenAIURL    string  `yaml:"openai_base_url"`
	Temperature  float64 `yaml:"temperature"`
}

// RetrievalConfig holds grounded retrieval settings
type RetrievalConfig struct {
	Mode          string        `yaml:"mode"`
	Timeout       time.Duration `yaml:"timeout"`
	EnforceSchema bool          `yaml:"enforce_schema"`
}

// SessionConfig holds session store settings
type SessionConfig struct {
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RenderConfig holds presentation settings
type RenderConfig struct {
	SummaryLength int    `yaml:"summary_length"`
	MapsBaseURL   string `yaml:"maps_base_url"`
	Timezones     bool   `yaml:"timezones"`
}

// AssistantConfig holds architect chat settings
type AssistantConfig struct {
	HistoryLimit     int `yaml:"history_limit"`
	MaxMessageLength int `yaml:"max_message_length"`
}

// AuthConfig describes the headers set by the OAuth proxy in front of the service
type AuthConfig struct {
	Required   bool   `yaml:"required"`
	UserHeader string `yaml:"user_header"`
	NameHeader string `yaml:"name_header"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  110 * time.Second,
			CorsOrigins:     []string{"*"},
		},
		NATS: NATSConfig{
			URL:            "",
			MaxReconnects:  10,
			ReconnectWait:  1 * time.Second,
			ConnectTimeout: 2 * time.Second,
			EventsTopic:    "locale.session",
		},
		Model: ModelConfig{
			Provider:    ProviderGemini,
			GeminiModel: "gemini-2.5-flash",
			OpenAIModel: "gpt-5-mini",
			Temperature: 0.1,
		},
		Retrieval: RetrievalConfig{
			Mode:          string(event.ModeStructured),
			Timeout:       90 * time.Second,
			EnforceSchema: false,
		},
		Session: SessionConfig{
			IdleTimeout:     2 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Render: RenderConfig{
			SummaryLength: 160,
			MapsBaseURL:   "https://www.google.com/maps/search/",
			Timezones:     true,
		},
		Assistant: AssistantConfig{
			HistoryLimit:     20,
			MaxMessageLength: 2000,
		},
		Auth: AuthConfig{
			Required:   false,
			UserHeader: "X-Forwarded-User",
			NameHeader: "X-Forwarded-Preferred-Username",
		},
	}
}

// Load reads .env (if present), an optional YAML file named by LOCALE_CONFIG,
// then environment variables, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	config := Default()

	if path := os.Getenv("LOCALE_CONFIG"); path != "" {
		if err := loadFile(path, &config); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&config)

	return config, validate(config)
}

func loadFile(path string, config *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, config); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Environment = getEnv("APP_ENV", c.Environment)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.RequestTimeout = getEnvAsDuration("SERVER_REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Server.CorsOrigins = getEnvAsSlice("SERVER_CORS_ORIGINS", c.Server.CorsOrigins)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.MaxReconnects = getEnvAsInt("NATS_MAX_RECONNECTS", c.NATS.MaxReconnects)
	c.NATS.ReconnectWait = getEnvAsDuration("NATS_RECONNECT_WAIT", c.NATS.ReconnectWait)
	c.NATS.ConnectTimeout = getEnvAsDuration("NATS_CONNECT_TIMEOUT", c.NATS.ConnectTimeout)
	c.NATS.EventsTopic = getEnv("NATS_EVENTS_TOPIC", c.NATS.EventsTopic)

	c.Model.Provider = strings.ToLower(getEnv("MODEL_PROVIDER", c.Model.Provider))
	c.Model.GoogleAPIKey = strings.TrimSpace(getEnv("GOOGLE_API_KEY", c.Model.GoogleAPIKey))
	c.Model.OpenAIAPIKey = strings.TrimSpace(getEnv("OPENAI_API_KEY", c.Model.OpenAIAPIKey))
	c.Model.GeminiModel = getEnv("GEMINI_MODEL", c.Model.GeminiModel)
	c.Model.OpenAIModel = getEnv("OPENAI_MODEL", c.Model.OpenAIModel)
	c.Model.OpenAIURL = getEnv("OPENAI_BASE_URL", c.Model.OpenAIURL)
	c.Model.Temperature = getEnvAsFloat("MODEL_TEMPERATURE", c.Model.Temperature)

	c.Retrieval.Mode = strings.ToLower(getEnv("RETRIEVAL_MODE", c.Retrieval.Mode))
	c.Retrieval.Timeout = getEnvAsDuration("RETRIEVAL_TIMEOUT", c.Retrieval.Timeout)
	c.Retrieval.EnforceSchema = getEnvAsBool("RETRIEVAL_ENFORCE_SCHEMA", c.Retrieval.EnforceSchema)

	c.Session.IdleTimeout = getEnvAsDuration("SESSION_IDLE_TIMEOUT", c.Session.IdleTimeout)
	c.Session.CleanupInterval = getEnvAsDuration("SESSION_CLEANUP_INTERVAL", c.Session.CleanupInterval)

	c.Render.SummaryLength = getEnvAsInt("RENDER_SUMMARY_LENGTH", c.Render.SummaryLength)
	c.Render.MapsBaseURL = getEnv("RENDER_MAPS_BASE_URL", c.Render.MapsBaseURL)
	c.Render.Timezones = getEnvAsBool("RENDER_TIMEZONES", c.Render.Timezones)

	c.Assistant.HistoryLimit = getEnvAsInt("ASSISTANT_HISTORY_LIMIT", c.Assistant.HistoryLimit)
	c.Assistant.MaxMessageLength = getEnvAsInt("ASSISTANT_MAX_MESSAGE_LENGTH", c.Assistant.MaxMessageLength)

	c.Auth.Required = getEnvAsBool("AUTH_REQUIRED", c.Auth.Required)
	c.Auth.UserHeader = getEnv("AUTH_USER_HEADER", c.Auth.UserHeader)
	c.Auth.NameHeader = getEnv("AUTH_NAME_HEADER", c.Auth.NameHeader)
}

// validate checks if config is valid. A missing API key is not a validation
// error: the service starts and reports it through MissingKey.
func validate(config Config) error {
	switch config.Model.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported model provider %q", config.Model.Provider)
	}

	switch event.Mode(config.Retrieval.Mode) {
	case event.ModeStructured, event.ModeText:
	default:
		return fmt.Errorf("unsupported retrieval mode %q", config.Retrieval.Mode)
	}

	if config.Model.Temperature < 0 || config.Model.Temperature > 1 {
		return fmt.Errorf("model temperature must be within [0,1], got %g", config.Model.Temperature)
	}
	if config.Retrieval.Timeout <= 0 {
		return errors.New("retrieval timeout must be positive")
	}
	if config.Session.IdleTimeout <= 0 {
		return errors.New("session idle timeout must be positive")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}

	return nil
}

// APIKey returns the key for the configured provider
func (c Config) APIKey() string {
	if c.Model.Provider == ProviderOpenAI {
		return c.Model.OpenAIAPIKey
	}
	return c.Model.GoogleAPIKey
}

// APIKeyVar names the environment variable that must hold the provider key
func (c Config) APIKeyVar() string {
	if c.Model.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY"
}

// MissingKey returns a ConfigMissing error when the provider key is absent
func (c Config) MissingKey() error {
	if c.APIKey() != "" {
		return nil
	}
	return event.NewError(event.KindConfigMissing, "config",
		fmt.Errorf("%s is not set; add it to the environment or .env file", c.APIKeyVar()))
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
