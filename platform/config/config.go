// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// WebhookConfig provides settings for the telephony webhook boundary.
type WebhookConfig interface {
	GetWebhookSecret() string
}

// ExtractorConfig provides settings for the LLM field extractor.
type ExtractorConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetExtractorTimeout() time.Duration
	IsLLMExtractorEnabled() bool
}

// EngineConfig provides settings for the conversation engine policy.
type EngineConfig interface {
	GetClarificationLimit() int
}

// GeoConfig provides settings for the distance resolver.
type GeoConfig interface {
	GetGeocoderURL() string
	GetGeocoderUserAgent() string
	GetFallbackDistanceKm() float64
}

// RegistryConfig provides settings for the session registry backing store.
type RegistryConfig interface {
	GetRedisURL() string
	GetSessionTTL() time.Duration
}

// MessagingConfig provides settings for quote delivery.
type MessagingConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	IsSMSEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// HandoffConfig provides settings for the human-transfer collaborator.
type HandoffConfig interface {
	GetHandoffURL() string
	IsHandoffEnabled() bool
}

// BusinessConfig provides settings for business configuration loading.
type BusinessConfig interface {
	GetBusinessConfigDir() string
	GetDefaultBusinessID() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	WebhookSecret      string
	GeminiAPIKey       string
	GeminiModel        string
	ExtractorTimeout   time.Duration
	ClarificationLimit int
	GeocoderURL        string
	GeocoderUserAgent  string
	FallbackDistanceKm float64
	RedisURL           string
	SessionTTL         time.Duration
	SMSGatewayURL      string
	SMSGatewayKey      string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	EmailFromName      string
	EmailFromAddress   string
	HandoffURL         string
	BusinessConfigDir  string
	DefaultBusinessID  string
}

// HTTPConfig implementation.
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WebhookConfig implementation.
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

// ExtractorConfig implementation.
func (c *Config) GetGeminiAPIKey() string              { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string               { return c.GeminiModel }
func (c *Config) GetExtractorTimeout() time.Duration   { return c.ExtractorTimeout }
func (c *Config) IsLLMExtractorEnabled() bool          { return c.GeminiAPIKey != "" }

// EngineConfig implementation.
func (c *Config) GetClarificationLimit() int { return c.ClarificationLimit }

// GeoConfig implementation.
func (c *Config) GetGeocoderURL() string         { return c.GeocoderURL }
func (c *Config) GetGeocoderUserAgent() string   { return c.GeocoderUserAgent }
func (c *Config) GetFallbackDistanceKm() float64 { return c.FallbackDistanceKm }

// RegistryConfig implementation.
func (c *Config) GetRedisURL() string           { return c.RedisURL }
func (c *Config) GetSessionTTL() time.Duration  { return c.SessionTTL }

// MessagingConfig implementation.
func (c *Config) GetSMSGatewayURL() string    { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string    { return c.SMSGatewayKey }
func (c *Config) IsSMSEnabled() bool          { return c.SMSGatewayURL != "" }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// HandoffConfig implementation.
func (c *Config) GetHandoffURL() string  { return c.HandoffURL }
func (c *Config) IsHandoffEnabled() bool { return c.HandoffURL != "" }

// BusinessConfig implementation.
func (c *Config) GetBusinessConfigDir() string { return c.BusinessConfigDir }
func (c *Config) GetDefaultBusinessID() string { return c.DefaultBusinessID }

// Load reads configuration from the environment (and an optional .env file).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ExtractorTimeout:   mustDuration(getEnv("EXTRACTOR_TIMEOUT", "8s")),
		ClarificationLimit: mustInt(getEnv("CLARIFICATION_ATTEMPT_LIMIT", "2")),
		GeocoderURL:        getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
		GeocoderUserAgent:  getEnv("GEOCODER_USER_AGENT", "PianoMoveAI/1.0"),
		FallbackDistanceKm: mustFloat(getEnv("FALLBACK_DISTANCE_KM", "50")),
		RedisURL:           getEnv("REDIS_URL", ""),
		SessionTTL:         mustDuration(getEnv("SESSION_TTL", "2h")),
		SMSGatewayURL:      getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:      getEnv("SMS_GATEWAY_KEY", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "PianoMove AI"),
		EmailFromAddress:   getEnv("EMAIL_FROM_ADDRESS", ""),
		HandoffURL:         getEnv("HANDOFF_URL", ""),
		BusinessConfigDir:  getEnv("BUSINESS_CONFIG_DIR", "configs"),
		DefaultBusinessID:  getEnv("DEFAULT_BUSINESS_ID", "piano_moving_001"),
	}

	if cfg.ExtractorTimeout <= 0 {
		return nil, fmt.Errorf("EXTRACTOR_TIMEOUT must be a positive duration")
	}
	if cfg.ClarificationLimit < 1 {
		return nil, fmt.Errorf("CLARIFICATION_ATTEMPT_LIMIT must be at least 1")
	}
	if cfg.FallbackDistanceKm <= 0 {
		return nil, fmt.Errorf("FALLBACK_DISTANCE_KM must be positive")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
