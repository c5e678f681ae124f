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

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides settings for the task queue backend.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// CRMConfig provides settings for the CRM REST client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAccessToken() string
	GetCRMPipelineID() int64
	GetCRMConfirmedStageID() int64
	GetCRMConcludedStageID() int64
	GetCRMRegionField() string
}

// GatewayConfig provides settings for the messaging gateway client.
type GatewayConfig interface {
	GetGatewayBaseURL() string
	GetGatewayAPIKey() string
	GetGatewaySendRate() float64
}

// WebhookConfig provides the shared secrets that authenticate inbound webhooks.
type WebhookConfig interface {
	GetCRMWebhookToken() string
	GetGatewayWebhookToken() string
}

// ClassifierConfig provides settings for the LLM intent classifier.
type ClassifierConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	IsClassifierEnabled() bool
}

// TranscribeConfig provides settings for the audio transcription service.
type TranscribeConfig interface {
	GetTranscribeAPIURL() string
	GetTranscribeAPIKey() string
	GetTranscribeModel() string
	IsTranscribeEnabled() bool
}

// MediaConfig provides settings for presentation material storage.
type MediaConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketMaterials() string
	IsMinIOEnabled() bool
	GetMaterialsDir() string
	GetPresentationFile() string
	GetPresentationCaption() string
}

// SchedulerConfig provides timing knobs for the outreach scheduler.
type SchedulerConfig interface {
	GetDebounceWindow() time.Duration
	GetSweepMinInterval() time.Duration
	GetSweepMaxInterval() time.Duration
	GetLeadExpiry() time.Duration
}

// NotifyConfig provides settings for operator email alerts.
type NotifyConfig interface {
	GetNotifyEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetNotifyFromAddress() string
	GetNotifyToAddresses() []string
}

// AdminConfig provides settings for the operational admin endpoints.
type AdminConfig interface {
	GetAdminToken() string
	IsProduction() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	RedisURL             string
	RedisTLSInsecure     bool
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	CRMBaseURL           string
	CRMAccessToken       string
	CRMPipelineID        int64
	CRMConfirmedStageID  int64
	CRMConcludedStageID  int64
	CRMRegionField       string
	CRMWebhookToken      string
	GatewayBaseURL       string
	GatewayAPIKey        string
	GatewayWebhookToken  string
	GatewaySendRate      float64
	GeminiAPIKey         string
	GeminiModel          string
	TranscribeAPIURL     string
	TranscribeAPIKey     string
	TranscribeModel      string
	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOUseSSL          bool
	MinioBucketMaterials string
	MaterialsDir         string
	PresentationFile     string
	PresentationCaption  string
	DebounceWindow       time.Duration
	SweepMinInterval     time.Duration
	SweepMaxInterval     time.Duration
	LeadExpiry           time.Duration
	NotifyEnabled        bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	NotifyFromAddress    string
	NotifyToAddresses    []string
	AdminToken           string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string         { return c.CRMBaseURL }
func (c *Config) GetCRMAccessToken() string     { return c.CRMAccessToken }
func (c *Config) GetCRMPipelineID() int64       { return c.CRMPipelineID }
func (c *Config) GetCRMConfirmedStageID() int64 { return c.CRMConfirmedStageID }
func (c *Config) GetCRMConcludedStageID() int64 { return c.CRMConcludedStageID }
func (c *Config) GetCRMRegionField() string     { return c.CRMRegionField }

// GatewayConfig implementation
func (c *Config) GetGatewayBaseURL() string   { return c.GatewayBaseURL }
func (c *Config) GetGatewayAPIKey() string    { return c.GatewayAPIKey }
func (c *Config) GetGatewaySendRate() float64 { return c.GatewaySendRate }

// WebhookConfig implementation
func (c *Config) GetCRMWebhookToken() string     { return c.CRMWebhookToken }
func (c *Config) GetGatewayWebhookToken() string { return c.GatewayWebhookToken }

// ClassifierConfig implementation
func (c *Config) GetGeminiAPIKey() string   { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string    { return c.GeminiModel }
func (c *Config) IsClassifierEnabled() bool { return c.GeminiAPIKey != "" }

// TranscribeConfig implementation
func (c *Config) GetTranscribeAPIURL() string { return c.TranscribeAPIURL }
func (c *Config) GetTranscribeAPIKey() string { return c.TranscribeAPIKey }
func (c *Config) GetTranscribeModel() string  { return c.TranscribeModel }
func (c *Config) IsTranscribeEnabled() bool   { return c.TranscribeAPIKey != "" }

// MediaConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketMaterials() string { return c.MinioBucketMaterials }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }
func (c *Config) GetMaterialsDir() string         { return c.MaterialsDir }
func (c *Config) GetPresentationFile() string     { return c.PresentationFile }
func (c *Config) GetPresentationCaption() string  { return c.PresentationCaption }

// SchedulerConfig implementation
func (c *Config) GetDebounceWindow() time.Duration   { return c.DebounceWindow }
func (c *Config) GetSweepMinInterval() time.Duration { return c.SweepMinInterval }
func (c *Config) GetSweepMaxInterval() time.Duration { return c.SweepMaxInterval }
func (c *Config) GetLeadExpiry() time.Duration       { return c.LeadExpiry }

// NotifyConfig implementation
func (c *Config) GetNotifyEnabled() bool        { return c.NotifyEnabled }
func (c *Config) GetSMTPHost() string           { return c.SMTPHost }
func (c *Config) GetSMTPPort() int              { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string       { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string       { return c.SMTPPassword }
func (c *Config) GetNotifyFromAddress() string  { return c.NotifyFromAddress }
func (c *Config) GetNotifyToAddresses() []string { return c.NotifyToAddresses }

// AdminConfig implementation
func (c *Config) GetAdminToken() string { return c.AdminToken }
func (c *Config) IsProduction() bool    { return strings.EqualFold(c.Env, "production") }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	notifyEnabled := strings.EqualFold(getEnv("NOTIFY_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		CRMBaseURL:           strings.TrimRight(getEnv("CRM_BASE_URL", ""), "/"),
		CRMAccessToken:       getEnv("CRM_ACCESS_TOKEN", ""),
		CRMPipelineID:        mustInt64(getEnv("CRM_PIPELINE_ID", "0")),
		CRMConfirmedStageID:  mustInt64(getEnv("CRM_CONFIRMED_STAGE_ID", "0")),
		CRMConcludedStageID:  mustInt64(getEnv("CRM_CONCLUDED_STAGE_ID", "0")),
		CRMRegionField:       getEnv("CRM_REGION_FIELD", "Estado"),
		CRMWebhookToken:      getEnv("CRM_WEBHOOK_TOKEN", ""),
		GatewayBaseURL:       strings.TrimRight(getEnv("GATEWAY_BASE_URL", ""), "/"),
		GatewayAPIKey:        getEnv("GATEWAY_API_KEY", ""),
		GatewayWebhookToken:  getEnv("GATEWAY_WEBHOOK_TOKEN", ""),
		GatewaySendRate:      mustFloat64(getEnv("GATEWAY_SEND_RATE", "0.5")),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		TranscribeAPIURL:     getEnv("TRANSCRIBE_API_URL", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeAPIKey:     getEnv("TRANSCRIBE_API_KEY", ""),
		TranscribeModel:      getEnv("TRANSCRIBE_MODEL", "whisper-1"),
		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:       getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:       getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:          strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketMaterials: getEnv("MINIO_BUCKET_MATERIALS", "outreach-materials"),
		MaterialsDir:         getEnv("MATERIALS_DIR", "materials"),
		PresentationFile:     getEnv("PRESENTATION_FILE", "apresentacao.pdf"),
		PresentationCaption:  getEnv("PRESENTATION_CAPTION", "Segue nossa apresentação"),
		DebounceWindow:       mustDuration(getEnv("DEBOUNCE_WINDOW", "10s")),
		SweepMinInterval:     mustDuration(getEnv("SWEEP_MIN_INTERVAL", "3m")),
		SweepMaxInterval:     mustDuration(getEnv("SWEEP_MAX_INTERVAL", "6m")),
		LeadExpiry:           mustDuration(getEnv("LEAD_EXPIRY", "24h")),
		NotifyEnabled:        notifyEnabled && smtpHost != "",
		SMTPHost:             smtpHost,
		SMTPPort:             int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		NotifyFromAddress:    getEnv("NOTIFY_FROM_ADDRESS", ""),
		NotifyToAddresses:    splitCSV(getEnv("NOTIFY_TO_ADDRESSES", "")),
		AdminToken:           getEnv("ADMIN_TOKEN", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CRMBaseURL == "" || cfg.CRMAccessToken == "" {
		return nil, fmt.Errorf("CRM_BASE_URL and CRM_ACCESS_TOKEN are required")
	}
	if cfg.GatewayBaseURL == "" || cfg.GatewayAPIKey == "" {
		return nil, fmt.Errorf("GATEWAY_BASE_URL and GATEWAY_API_KEY are required")
	}
	if cfg.NotifyEnabled && cfg.NotifyFromAddress == "" {
		return nil, fmt.Errorf("NOTIFY_FROM_ADDRESS is required when notifications are enabled")
	}
	if cfg.DebounceWindow <= 0 {
		return nil, fmt.Errorf("DEBOUNCE_WINDOW must be positive")
	}
	if cfg.SweepMinInterval > cfg.SweepMaxInterval {
		return nil, fmt.Errorf("SWEEP_MIN_INTERVAL cannot exceed SWEEP_MAX_INTERVAL")
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

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
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
