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

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq client/worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CRMConfig provides settings for the CRM API client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMServiceUser() string
	GetCRMServicePassword() string
}

// ClassifierConfig provides settings for the LLM classification client.
type ClassifierConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetModelContextTokens() int
}

// TemplateMessagingConfig provides settings for messaging provider A
// (official template/interactive message API).
type TemplateMessagingConfig interface {
	GetTemplateAPIURL() string
	GetTemplateAPIToken() string
}

// SessionMessagingConfig provides settings for messaging provider B
// (session message API with inline buttons).
type SessionMessagingConfig interface {
	GetSessionAPIURL() string
	GetSessionClientToken() string
}

// WebhookConfig provides settings for inbound webhook authentication.
type WebhookConfig interface {
	GetTemplateAppSecret() string
	GetTemplateVerifyToken() string
	GetSessionReceiveToken() string
}

// DedupConfig provides settings for webhook delivery deduplication.
type DedupConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// ArchiveConfig provides settings for the raw webhook payload archive.
type ArchiveConfig interface {
	GetArchiveEndpoint() string
	GetArchiveAccessKey() string
	GetArchiveSecretKey() string
	GetArchiveUseSSL() bool
	GetArchiveBucket() string
	IsArchiveEnabled() bool
}

// AlertConfig provides settings for the ops alert mailer.
type AlertConfig interface {
	GetAlertSMTPHost() string
	GetAlertSMTPPort() int
	GetAlertSMTPUser() string
	GetAlertSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
	IsAlertingEnabled() bool
}

// AnalyzerConfig provides tuning for the re-evaluation loop.
type AnalyzerConfig interface {
	GetAnalyzerInterval() time.Duration
	GetMaxLeadsPerCycle() int
	GetLeadGracePeriod() time.Duration
	GetReprocessInterval() time.Duration
	GetReprocessIntervalAwaiting() time.Duration
	GetDefaultLookbackDays() int
}

// DispatchConfig provides tuning for the message dispatch loop.
type DispatchConfig interface {
	GetDispatchInterval() time.Duration
	GetClaimBatchSize() int
	GetInterMessageDelay() time.Duration
	GetSendingStaleAfter() time.Duration
	GetWindowLimit() time.Duration
	GetTemplateFile() string
}

// ScheduleConfig provides the business-hours gate.
type ScheduleConfig interface {
	GetBusinessHoursStart() int
	GetBusinessHoursEnd() int
	GetBusinessTimezone() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	CORSAllowAll              bool
	CORSOrigins               []string
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	CRMBaseURL                string
	CRMServiceUser            string
	CRMServicePassword        string
	GeminiAPIKey              string
	GeminiModel               string
	ModelContextTokens        int
	TemplateAPIURL            string
	TemplateAPIToken          string
	TemplateAppSecret         string
	TemplateVerifyToken       string
	SessionAPIURL             string
	SessionClientToken        string
	SessionReceiveToken       string
	ArchiveEndpoint           string
	ArchiveAccessKey          string
	ArchiveSecretKey          string
	ArchiveUseSSL             bool
	ArchiveBucket             string
	AlertSMTPHost             string
	AlertSMTPPort             int
	AlertSMTPUser             string
	AlertSMTPPassword         string
	AlertFromAddress          string
	AlertToAddress            string
	AnalyzerInterval          time.Duration
	MaxLeadsPerCycle          int
	LeadGracePeriod           time.Duration
	ReprocessInterval         time.Duration
	ReprocessIntervalAwaiting time.Duration
	DefaultLookbackDays       int
	DispatchInterval          time.Duration
	ClaimBatchSize            int
	InterMessageDelay         time.Duration
	SendingStaleAfter         time.Duration
	WindowLimit               time.Duration
	TemplateFile              string
	BusinessHoursStart        int
	BusinessHoursEnd          int
	BusinessTimezone          string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string         { return c.CRMBaseURL }
func (c *Config) GetCRMServiceUser() string     { return c.CRMServiceUser }
func (c *Config) GetCRMServicePassword() string { return c.CRMServicePassword }

// ClassifierConfig implementation
func (c *Config) GetGeminiAPIKey() string    { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string     { return c.GeminiModel }
func (c *Config) GetModelContextTokens() int { return c.ModelContextTokens }

// TemplateMessagingConfig implementation
func (c *Config) GetTemplateAPIURL() string   { return c.TemplateAPIURL }
func (c *Config) GetTemplateAPIToken() string { return c.TemplateAPIToken }

// SessionMessagingConfig implementation
func (c *Config) GetSessionAPIURL() string      { return c.SessionAPIURL }
func (c *Config) GetSessionClientToken() string { return c.SessionClientToken }

// WebhookConfig implementation
func (c *Config) GetTemplateAppSecret() string   { return c.TemplateAppSecret }
func (c *Config) GetTemplateVerifyToken() string { return c.TemplateVerifyToken }
func (c *Config) GetSessionReceiveToken() string { return c.SessionReceiveToken }

// ArchiveConfig implementation
func (c *Config) GetArchiveEndpoint() string  { return c.ArchiveEndpoint }
func (c *Config) GetArchiveAccessKey() string { return c.ArchiveAccessKey }
func (c *Config) GetArchiveSecretKey() string { return c.ArchiveSecretKey }
func (c *Config) GetArchiveUseSSL() bool      { return c.ArchiveUseSSL }
func (c *Config) GetArchiveBucket() string    { return c.ArchiveBucket }
func (c *Config) IsArchiveEnabled() bool      { return c.ArchiveEndpoint != "" }

// AlertConfig implementation
func (c *Config) GetAlertSMTPHost() string     { return c.AlertSMTPHost }
func (c *Config) GetAlertSMTPPort() int        { return c.AlertSMTPPort }
func (c *Config) GetAlertSMTPUser() string     { return c.AlertSMTPUser }
func (c *Config) GetAlertSMTPPassword() string { return c.AlertSMTPPassword }
func (c *Config) GetAlertFromAddress() string  { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string    { return c.AlertToAddress }
func (c *Config) IsAlertingEnabled() bool {
	return c.AlertSMTPHost != "" && c.AlertToAddress != ""
}

// AnalyzerConfig implementation
func (c *Config) GetAnalyzerInterval() time.Duration          { return c.AnalyzerInterval }
func (c *Config) GetMaxLeadsPerCycle() int                    { return c.MaxLeadsPerCycle }
func (c *Config) GetLeadGracePeriod() time.Duration           { return c.LeadGracePeriod }
func (c *Config) GetReprocessInterval() time.Duration         { return c.ReprocessInterval }
func (c *Config) GetReprocessIntervalAwaiting() time.Duration { return c.ReprocessIntervalAwaiting }
func (c *Config) GetDefaultLookbackDays() int                 { return c.DefaultLookbackDays }

// DispatchConfig implementation
func (c *Config) GetDispatchInterval() time.Duration  { return c.DispatchInterval }
func (c *Config) GetClaimBatchSize() int              { return c.ClaimBatchSize }
func (c *Config) GetInterMessageDelay() time.Duration { return c.InterMessageDelay }
func (c *Config) GetSendingStaleAfter() time.Duration { return c.SendingStaleAfter }
func (c *Config) GetWindowLimit() time.Duration       { return c.WindowLimit }
func (c *Config) GetTemplateFile() string             { return c.TemplateFile }

// ScheduleConfig implementation
func (c *Config) GetBusinessHoursStart() int  { return c.BusinessHoursStart }
func (c *Config) GetBusinessHoursEnd() int    { return c.BusinessHoursEnd }
func (c *Config) GetBusinessTimezone() string { return c.BusinessTimezone }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", ""))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "dispatch"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		CRMBaseURL:                getEnv("CRM_BASE_URL", ""),
		CRMServiceUser:            getEnv("CRM_SERVICE_USER", ""),
		CRMServicePassword:        getEnv("CRM_SERVICE_PASSWORD", ""),
		GeminiAPIKey:              getEnv("GEMINI_API_KEY", ""),
		GeminiModel:               getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ModelContextTokens:        mustInt(getEnv("MODEL_CONTEXT_TOKENS", "1000000")),
		TemplateAPIURL:            getEnv("TEMPLATE_API_URL", ""),
		TemplateAPIToken:          getEnv("TEMPLATE_API_TOKEN", ""),
		TemplateAppSecret:         getEnv("TEMPLATE_APP_SECRET", ""),
		TemplateVerifyToken:       getEnv("TEMPLATE_VERIFY_TOKEN", ""),
		SessionAPIURL:             getEnv("SESSION_API_URL", ""),
		SessionClientToken:        getEnv("SESSION_CLIENT_TOKEN", ""),
		SessionReceiveToken:       getEnv("SESSION_RECEIVE_TOKEN", ""),
		ArchiveEndpoint:           getEnv("ARCHIVE_ENDPOINT", ""),
		ArchiveAccessKey:          getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey:          getEnv("ARCHIVE_SECRET_KEY", ""),
		ArchiveUseSSL:             strings.EqualFold(getEnv("ARCHIVE_USE_SSL", "false"), "true"),
		ArchiveBucket:             getEnv("ARCHIVE_BUCKET", "webhook-payloads"),
		AlertSMTPHost:             getEnv("ALERT_SMTP_HOST", ""),
		AlertSMTPPort:             mustInt(getEnv("ALERT_SMTP_PORT", "587")),
		AlertSMTPUser:             getEnv("ALERT_SMTP_USER", ""),
		AlertSMTPPassword:         getEnv("ALERT_SMTP_PASSWORD", ""),
		AlertFromAddress:          getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:            getEnv("ALERT_TO_ADDRESS", ""),
		AnalyzerInterval:          mustDuration(getEnv("ANALYZER_INTERVAL", "5m")),
		MaxLeadsPerCycle:          mustInt(getEnv("MAX_LEADS_PER_CYCLE", "100")),
		LeadGracePeriod:           mustDuration(getEnv("LEAD_GRACE_PERIOD", "3h")),
		ReprocessInterval:         mustDuration(getEnv("REPROCESS_INTERVAL", "9h")),
		ReprocessIntervalAwaiting: mustDuration(getEnv("REPROCESS_INTERVAL_AWAITING", "24h")),
		DefaultLookbackDays:       mustInt(getEnv("DEFAULT_LOOKBACK_DAYS", "30")),
		DispatchInterval:          mustDuration(getEnv("DISPATCH_INTERVAL", "5m")),
		ClaimBatchSize:            mustInt(getEnv("CLAIM_BATCH_SIZE", "20")),
		InterMessageDelay:         mustDuration(getEnv("INTER_MESSAGE_DELAY", "500ms")),
		SendingStaleAfter:         mustDuration(getEnv("SENDING_STALE_AFTER", "5m")),
		WindowLimit:               mustDuration(getEnv("WINDOW_LIMIT", "23h50m")),
		TemplateFile:              getEnv("TEMPLATE_FILE", ""),
		BusinessHoursStart:        mustInt(getEnv("BUSINESS_HOURS_START", "9")),
		BusinessHoursEnd:          mustInt(getEnv("BUSINESS_HOURS_END", "19")),
		BusinessTimezone:          getEnv("BUSINESS_TIMEZONE", "America/Sao_Paulo"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CRMBaseURL == "" {
		return nil, fmt.Errorf("CRM_BASE_URL is required")
	}
	if cfg.BusinessHoursStart < 0 || cfg.BusinessHoursEnd > 24 || cfg.BusinessHoursStart >= cfg.BusinessHoursEnd {
		return nil, fmt.Errorf("invalid business hours range %d-%d", cfg.BusinessHoursStart, cfg.BusinessHoursEnd)
	}
	if cfg.WindowLimit <= 0 || cfg.WindowLimit > 24*time.Hour {
		return nil, fmt.Errorf("WINDOW_LIMIT must be within (0, 24h]")
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
