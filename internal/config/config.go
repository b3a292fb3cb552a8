package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// StorageDriver selects "dynamo" or "memory" (local development only).
	StorageDriver string
	// RateLimitBackend selects "dynamo" or "redis" for send counters.
	RateLimitBackend string
	RedisURL         string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	TokenIssuer        string

	BcryptCost int

	EmailTokenTTL      time.Duration
	PhoneCodeTTL       time.Duration
	ResetTokenTTL      time.Duration
	SendMaxAttempts    int
	SendWindow         time.Duration
	CleanupInterval    time.Duration
	AuditRetention     time.Duration
	AuditArchiveBucket string

	GoogleClientID string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	// PublicBaseURL prefixes the links placed in verification and reset emails.
	PublicBaseURL string

	AllowedOrigins []string // CORS allowed origins
	// TrustProxyHeaders takes the client address from X-Real-IP /
	// X-Forwarded-For. Enable only behind an ingress that overwrites them.
	TrustProxyHeaders bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users              string
	VerificationTokens string
	RateLimits         string
	AuditLogs          string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:              getEnv("DYNAMO_TABLE_USERS", "users"),
			VerificationTokens: getEnv("DYNAMO_TABLE_VERIFICATION_TOKENS", "verification_tokens"),
			RateLimits:         getEnv("DYNAMO_TABLE_RATE_LIMITS", "rate_limits"),
			AuditLogs:          getEnv("DYNAMO_TABLE_AUDIT_LOGS", "verification_audit_logs"),
		},
		StorageDriver:      getEnv("STORAGE_DRIVER", "dynamo"),
		RateLimitBackend:   getEnv("RATE_LIMIT_BACKEND", "dynamo"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		TokenIssuer:        getEnv("TOKEN_ISSUER", "identity"),
		BcryptCost:         getEnvInt("BCRYPT_COST", 12),
		EmailTokenTTL:      getEnvDuration("EMAIL_TOKEN_TTL", 24*time.Hour),
		PhoneCodeTTL:       getEnvDuration("PHONE_CODE_TTL", 10*time.Minute),
		ResetTokenTTL:      getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		SendMaxAttempts:    getEnvInt("SEND_MAX_ATTEMPTS", 5),
		SendWindow:         getEnvDuration("SEND_WINDOW", time.Hour),
		CleanupInterval:    getEnvDuration("CLEANUP_INTERVAL", 15*time.Minute),
		AuditRetention:     getEnvDuration("AUDIT_RETENTION", 0),
		AuditArchiveBucket: getEnv("AUDIT_ARCHIVE_BUCKET", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		SMTPHost:           getEnv("SMTP_HOST", "localhost"),
		SMTPPort:           getEnv("SMTP_PORT", "1025"),
		SMTPFrom:           getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SNSRegion:          getEnv("SNS_REGION", "us-east-1"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		AllowedOrigins:     strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxyHeaders:  getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

// Validate reports configuration that must stop the process at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	if c.SendMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("SEND_MAX_ATTEMPTS must be positive, got %d", c.SendMaxAttempts))
	}
	switch c.StorageDriver {
	case "dynamo", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	switch c.RateLimitBackend {
	case "dynamo", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
