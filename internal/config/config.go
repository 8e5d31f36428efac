package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int
	LogLevel   string

	// Storage
	Storage    string
	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	// DBAutoMigrate applies pending migrations at startup.
	DBAutoMigrate bool

	// JWT
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	CookieSecure   bool

	// One-time codes
	OTPTTL           time.Duration
	OTPPurgeInterval time.Duration

	// SMTP (optional, falls back to logging messages)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// NotifyTimeout bounds every outbound mail delivery.
	NotifyTimeout time.Duration

	// Mail queue
	MailWorkers   int
	MailQueueSize int
	AMQPURL       string
	AMQPExchange  string
	AMQPQueue     string
	AMQPPrefetch  int

	Realtime        RealtimeConfig
	PasswordPolicy  PasswordPolicyConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// RealtimeConfig controls the websocket endpoint.
type RealtimeConfig struct {
	// RequireToken rejects sockets without a valid ?token= and restricts
	// join_room to the token's own account.
	RequireToken   bool
	AllowedOrigins []string
	SendBuffer     int
}

// PasswordPolicyConfig holds password complexity requirements.
// The zero value accepts any non-empty password.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// RateLimitConfig holds per-group request limits.
type RateLimitConfig struct {
	Enabled bool

	AuthRequestsPerMinute int
	AuthWindowMinutes     int

	VerifyRequestsPerWindow int
	VerifyWindowMinutes     int

	FinderRequestsPerWindow int
	FinderWindowMinutes     int

	PetRequestsPerMinute int
	PetWindowMinutes     int
}

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	MaxRequestBodySize    int64
	MaxPhotoSize          int64
	StrictEmailValidation bool
	StrictUsername        bool
	BlockDisposableEmail  bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 5000),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		Storage:    getEnv("STORAGE", StoragePostgres),
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "pawfinder"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "pawfinder"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		CookieSecure:   getEnvBool("COOKIE_SECURE", false),

		OTPTTL:           getEnvDuration("OTP_TTL", 5*time.Minute),
		OTPPurgeInterval: getEnvDuration("OTP_PURGE_INTERVAL", time.Minute),

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:      getEnv("SMTP_FROM", "no-reply@pawfinder.local"),
		SMTPFromName:  getEnv("SMTP_FROM_NAME", "PawFinder"),
		NotifyTimeout: getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		MailWorkers:   getEnvInt("MAIL_WORKERS", 2),
		MailQueueSize: getEnvInt("MAIL_QUEUE_SIZE", 128),
		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "pawfinder.mail"),
		AMQPQueue:     getEnv("AMQP_QUEUE", "pawfinder.mail.outbound"),
		AMQPPrefetch:  getEnvInt("AMQP_PREFETCH", 8),

		Realtime: RealtimeConfig{
			RequireToken:   getEnvBool("WS_REQUIRE_TOKEN", false),
			AllowedOrigins: getEnvList("WS_ALLOWED_ORIGINS"),
			SendBuffer:     getEnvInt("WS_SEND_BUFFER", 64),
		},

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 0),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", false),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", false),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", false),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),
		},

		RateLimit: RateLimitConfig{
			Enabled:                 getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:   getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindowMinutes:       getEnvInt("RATE_LIMIT_AUTH_WINDOW", 1),
			VerifyRequestsPerWindow: getEnvInt("RATE_LIMIT_VERIFY_REQUESTS", 10),
			VerifyWindowMinutes:     getEnvInt("RATE_LIMIT_VERIFY_WINDOW", 5),
			FinderRequestsPerWindow: getEnvInt("RATE_LIMIT_FINDER_REQUESTS", 20),
			FinderWindowMinutes:     getEnvInt("RATE_LIMIT_FINDER_WINDOW", 10),
			PetRequestsPerMinute:    getEnvInt("RATE_LIMIT_PET_REQUESTS", 60),
			PetWindowMinutes:        getEnvInt("RATE_LIMIT_PET_WINDOW", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 0),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", "camera=(), microphone=(), geolocation=()"),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize:    getEnvInt64("MAX_REQUEST_BODY_SIZE", 12<<20),
			MaxPhotoSize:          getEnvInt64("MAX_PHOTO_SIZE", 10<<20),
			StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", true),
			StrictUsername:        getEnvBool("STRICT_USERNAME_VALIDATION", false),
			BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}
	if cfg.OTPTTL <= 0 {
		return nil, fmt.Errorf("OTP_TTL must be positive")
	}

	return cfg, nil
}

// HasSMTP returns true if an SMTP relay is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}

// HasAMQP returns true if mail should be queued through RabbitMQ.
func (c *Config) HasAMQP() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
