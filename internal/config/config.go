package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/hazemadel/accounts/pkg/config"
)

const devSecretPlaceholder = "change-this-to-a-secure-secret"

// Config holds all configuration for the accounts service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8006"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"accounts"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"accounts_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"accounts"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (revocation ledger)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Token signing. Each class/audience pair has its own secret so a
	// token signed for one can never verify as another.
	AccessTokenUserSecret   string `env:"ACCESS_TOKEN_USER_SECRET" envDefault:"change-this-to-a-secure-secret"`
	AccessTokenAdminSecret  string `env:"ACCESS_TOKEN_ADMIN_SECRET" envDefault:"change-this-to-a-secure-secret"`
	RefreshTokenUserSecret  string `env:"REFRESH_TOKEN_USER_SECRET" envDefault:"change-this-to-a-secure-secret"`
	RefreshTokenAdminSecret string `env:"REFRESH_TOKEN_ADMIN_SECRET" envDefault:"change-this-to-a-secure-secret"`

	BearerPrefix string `env:"BEARER_PREFIX" envDefault:"Bearer"`
	AdminPrefix  string `env:"ADMIN_PREFIX" envDefault:"Admin"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"8760h"`

	// Federated sign-in. Google sign-in is disabled when the client ID
	// is empty.
	GoogleClientID string `env:"GOOGLE_CLIENT_ID" envDefault:""`

	// Uploads
	StorageBaseURL       string        `env:"STORAGE_BASE_URL" envDefault:"http://localhost:8006/files"`
	UploadPresignSecret  string        `env:"UPLOAD_PRESIGN_SECRET" envDefault:"change-this-to-a-secure-secret"`
	UploadPresignBaseURL string        `env:"UPLOAD_PRESIGN_BASE_URL" envDefault:"http://localhost:8006/uploads"`
	UploadPresignTTL     time.Duration `env:"UPLOAD_PRESIGN_TTL" envDefault:"15m"`

	// Tracing
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load accounts config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.BearerPrefix == cfg.AdminPrefix {
		return nil, fmt.Errorf("BEARER_PREFIX and ADMIN_PREFIX must differ")
	}

	// In non-development environments, require explicitly set, strong,
	// pairwise-distinct signing secrets.
	if cfg.Environment != "development" {
		secrets := map[string]string{
			"ACCESS_TOKEN_USER_SECRET":   cfg.AccessTokenUserSecret,
			"ACCESS_TOKEN_ADMIN_SECRET":  cfg.AccessTokenAdminSecret,
			"REFRESH_TOKEN_USER_SECRET":  cfg.RefreshTokenUserSecret,
			"REFRESH_TOKEN_ADMIN_SECRET": cfg.RefreshTokenAdminSecret,
			"UPLOAD_PRESIGN_SECRET":      cfg.UploadPresignSecret,
		}
		seen := make(map[string]string, len(secrets))
		for name, secret := range secrets {
			if secret == devSecretPlaceholder {
				return nil, fmt.Errorf("%s must be explicitly set via environment variable in %q mode", name, cfg.Environment)
			}
			if len(secret) < 32 {
				return nil, fmt.Errorf("%s must be at least 32 characters long, got %d", name, len(secret))
			}
			if other, ok := seen[secret]; ok {
				return nil, fmt.Errorf("%s and %s must not share the same value", name, other)
			}
			seen[secret] = name
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// MailerConfig holds configuration for the OTP mailer worker.
type MailerConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"MAILER_CONSUMER_GROUP" envDefault:"accounts-mailer"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPUsername string `env:"SMTP_USERNAME" envDefault:""`
	SMTPPassword string `env:"SMTP_PASSWORD" envDefault:""`
	FromAddress  string `env:"MAIL_FROM" envDefault:"no-reply@accounts.local"`
}

// LoadMailer reads mailer configuration from environment variables.
func LoadMailer() (*MailerConfig, error) {
	cfg := &MailerConfig{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load mailer config: %w", err)
	}
	if cfg.Environment != "development" && cfg.SMTPUsername == "" {
		return nil, fmt.Errorf("SMTP_USERNAME must be set in %q mode", cfg.Environment)
	}
	return cfg, nil
}
