package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carshare/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NewRelic     NewRelicConfig
	Settlement   SettlementConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Jobs         JobsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// SettlementConfig holds the money rules. Values from PolicyFile override the environment.
type SettlementConfig struct {
	Currency              string
	CommissionRate        decimal.Decimal
	LiquidRatio           decimal.Decimal
	MinimumWithdrawal     string // major units, e.g. "10.00"
	RefundTiers           []domain.RefundTier
	LockTTL               time.Duration
	MaxWithdrawalAttempts int
	PolicyFile            string
}

// AuthConfig holds actor identity configuration.
// Without a JWT secret the X-Actor-ID header is trusted.
type AuthConfig struct {
	JWTSecret            string
	JWTIssuer            string
	PayoutCallbackSecret string
}

// NotificationConfig holds outbound email and push configuration. Empty keys disable a channel.
type NotificationConfig struct {
	SendGridAPIKey          string
	FromEmail               string
	FromName                string
	FirebaseCredentialsFile string
}

// JobsConfig holds background job configuration.
type JobsConfig struct {
	Enabled                bool
	PayoutResubmitSchedule string
	StaleWithdrawalAge     time.Duration
	MockPayoutDelay        time.Duration
}

// Load loads configuration from environment variables and the optional policy file.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "carshare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "carshare-settlement"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Settlement: SettlementConfig{
			Currency:              strings.ToUpper(getEnv("SETTLEMENT_CURRENCY", "USD")),
			CommissionRate:        getDecimalEnv("SETTLEMENT_COMMISSION_RATE", domain.DefaultCommissionRate),
			LiquidRatio:           getDecimalEnv("SETTLEMENT_LIQUID_RATIO", decimal.RequireFromString("0.70")),
			MinimumWithdrawal:     getEnv("SETTLEMENT_MINIMUM_WITHDRAWAL", "10.00"),
			LockTTL:               getDurationEnv("SETTLEMENT_LOCK_TTL", 10*time.Second),
			MaxWithdrawalAttempts: getIntEnv("SETTLEMENT_MAX_WITHDRAWAL_ATTEMPTS", 3),
			PolicyFile:            getEnv("SETTLEMENT_POLICY_FILE", ""),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer:            getEnv("AUTH_JWT_ISSUER", ""),
			PayoutCallbackSecret: getEnv("PAYOUT_CALLBACK_SECRET", ""),
		},
		Notification: NotificationConfig{
			SendGridAPIKey:          getEnv("SENDGRID_API_KEY", ""),
			FromEmail:               getEnv("NOTIFY_FROM_EMAIL", "no-reply@carshare.local"),
			FromName:                getEnv("NOTIFY_FROM_NAME", "Carshare"),
			FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Jobs: JobsConfig{
			Enabled:                getBoolEnv("JOBS_ENABLED", true),
			PayoutResubmitSchedule: getEnv("JOBS_PAYOUT_RESUBMIT_SCHEDULE", "0 */5 * * * *"),
			StaleWithdrawalAge:     getDurationEnv("JOBS_STALE_WITHDRAWAL_AGE", 15*time.Minute),
			MockPayoutDelay:        getDurationEnv("MOCK_PAYOUT_DELAY", 2*time.Second),
		},
	}

	if cfg.Settlement.PolicyFile != "" {
		policy, err := LoadPolicyFile(cfg.Settlement.PolicyFile)
		if err != nil {
			return nil, err
		}
		if err := policy.Apply(&cfg.Settlement); err != nil {
			return nil, fmt.Errorf("invalid policy file %s: %w", cfg.Settlement.PolicyFile, err)
		}
	}

	if err := cfg.Settlement.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settlement configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the settlement rules are usable.
func (s SettlementConfig) Validate() error {
	if len(s.Currency) != 3 {
		return fmt.Errorf("currency %q is not an ISO 4217 code", s.Currency)
	}
	if _, err := domain.NewCommissionPolicy(s.CommissionRate); err != nil {
		return err
	}
	if !s.LiquidRatio.IsPositive() || s.LiquidRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("liquid ratio %s must be in (0, 1]", s.LiquidRatio)
	}
	minimum, err := domain.ParseMoney(s.MinimumWithdrawal, s.Currency)
	if err != nil {
		return fmt.Errorf("minimum withdrawal: %w", err)
	}
	if minimum.IsNegative() {
		return fmt.Errorf("minimum withdrawal %s is negative", minimum)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
