package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	Port               string `validate:"required"`
	DBConn             string `validate:"required"`
	LogLevel           string
	JWTSecret          string `validate:"required"`
	SMTPHost           string
	SMTPPort           string
	SMTPUsername       string
	SMTPPassword       string
	SenderEmail        string `validate:"omitempty,email"`
	AuditSchedule      string `validate:"required"`
	BankInitialReserve decimal.Decimal
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5432 user=ledger password=ledger dbname=ledger sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SenderEmail:   getEnv("SENDER_EMAIL", ""),
		AuditSchedule: getEnv("AUDIT_SCHEDULE", "@every 1h"),
	}

	reserve, err := decimal.NewFromString(getEnv("BANK_INITIAL_RESERVE", "50000000000"))
	if err != nil {
		return nil, fmt.Errorf("invalid BANK_INITIAL_RESERVE: %w", err)
	}
	cfg.BankInitialReserve = reserve

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
