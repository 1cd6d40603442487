package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// Config holds application configuration
type Config struct {
	Port            string
	DBConn          string
	LogLevel        string
	JWTSecret       string
	AdminCode       string
	EncryptionKey   []byte
	CardBIN         string
	LockWait        time.Duration
	ExpirySweepSpec string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
}

// NewConfig loads configuration from environment variables. The encryption
// key is fixed for the process lifetime; there is no runtime rotation.
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5432 user=cards password=cards dbname=cards sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		AdminCode:       getEnv("ADMIN_CODE", "ADMIN_SECRET_2024"),
		CardBIN:         getEnv("CARD_BIN", "400000"),
		ExpirySweepSpec: getEnv("EXPIRY_SWEEP_SPEC", "0 3 * * *"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "noreply@cards.local"),
	}

	keyHex := getEnv("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6")
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be hex-encoded: %w", err)
	}
	cfg.EncryptionKey = key

	wait, err := time.ParseDuration(getEnv("LOCK_WAIT", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_WAIT: %w", err)
	}
	cfg.LockWait = wait

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.EncryptionKey) == 0 {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
