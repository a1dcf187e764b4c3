package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB      DBConfig
	JWT     JWTConfig
	Server  ServerConfig
	Auth    AuthConfig
	OTP     OTPConfig
	Sealing SealingConfig
	Audit   AuditConfig
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
}

type AuthConfig struct {
	AnonKey           string
	MinPasswordLength int
	AdminEmail        string
	AdminPassword     string
	AllowSignup       bool
}

type OTPConfig struct {
	TTL            time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
	Digits         int
}

type SealingConfig struct {
	Secret string
}

type AuditConfig struct {
	QueueSize int
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "satecha"),
			Password: getEnv("DB_PASSWORD", "satecha_secret"),
			Name:     getEnv("DB_NAME", "satecha"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "satecha.db"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-me-in-production"),
			AccessTTL:  getEnvAsDuration("JWT_ACCESS_TTL", time.Hour),
			RefreshTTL: getEnvAsDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
		},
		Auth: AuthConfig{
			AnonKey:           getEnv("ANON_KEY", ""),
			MinPasswordLength: getEnvAsInt("AUTH_MIN_PASSWORD_LENGTH", 6),
			AdminEmail:        getEnv("ADMIN_EMAIL", "admin@satecha.local"),
			AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
			AllowSignup:       getEnvAsBool("AUTH_ALLOW_SIGNUP", true),
		},
		OTP: OTPConfig{
			TTL:            getEnvAsDuration("OTP_TTL", 10*time.Minute),
			ResendInterval: getEnvAsDuration("OTP_RESEND_INTERVAL", 60*time.Second),
			MaxAttempts:    getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			Digits:         6,
		},
		Sealing: SealingConfig{
			Secret: getEnv("SEALING_SECRET", getEnv("JWT_SECRET", "change-me-in-production")),
		},
		Audit: AuditConfig{
			QueueSize: getEnvAsInt("AUDIT_QUEUE_SIZE", 1000),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
