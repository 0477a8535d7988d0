package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	CRM        CRMConfig
	SuperAdmin SuperAdminConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string // sqlite or postgres
	Path     string // sqlite file path
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// CRMConfig describes the outbound lead relay (CRM API or webhook).
type CRMConfig struct {
	WebhookURL             string
	APIKey                 string
	TimeoutSeconds         int
	PlaceholderPhone       string
	PlaceholderEmailDomain string
	Source                 string
}

type SuperAdminConfig struct {
	Username string
	Password string
	Email    string
}

type WorkerConfig struct {
	Concurrency int
	BacklogCron string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (d *DatabaseConfig) IsSQLite() bool {
	return d.Driver == "" || d.Driver == "sqlite"
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (c *CRMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_PATH", "leads.db")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "leads")
	v.SetDefault("DATABASE_PASSWORD", "leads_secret")
	v.SetDefault("DATABASE_NAME", "leads")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 8)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("CRM_WEBHOOK_URL", "")
	v.SetDefault("CRM_API_KEY", "")
	v.SetDefault("CRM_TIMEOUT_SECONDS", 10)
	v.SetDefault("CRM_PLACEHOLDER_PHONE", "000-000-0000")
	v.SetDefault("CRM_PLACEHOLDER_EMAIL_DOMAIN", "noemail.leadtracker.local")
	v.SetDefault("CRM_SOURCE", "New Homes Lead Tracker")
	v.SetDefault("SUPER_ADMIN_USERNAME", "superadmin")
	v.SetDefault("SUPER_ADMIN_PASSWORD", "")
	v.SetDefault("SUPER_ADMIN_EMAIL", "")
	v.SetDefault("WORKER_CONCURRENCY", 2)
	v.SetDefault("SYNC_BACKLOG_CRON", "0 8 * * *")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DATABASE_DRIVER")),
			Path:     v.GetString("DATABASE_PATH"),
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		CRM: CRMConfig{
			WebhookURL:             v.GetString("CRM_WEBHOOK_URL"),
			APIKey:                 v.GetString("CRM_API_KEY"),
			TimeoutSeconds:         v.GetInt("CRM_TIMEOUT_SECONDS"),
			PlaceholderPhone:       v.GetString("CRM_PLACEHOLDER_PHONE"),
			PlaceholderEmailDomain: v.GetString("CRM_PLACEHOLDER_EMAIL_DOMAIN"),
			Source:                 v.GetString("CRM_SOURCE"),
		},
		SuperAdmin: SuperAdminConfig{
			Username: v.GetString("SUPER_ADMIN_USERNAME"),
			Password: v.GetString("SUPER_ADMIN_PASSWORD"),
			Email:    v.GetString("SUPER_ADMIN_EMAIL"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			BacklogCron: v.GetString("SYNC_BACKLOG_CRON"),
		},
	}

	// Legacy name used by the relay deployment
	if cfg.CRM.WebhookURL == "" {
		cfg.CRM.WebhookURL = v.GetString("ZAPIER_WEBHOOK_URL")
	}

	return cfg, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
