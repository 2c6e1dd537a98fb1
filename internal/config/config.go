package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type JobShareConfig struct {
	MaxCascadeDepth    int
	DefaultExpiryHours int
	ChainEncoding      string
	SyncEnabled        bool
	SyncRetryAttempts  int
	SyncRetryBackoff   time.Duration
	MessageMaxLength   int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	JobShare    JobShareConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("JOBSHARE_SYNC_ENABLED", true)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:               v.GetString("HTTP_HOST"),
			Port:               v.GetInt("HTTP_PORT"),
			CORSAllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		JobShare: JobShareConfig{
			MaxCascadeDepth:    v.GetInt("JOBSHARE_MAX_CASCADE_DEPTH"),
			DefaultExpiryHours: v.GetInt("JOBSHARE_DEFAULT_EXPIRY_HOURS"),
			ChainEncoding:      strings.ToLower(strings.TrimSpace(v.GetString("JOBSHARE_CHAIN_ENCODING"))),
			SyncEnabled:        v.GetBool("JOBSHARE_SYNC_ENABLED"),
			SyncRetryAttempts:  v.GetInt("JOBSHARE_SYNC_RETRY_ATTEMPTS"),
			SyncRetryBackoff:   v.GetDuration("JOBSHARE_SYNC_RETRY_BACKOFF"),
			MessageMaxLength:   v.GetInt("JOBSHARE_MESSAGE_MAX_LENGTH"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7091
	}
	if len(cfg.HTTP.CORSAllowedOrigins) == 0 {
		cfg.HTTP.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.JobShare.MaxCascadeDepth <= 0 {
		cfg.JobShare.MaxCascadeDepth = 10
	}
	if cfg.JobShare.ChainEncoding == "" {
		cfg.JobShare.ChainEncoding = "carbon_copy"
	}
	if cfg.JobShare.SyncRetryAttempts <= 0 {
		cfg.JobShare.SyncRetryAttempts = 3
	}
	if cfg.JobShare.SyncRetryBackoff <= 0 {
		cfg.JobShare.SyncRetryBackoff = 200 * time.Millisecond
	}
	if cfg.JobShare.MessageMaxLength <= 0 {
		cfg.JobShare.MessageMaxLength = 500
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch cfg.JobShare.ChainEncoding {
	case "embedded", "carbon_copy":
	default:
		return fmt.Errorf("JOBSHARE_CHAIN_ENCODING must be embedded or carbon_copy, got %q", cfg.JobShare.ChainEncoding)
	}
	if cfg.JobShare.DefaultExpiryHours < 0 {
		return fmt.Errorf("JOBSHARE_DEFAULT_EXPIRY_HOURS must not be negative")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
