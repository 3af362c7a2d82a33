package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	BaseURL   string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	SMTP         SMTPConfig
	Storage      StorageConfig
	Chat         ChatConfig
	CalendarSync CalendarSyncConfig
	Invitations  InvitationConfig
	Jobs         JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SMTPConfig configures the outbound mail collaborator.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// StorageConfig controls the media object store.
type StorageConfig struct {
	BaseDir          string
	PublicBaseURL    string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ChatConfig tunes the realtime gateway.
type ChatConfig struct {
	Enabled         bool
	ChannelPrefix   string
	WriteTimeout    time.Duration
	MaxMessageBytes int64
}

// CalendarSyncConfig holds OAuth client settings for external calendars.
type CalendarSyncConfig struct {
	Enabled             bool
	GoogleClientID      string
	GoogleClientSecret  string
	OutlookClientID     string
	OutlookClientSecret string
	RedirectURL         string
	RequestTimeout      time.Duration
}

// InvitationConfig controls token lifetimes for account flows.
type InvitationConfig struct {
	ParentInviteTTL  time.Duration
	PasswordResetTTL time.Duration
}

// JobsConfig tunes the background worker queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.BaseURL = v.GetString("BASE_URL")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.Storage = StorageConfig{
		BaseDir:          v.GetString("STORAGE_DIR"),
		PublicBaseURL:    v.GetString("STORAGE_PUBLIC_BASE_URL"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), time.Hour),
		MaxFileSizeBytes: v.GetInt64("STORAGE_MAX_FILE_SIZE"),
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIMES")),
	}

	cfg.Chat = ChatConfig{
		Enabled:         v.GetBool("ENABLE_CHAT"),
		ChannelPrefix:   v.GetString("CHAT_CHANNEL_PREFIX"),
		WriteTimeout:    parseDuration(v.GetString("CHAT_WRITE_TIMEOUT"), 10*time.Second),
		MaxMessageBytes: v.GetInt64("CHAT_MAX_MESSAGE_BYTES"),
	}

	cfg.CalendarSync = CalendarSyncConfig{
		Enabled:             v.GetBool("ENABLE_CALENDAR_SYNC"),
		GoogleClientID:      v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  v.GetString("GOOGLE_CLIENT_SECRET"),
		OutlookClientID:     v.GetString("OUTLOOK_CLIENT_ID"),
		OutlookClientSecret: v.GetString("OUTLOOK_CLIENT_SECRET"),
		RedirectURL:         v.GetString("CALENDAR_REDIRECT_URL"),
		RequestTimeout:      parseDuration(v.GetString("CALENDAR_REQUEST_TIMEOUT"), 10*time.Second),
	}

	cfg.Invitations = InvitationConfig{
		ParentInviteTTL:  parseDuration(v.GetString("PARENT_INVITE_TTL"), 24*time.Hour),
		PasswordResetTTL: parseDuration(v.GetString("PASSWORD_RESET_TTL"), time.Hour),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "centro_ludico")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 1025)
	v.SetDefault("SMTP_FROM", "noreply@centroludico.local")

	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/files")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "change-me")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 10<<20)
	v.SetDefault("STORAGE_ALLOWED_MIMES", "image/jpeg,image/png,application/pdf")

	v.SetDefault("ENABLE_CHAT", true)
	v.SetDefault("CHAT_CHANNEL_PREFIX", "chat")
	v.SetDefault("CHAT_MAX_MESSAGE_BYTES", 32<<10)

	v.SetDefault("ENABLE_CALENDAR_SYNC", false)

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
