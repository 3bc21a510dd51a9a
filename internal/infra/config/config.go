package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ModeTx   = "tx"
	ModeSaga = "saga"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"pgx"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Empty disables the event bus; events are only logged.
	AMQPURL string `env:"AMQP_URL"`

	ConversionTimeout     time.Duration `env:"CONVERSION_TIMEOUT" envDefault:"5s"`
	ConversionMaxAttempts int           `env:"CONVERSION_MAX_ATTEMPTS" envDefault:"3"`
	ConversionMode        string        `env:"CONVERSION_MODE" envDefault:"tx"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	MailHost string   `env:"MAIL_HOST"`
	MailPort int      `env:"MAIL_PORT" envDefault:"587"`
	MailUser string   `env:"MAIL_USER"`
	MailPass string   `env:"MAIL_PASS"`
	MailFrom string   `env:"MAIL_FROM" envDefault:"crm-noreply@localhost"`
	NotifyTo []string `env:"NOTIFY_TO" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.ConversionMode {
	case ModeTx, ModeSaga:
	default:
		return fmt.Errorf("CONVERSION_MODE must be %q or %q, got %q", ModeTx, ModeSaga, c.ConversionMode)
	}
	if c.ConversionTimeout <= 0 {
		return fmt.Errorf("CONVERSION_TIMEOUT must be positive")
	}
	if c.ConversionMaxAttempts < 1 {
		return fmt.Errorf("CONVERSION_MAX_ATTEMPTS must be at least 1")
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be at least 1")
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
