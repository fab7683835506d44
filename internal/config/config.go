// Package config содержит логику чтения конфигурации сервиса бронирования артистов.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/artist-booking/internal/locale"
)

// Config содержит параметры конфигурации сервиса бронирования артистов.
type Config struct {
	RunAddress           string `env:"RUN_ADDRESS"`
	DatabaseURI          string `env:"DATABASE_URI"`
	PaymentSystemAddress string `env:"PAYMENT_SYSTEM_ADDRESS"`
	RedisAddress         string `env:"REDIS_ADDRESS"`
	AuthSecret           string `env:"AUTH_SECRET"`

	Currency            string          `env:"CURRENCY" envDefault:"THB"`
	VATRate             decimal.Decimal `env:"VAT_RATE" envDefault:"7"`
	DefaultLocale       string          `env:"DEFAULT_LOCALE" envDefault:"en"`
	QuotationValidDays  int             `env:"QUOTATION_VALID_DAYS" envDefault:"14"`
	InvoiceDueDays      int             `env:"INVOICE_DUE_DAYS" envDefault:"7"`
	PaymentPollInterval time.Duration   `env:"PAYMENT_POLL_INTERVAL" envDefault:"5s"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPaymentAddress := cfg.PaymentSystemAddress
	envRedisAddress := cfg.RedisAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentSystemAddress, "p", "", "payment system address")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for booking events")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for actor tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaymentAddress != "" {
		cfg.PaymentSystemAddress = envPaymentAddress
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.VATRate.IsNegative() || c.VATRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("VAT_RATE must be within 0..100, got %s", c.VATRate)
	}
	if !locale.Supported(locale.Code(strings.ToLower(c.DefaultLocale))) {
		return fmt.Errorf("DEFAULT_LOCALE %q is not supported", c.DefaultLocale)
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("CURRENCY must not be empty")
	}
	if c.QuotationValidDays < 0 || c.InvoiceDueDays < 0 {
		return fmt.Errorf("document validity periods must not be negative")
	}
	if c.PaymentPollInterval <= 0 {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL must be positive")
	}
	return nil
}
