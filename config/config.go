// Package config reads the export engine's runtime configuration from the
// environment. PocketBase keeps its own flags (--dir, --http).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"quotationdesk/services"
)

// Config is the process-wide configuration.
type Config struct {
	// BaseURL is the public address QR codes point at.
	BaseURL string `env:"QUOTEDESK_BASE_URL" envDefault:"http://127.0.0.1:8090"`

	// ChromePath overrides Chrome discovery; empty uses the system browser.
	ChromePath    string        `env:"QUOTEDESK_CHROME_PATH"`
	RenderTimeout time.Duration `env:"QUOTEDESK_RENDER_TIMEOUT" envDefault:"45s"`
	SettleQuiet   time.Duration `env:"QUOTEDESK_SETTLE_QUIET" envDefault:"500ms"`
	BatchWorkers  int           `env:"QUOTEDESK_BATCH_WORKERS" envDefault:"2"`

	CompanyName    string `env:"QUOTEDESK_COMPANY_NAME" envDefault:"Quotation Desk"`
	CompanyAddress string `env:"QUOTEDESK_COMPANY_ADDRESS"`
	CompanyPhone   string `env:"QUOTEDESK_COMPANY_PHONE"`
	CompanyEmail   string `env:"QUOTEDESK_COMPANY_EMAIL"`
	FooterText     string `env:"QUOTEDESK_FOOTER_TEXT"`
	Currency       string `env:"QUOTEDESK_CURRENCY" envDefault:"OMR"`
}

// Load reads an optional .env file from the working directory and then
// parses the environment. Variables already set win over the file.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BatchWorkers < 1 {
		return nil, fmt.Errorf("QUOTEDESK_BATCH_WORKERS must be at least 1, got %d", cfg.BatchWorkers)
	}
	if cfg.RenderTimeout <= 0 {
		return nil, fmt.Errorf("QUOTEDESK_RENDER_TIMEOUT must be positive, got %s", cfg.RenderTimeout)
	}
	return &cfg, nil
}

// Company returns the letterhead identity used by every renderer.
func (c *Config) Company() services.CompanyInfo {
	return services.CompanyInfo{
		Name:       c.CompanyName,
		Address:    c.CompanyAddress,
		Phone:      c.CompanyPhone,
		Email:      c.CompanyEmail,
		FooterText: c.FooterText,
		Currency:   c.Currency,
	}
}

// Defaults is the raw settings layer that sits under templates and request
// values. The settings resolver still enforces its own range on it.
func (c *Config) Defaults() map[string]any {
	return map[string]any{
		"timeoutSeconds": int(c.RenderTimeout / time.Second),
	}
}
