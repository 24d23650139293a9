package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
	"golang.org/x/text/language"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Backend    config.BackendConfig    `koanf:"backend"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Images     config.ImagesConfig     `koanf:"images"`
	Store      config.StoreConfig      `koanf:"store"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Catalog    CatalogConfig           `koanf:"catalog"`
	Session    SessionConfig           `koanf:"session"`
	Checkout   CheckoutConfig          `koanf:"checkout"`
}

// CatalogConfig controls name collation and how long a fetched snapshot is shared.
type CatalogConfig struct {
	Locale      string        `koanf:"locale"`
	SnapshotTTL time.Duration `koanf:"snapshotttl"`
}

// Tag returns the collation locale; Validate guarantees it parses.
func (c CatalogConfig) Tag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

type SessionConfig struct {
	CookieName string        `koanf:"cookiename"`
	IdleTTL    time.Duration `koanf:"idlettl"`
	Secure     bool          `koanf:"secure"`
}

type CheckoutConfig struct {
	// LedgerRetention is how long a queried payment session stays marked as consumed.
	LedgerRetention time.Duration `koanf:"ledgerretention"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Backend.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Images.String())
	b.WriteString(c.Store.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Telemetry.String())

	b.WriteString("\n--- Storefront ---\n")
	b.WriteString(fmt.Sprintf("  catalog.locale: %s\n", c.Catalog.Locale))
	b.WriteString(fmt.Sprintf("  catalog.snapshotttl: %s\n", c.Catalog.SnapshotTTL))
	b.WriteString(fmt.Sprintf("  session.cookiename: %s\n", c.Session.CookieName))
	b.WriteString(fmt.Sprintf("  session.idlettl: %s\n", c.Session.IdleTTL))
	b.WriteString(fmt.Sprintf("  session.secure: %t\n", c.Session.Secure))
	b.WriteString(fmt.Sprintf("  checkout.ledgerretention: %s\n", c.Checkout.LedgerRetention))

	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer, &c.Log, &c.PProf, &c.Shutdown, &c.Telemetry,
		&c.Backend, &c.Resilience, &c.Images, &c.Store, &c.Nats,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	if c.PProf.Conflicts(c.HTTPServer.Port) {
		return fmt.Errorf("pprof address %q collides with the storefront port %d", c.PProf.Addr, c.HTTPServer.Port)
	}

	if c.Catalog.Locale == "" {
		c.Catalog.Locale = "en"
	}
	if _, err := language.Parse(c.Catalog.Locale); err != nil {
		return fmt.Errorf("invalid catalog locale %q: %w", c.Catalog.Locale, err)
	}
	if c.Catalog.SnapshotTTL < 0 {
		return fmt.Errorf("catalog snapshot ttl must not be negative")
	}

	if c.Session.CookieName == "" {
		c.Session.CookieName = "storefront_session"
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session idle ttl must be greater than 0")
	}
	if c.Checkout.LedgerRetention <= 0 {
		return fmt.Errorf("checkout ledger retention must be greater than 0")
	}
	return nil
}
