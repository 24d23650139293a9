package config

import (
	"testing"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := &Config{}
	c.HTTPServer.Port = 8080
	c.HTTPServer.Timeout.Read = time.Second
	c.HTTPServer.Timeout.Write = time.Second
	c.HTTPServer.Timeout.Idle = time.Second
	c.HTTPServer.Timeout.ReadHeader = time.Second
	c.Shutdown.Timeout = time.Second
	c.Backend = config.BackendConfig{URL: "http://localhost:8000/api/shop", Timeout: time.Second}
	c.Resilience.CircuitBreaker = config.CircuitBreakerConfig{ConsecutiveFailures: 5, ErrorRatePercent: 60, OpenTimeout: time.Second}
	c.Images = config.ImagesConfig{StorageURL: "http://localhost:9000/media", Placeholder: "/static/placeholder.png"}
	c.Session.IdleTTL = time.Hour
	c.Checkout.LedgerRetention = 24 * time.Hour
	return c
}

func TestConfig_ValidateAppliesDefaults(t *testing.T) {
	c := validConfig()

	require.NoError(t, c.Validate())

	assert.Equal(t, "en", c.Catalog.Locale)
	assert.Equal(t, "en", c.Catalog.Tag().String())
	assert.Equal(t, "storefront_session", c.Session.CookieName)
	assert.Equal(t, config.StoreDriverMemory, c.Store.Driver)
	assert.Contains(t, c.String(), "catalog.locale: en")
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "missing backend", mutate: func(c *Config) { c.Backend.URL = "" }},
		{name: "bad locale", mutate: func(c *Config) { c.Catalog.Locale = "not a locale!" }},
		{name: "negative snapshot ttl", mutate: func(c *Config) { c.Catalog.SnapshotTTL = -time.Second }},
		{name: "no session ttl", mutate: func(c *Config) { c.Session.IdleTTL = 0 }},
		{name: "no ledger retention", mutate: func(c *Config) { c.Checkout.LedgerRetention = 0 }},
		{name: "redis without address", mutate: func(c *Config) { c.Store.Driver = config.StoreDriverRedis }},
		{name: "pprof on the storefront port", mutate: func(c *Config) {
			c.PProf = config.PProfConfig{Enabled: true, Addr: "localhost:8080"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
