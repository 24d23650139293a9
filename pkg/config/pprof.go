package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// PProfConfig controls the profiling listener. It is kept apart from the storefront
// listener so profiles are never reachable through the shopper-facing routes.
type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// String returns a string representation of the pprof configuration.
func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if c.Enabled {
		b.WriteString(fmt.Sprintf("  address: %s\n", c.Addr))
	}
	return b.String()
}

func (c *PProfConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("pprof is enabled but address is not configured")
	}
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("pprof address %q is invalid: %w", c.Addr, err)
	}
	if port == "" {
		return fmt.Errorf("pprof address %q has no port", c.Addr)
	}
	return nil
}

// Conflicts reports whether the profiling listener would bind the storefront port.
func (c *PProfConfig) Conflicts(port int) bool {
	if !c.Enabled {
		return false
	}
	_, p, err := net.SplitHostPort(c.Addr)
	return err == nil && p == strconv.Itoa(port)
}
