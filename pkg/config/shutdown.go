package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ShutdownConfig bounds how long the storefront drains in-flight requests and flushes
// telemetry once a stop signal arrives.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the ShutdownConfig.
func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	return nil
}

// Context starts one shutdown step. It is detached from the canceled run context,
// so the step gets the whole timeout.
func (c *ShutdownConfig) Context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), c.Timeout)
}
