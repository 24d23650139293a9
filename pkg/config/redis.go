package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

// StoreConfig selects where catalog snapshots and consumed checkout sessions are kept.
type StoreConfig struct {
	Driver string      `koanf:"driver"`
	Redis  RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// String returns a string representation of the store configuration.
func (c *StoreConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Store ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	if c.Driver == StoreDriverRedis {
		b.WriteString(fmt.Sprintf("  redis.addr: %s\n", c.Redis.Addr))
		b.WriteString(fmt.Sprintf("  redis.password: %s\n", maskSecret(c.Redis.Password)))
		b.WriteString(fmt.Sprintf("  redis.db: %d\n", c.Redis.DB))
		b.WriteString(fmt.Sprintf("  redis.timeout: %s\n", c.Redis.Timeout))
	}
	return b.String()
}

func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case "":
		c.Driver = StoreDriverMemory
		return nil
	case StoreDriverMemory:
		return nil
	case StoreDriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is not configured")
		}
		if c.Redis.Timeout <= 0 {
			return fmt.Errorf("redis timeout is not configured")
		}
		return nil
	default:
		return fmt.Errorf("unknown store driver: %s", c.Driver)
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "<not configured>"
	}
	return "****"
}
