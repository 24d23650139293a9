package config

import (
	"fmt"
	"strings"
)

// ImagesConfig describes where product photos stored as relative keys live.
type ImagesConfig struct {
	StorageURL  string `koanf:"storageurl"`
	Placeholder string `koanf:"placeholder"`
}

// String returns a string representation of the images configuration.
func (c *ImagesConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Images ---\n")
	b.WriteString(fmt.Sprintf("  storageurl: %s\n", c.StorageURL))
	b.WriteString(fmt.Sprintf("  placeholder: %s\n", c.Placeholder))
	return b.String()
}

func (c *ImagesConfig) Validate() error {
	if c.StorageURL == "" {
		return fmt.Errorf("image storage URL is not configured")
	}
	if c.Placeholder == "" {
		return fmt.Errorf("image placeholder is not configured")
	}
	return nil
}
