package app

import (
	"github.com/seedai/server/internal/infra/config"
)

// LoadConfig loads application configuration. An empty path searches the
// default locations.
func LoadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
