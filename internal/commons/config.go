package commons

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"larder/internal/config"
)

// LoadConfig reads a YAML config file and lets environment variables override
// it. An empty path falls back to the environment alone.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config.Override(&cfg)
}
