package config

import (
	"encoding/json"
	"fmt"
)

// LoadJSON parses config from JSON source bytes.
func LoadJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = CurrentSchemaVersion
	}
	return cfg, nil
}
