package kmc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseSimulationConfig decodes data as YAML when format is "yaml" or
// "yml" and as JSON otherwise, then validates it.
func ParseSimulationConfig(data []byte, format string) (SimulationConfig, error) {
	var cfg SimulationConfig
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return SimulationConfig{}, fmt.Errorf("%w: parsing YAML: %v", ErrConfig, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return SimulationConfig{}, fmt.Errorf("%w: parsing JSON: %v", ErrConfig, err)
		}
	}
	if err := ValidateSimulationConfig(cfg); err != nil {
		return SimulationConfig{}, err
	}
	return cfg, nil
}

// LoadSimulationConfig reads and validates a config file. The format
// follows the file extension.
func LoadSimulationConfig(path string) (SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseSimulationConfig(data, filepath.Ext(path))
}
