package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func marshalYAML(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
