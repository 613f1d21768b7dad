package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/thierrydecker/myason/internal/logger"
)

// LoggerConfig mirrors the logger YAML file
type LoggerConfig struct {
	Console struct {
		Enabled bool   `yaml:"enabled"`
		Level   string `yaml:"level"`
		Format  string `yaml:"format"`
	} `yaml:"console"`
	File struct {
		Enabled bool   `yaml:"enabled"`
		Level   string `yaml:"level"`
		Format  string `yaml:"format"`
		Path    string `yaml:"path"`
	} `yaml:"file"`
}

// LoadLogger reads and parses a logger configuration file
func LoadLogger(path string) (*LoggerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read logger config file")
	}

	var cfg LoggerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse logger config file")
	}

	return &cfg, nil
}

// LoggerSettings converts the YAML form into the logger package config
func (c *LoggerConfig) LoggerSettings() *logger.Config {
	return &logger.Config{
		Console: logger.ConsoleConfig{
			Enabled: c.Console.Enabled,
			Level:   c.Console.Level,
			Format:  c.Console.Format,
		},
		File: logger.FileConfig{
			Enabled: c.File.Enabled,
			Level:   c.File.Level,
			Format:  c.File.Format,
			Path:    c.File.Path,
		},
	}
}
