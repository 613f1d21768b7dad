package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/thierrydecker/myason/internal/wire"
)

// AgentConfig contains the agent settings
type AgentConfig struct {
	Interfaces           []string `yaml:"interfaces"`
	CollectorAddress     string   `yaml:"collector_address"`
	CollectorPort        int      `yaml:"collector_port"`
	CacheLimit           int      `yaml:"cache_limit"`
	CacheActiveTimeout   int      `yaml:"cache_active_timeout"`
	CacheInactiveTimeout int      `yaml:"cache_inactive_timeout"`
	Key                  string   `yaml:"key"`
}

// LoadAgent reads and parses the agent configuration file
func LoadAgent(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Set defaults
	if cfg.CollectorAddress == "" {
		cfg.CollectorAddress = "127.0.0.1"
	}
	if cfg.CollectorPort == 0 {
		cfg.CollectorPort = 9999
	}
	if cfg.CacheLimit == 0 {
		cfg.CacheLimit = 1024
	}
	if cfg.CacheActiveTimeout == 0 {
		cfg.CacheActiveTimeout = 1800
	}
	if cfg.CacheInactiveTimeout == 0 {
		cfg.CacheInactiveTimeout = 15
	}

	return &cfg, nil
}

// Validate runs the startup sanity checks. ifaceExists resolves an
// interface name against the host adapters.
func (c *AgentConfig) Validate(ifaceExists func(string) bool) error {
	if len(c.Interfaces) == 0 {
		return errors.New("no interfaces configured")
	}
	for _, name := range c.Interfaces {
		if !ifaceExists(name) {
			return errors.Errorf("interface %q does not exist on this host", name)
		}
	}
	if c.CollectorPort < 1 || c.CollectorPort > 65535 {
		return errors.Errorf("collector_port %d out of range", c.CollectorPort)
	}
	if c.Key == "" {
		return errors.New("no shared key configured")
	}
	if _, err := wire.ParseKey(c.Key); err != nil {
		return errors.Wrap(err, "shared key is not usable")
	}
	return nil
}
