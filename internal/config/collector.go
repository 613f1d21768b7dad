package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/thierrydecker/myason/internal/wire"
)

// InfluxParams locates the time-series store. Absent parameters
// disable it.
type InfluxParams struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// CollectorConfig contains the collector settings
type CollectorConfig struct {
	BindAddress      string            `yaml:"bind_address"`
	BindPort         int               `yaml:"bind_port"`
	WritersNumber    int               `yaml:"writers_number"`
	ProcessorsNumber int               `yaml:"processors_number"`
	Agents           map[string]string `yaml:"agents"`
	TokenTTL         int               `yaml:"token_ttl"`
	DBName           string            `yaml:"db_name"`
	Influx           *InfluxParams     `yaml:"influx_params"`
}

// LoadCollector reads and parses the collector configuration file
func LoadCollector(path string) (*CollectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg CollectorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Set defaults
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}
	if cfg.BindPort == 0 {
		cfg.BindPort = 9999
	}
	if cfg.WritersNumber == 0 {
		cfg.WritersNumber = 1
	}
	if cfg.ProcessorsNumber == 0 {
		cfg.ProcessorsNumber = 1
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 5
	}
	if cfg.Agents == nil {
		cfg.Agents = map[string]string{}
	}

	return &cfg, nil
}

// Validate runs the startup sanity checks
func (c *CollectorConfig) Validate() error {
	if c.BindPort < 1 || c.BindPort > 65535 {
		return errors.Errorf("bind_port %d out of range", c.BindPort)
	}
	if c.WritersNumber < 1 {
		return errors.Errorf("writers_number %d must be at least 1", c.WritersNumber)
	}
	if c.ProcessorsNumber < 1 {
		return errors.Errorf("processors_number %d must be at least 1", c.ProcessorsNumber)
	}
	for peer, key := range c.Agents {
		if _, err := wire.ParseKey(key); err != nil {
			return errors.Wrapf(err, "shared key for agent %s is not usable", peer)
		}
	}
	if c.Influx != nil {
		if c.Influx.Host == "" || c.Influx.Port == 0 || c.Influx.DBName == "" {
			return errors.New("influx_params requires host, port and dbname")
		}
	}
	return nil
}
