package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

type EngineConfig struct {
	// MaxErrors is the number of data errors a statement tolerates, 0 means
	// unlimited
	MaxErrors int `yaml:"max_errors"`

	// MaxRecursion bounds the iterations of a recursive common table
	// expression
	MaxRecursion int `yaml:"max_recursion"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	MaxRows int           `yaml:"max_rows"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxErrors:    0,
			MaxRecursion: 1000,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Minute,
			MaxRows: 100000,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Parse reads a YAML document over the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the YAML file at path, an empty path or a missing file yields
// the defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func (self *Config) Validate() error {
	if self.Engine.MaxErrors < 0 {
		return fmt.Errorf("engine.max_errors must not be negative: %d", self.Engine.MaxErrors)
	}
	if self.Engine.MaxRecursion <= 0 {
		return fmt.Errorf("engine.max_recursion must be positive: %d", self.Engine.MaxRecursion)
	}
	if self.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative: %s", self.Cache.TTL)
	}
	if self.Cache.MaxRows < 0 {
		return fmt.Errorf("cache.max_rows must not be negative: %d", self.Cache.MaxRows)
	}

	switch strings.ToLower(self.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
		break
	default:
		return fmt.Errorf("logging.level is unknown: %s", self.Logging.Level)
	}
	switch strings.ToLower(self.Logging.Format) {
	case "text", "json":
		break
	default:
		return fmt.Errorf("logging.format is unknown: %s", self.Logging.Format)
	}
	return nil
}

func (self *Config) String() string {
	out, err := yaml.Marshal(self)
	if err != nil {
		return err.Error()
	}
	return string(out)
}
