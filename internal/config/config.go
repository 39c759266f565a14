package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v2"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "vsixupdater.yaml"

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the settings of an update run.
type Config struct {
	OutputPath      string `yaml:"output_path"`
	Include         string `yaml:"include,omitempty"`
	SourceDir       string `yaml:"source_dir,omitempty"`
	NextVersion     string `yaml:"next_version"`
	ContinueOnError bool   `yaml:"continue_on_error"`
	LogFormat       string `yaml:"log_format"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		OutputPath:  ".",
		NextVersion: "16.0",
		LogFormat:   LogFormatText,
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.UnmarshalStrict(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills fields the YAML left blank.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if strings.TrimSpace(c.OutputPath) == "" {
		c.OutputPath = defaults.OutputPath
	}
	if strings.TrimSpace(c.NextVersion) == "" {
		c.NextVersion = defaults.NextVersion
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.OutputPath) == "" {
		return errors.New("output_path is required")
	}
	if _, err := semver.NewVersion(c.NextVersion); err != nil {
		return fmt.Errorf("next_version %q: %w", c.NextVersion, err)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("log_format %q: must be %s or %s", c.LogFormat, LogFormatText, LogFormatJSON)
	}
	return nil
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}
