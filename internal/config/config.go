// Package config provides configuration loading and management for compliq.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete compliq configuration
type Config struct {
	Model       ModelConfig       `yaml:"model"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Remediation RemediationConfig `yaml:"remediation"`
	Report      ReportConfig      `yaml:"report"`
}

// ModelConfig configures the text-generation model settings
type ModelConfig struct {
	// Name is the model in provider:model form (e.g. "ollama:llama3.1")
	Name string `yaml:"name"`
	// Temperature controls randomness (0.0-1.0, default: 0.2)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait per model call
	Timeout time.Duration `yaml:"timeout"`
}

// PipelineConfig configures pipeline behavior
type PipelineConfig struct {
	// Profile selects the regulatory profile (general, privacy, financial)
	Profile string `yaml:"profile"`
	// Discover enables statistical rule discovery alongside extraction
	Discover bool `yaml:"discover"`
	// ArtifactDir is where session artifacts are persisted (empty = no persistence)
	ArtifactDir string `yaml:"artifact_dir"`
}

// RemediationConfig configures automated remediation
type RemediationConfig struct {
	// DryRun synthesizes plans but never applies them
	DryRun bool `yaml:"dry_run"`
}

// ReportConfig configures audit report output
type ReportConfig struct {
	// Format is the output format: json or md
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Name:        "ollama:llama3.1",
			Temperature: 0.2,
			Timeout:     2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Profile:     "general",
			Discover:    false,
			ArtifactDir: "",
		},
		Remediation: RemediationConfig{
			DryRun: false,
		},
		Report: ReportConfig{
			Format: "md",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	switch c.Report.Format {
	case "json", "md":
	default:
		return fmt.Errorf("report.format must be json or md")
	}
	switch c.Pipeline.Profile {
	case "", "general", "privacy", "financial":
	default:
		return fmt.Errorf("pipeline.profile must be general, privacy, or financial")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	if other.Pipeline.Profile != "" {
		c.Pipeline.Profile = other.Pipeline.Profile
	}
	if other.Pipeline.Discover {
		c.Pipeline.Discover = true
	}
	if other.Pipeline.ArtifactDir != "" {
		c.Pipeline.ArtifactDir = other.Pipeline.ArtifactDir
	}

	if other.Remediation.DryRun {
		c.Remediation.DryRun = true
	}

	if other.Report.Format != "" {
		c.Report.Format = other.Report.Format
	}
}
