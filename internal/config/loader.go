package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "compliq.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/compliq"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"

	// EnvModel overrides model.name
	EnvModel = "COMPLIQ_MODEL"
	// EnvTemperature overrides model.temperature
	EnvTemperature = "COMPLIQ_TEMPERATURE"
	// EnvProfile overrides pipeline.profile
	EnvProfile = "COMPLIQ_PROFILE"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/compliq/config.yaml)
// 3. Project config (compliq.yaml in current or parent directories)
// 4. Environment variables (COMPLIQ_MODEL, COMPLIQ_TEMPERATURE, COMPLIQ_PROFILE)
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv applies environment variable overrides, the final layer.
func (l *Loader) applyEnv(config *Config) {
	if model := os.Getenv(EnvModel); model != "" {
		config.Model.Name = model
	}
	if temp := os.Getenv(EnvTemperature); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			config.Model.Temperature = v
		} else {
			l.logger.Warn("Ignoring invalid temperature override", slog.String("value", temp))
		}
	}
	if profile := os.Getenv(EnvProfile); profile != "" {
		config.Pipeline.Profile = profile
	}
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}

	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for compliq.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
