package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	GitHub GitHubConfig `mapstructure:"github"`
	Backup BackupConfig `mapstructure:"backup"`
	Retry  RetryConfig  `mapstructure:"retry"`
}

// GitHubConfig holds GitHub API configuration
type GitHubConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	Timeout              int    `mapstructure:"timeout"`
	MaxRetries           int    `mapstructure:"max_retries"`
	PageSize             int    `mapstructure:"page_size"`
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second"`

	// Authentication
	Token string `mapstructure:"token"`
}

// BackupConfig holds transfer configuration
type BackupConfig struct {
	TargetDir  string   `mapstructure:"target_dir"`
	MaxWorkers int      `mapstructure:"max_workers"`
	Kinds      []string `mapstructure:"kinds"`
}

// RetryConfig controls the retry waves over failed items
type RetryConfig struct {
	MaxWaves  int `mapstructure:"max_waves"`
	WaveDelay int `mapstructure:"wave_delay"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("github.base_url", "https://api.github.com")
	viper.SetDefault("github.timeout", 30)
	viper.SetDefault("github.max_retries", 3)
	viper.SetDefault("github.page_size", 100)
	viper.SetDefault("github.max_requests_per_second", 10)
	viper.SetDefault("github.token", "")

	viper.SetDefault("backup.target_dir", "./backup")
	viper.SetDefault("backup.max_workers", 0)
	viper.SetDefault("backup.kinds", []string{"repositories", "gists"})

	viper.SetDefault("retry.max_waves", 3)
	viper.SetDefault("retry.wave_delay", 5)
}
