// Package config holds application configuration for taskmate. It is loaded
// from ~/.taskmate/config.yaml and can be overridden by environment
// variables prefixed with TASKMATE_.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Chat     ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

// LLMConfig selects and configures language-model providers.
type LLMConfig struct {
	// DefaultProvider is used when the credential chain finds keys for
	// more than one provider ("gemini" or "openai").
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their configuration.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig configures one provider.
type ProviderConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model    string `mapstructure:"model" yaml:"model,omitempty"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	// DataDir is the directory holding the SQLite database.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// ChatConfig tunes conversation behavior.
type ChatConfig struct {
	// HistoryLimit is how many turns of conversation are retained per user.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Pretty enables human-readable console output instead of JSON.
	Pretty bool `mapstructure:"pretty" yaml:"pretty"`
}

// SecurityConfig holds secrets for local encryption.
type SecurityConfig struct {
	// EncryptionSecret seals stored API keys. Changing it makes previously
	// stored keys unreadable.
	EncryptionSecret string `mapstructure:"encryption_secret" yaml:"encryption_secret"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Providers: map[string]ProviderConfig{
				"gemini": {Model: "gemini-1.5-flash"},
				"openai": {Model: "gpt-4o-mini"},
			},
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(homeDir, ".taskmate"),
		},
		Chat: ChatConfig{
			HistoryLimit: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Security: SecurityConfig{
			EncryptionSecret: "",
		},
	}
}

// Load reads configuration from ~/.taskmate/config.yaml, creating the file
// with defaults if it does not exist, then merges environment overrides.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".taskmate", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file, creating it with
// defaults when missing. Environment variables prefixed TASKMATE_ override
// file values, e.g. TASKMATE_LOGGING_LEVEL=debug.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TASKMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in zero values left by sparse config files.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = defaults.LLM.DefaultProvider
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = defaults.Storage.DataDir
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = defaults.Chat.HistoryLimit
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// Save writes the configuration to the default location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home directory: %w", err)
	}
	return c.SaveToPath(filepath.Join(homeDir, ".taskmate", "config.yaml"))
}

// SaveToPath writes the configuration to a specific file.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// writeConfigFile marshals the config as YAML with restrictive permissions;
// the file can hold API keys and the encryption secret.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
