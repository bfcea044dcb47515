/*
Package config manages TOML config for placeserve.

The file has four sections:

	[autocomplete]
	debounce_ms = 200
	default_value = ""

	[provider]
	data = "data/places.toml"
	min_prefix = 1
	max_prefix = 60
	default_limit = 5
	max_limit = 20
	fuzzy = true

	[server]
	rate_limit = 50.0
	burst = 10
	watch_config = true

	[cli]
	no_filter = false
	show_types = true

Loading never fails hard: a broken file is parsed section by section and
anything unreadable keeps its default.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

// Config holds the entire config structure
type Config struct {
	Autocomplete AutocompleteConfig `toml:"autocomplete"`
	Provider     ProviderConfig     `toml:"provider"`
	Server       ServerConfig       `toml:"server"`
	CLI          CliConfig          `toml:"cli"`
}

// AutocompleteConfig holds controller options.
type AutocompleteConfig struct {
	DebounceMs   int    `toml:"debounce_ms"`
	DefaultValue string `toml:"default_value"`
}

// Debounce returns the debounce wait as a duration.
func (a AutocompleteConfig) Debounce() time.Duration {
	if a.DebounceMs < 0 {
		return 0
	}
	return time.Duration(a.DebounceMs) * time.Millisecond
}

// ProviderConfig holds the local index options.
type ProviderConfig struct {
	Data         string `toml:"data"`
	MinPrefix    int    `toml:"min_prefix"`
	MaxPrefix    int    `toml:"max_prefix"`
	DefaultLimit int    `toml:"default_limit"`
	MaxLimit     int    `toml:"max_limit"`
	Fuzzy        bool   `toml:"fuzzy"`
}

// ServerConfig has IPC server options. A rate limit of zero or less disables
// rate limiting.
type ServerConfig struct {
	RateLimit   float64 `toml:"rate_limit"`
	Burst       int     `toml:"burst"`
	WatchConfig bool    `toml:"watch_config"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	NoFilter  bool `toml:"no_filter"`
	ShowTypes bool `toml:"show_types"`
}

// configDirCandidates lists where config.toml may live, in order of
// preference: the XDG style ~/.config, then the macOS application support dir.
func configDirCandidates(homeDir string) []string {
	return []string{
		filepath.Join(homeDir, ".config", "placeserve"),
		filepath.Join(homeDir, "Library", "Application Support", "placeserve"),
	}
}

// GetConfigDir returns the first writable config directory, falling back to
// the executable's directory.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("no home directory, using executable dir", "err", err)
	} else {
		for _, dir := range configDirCandidates(homeDir) {
			if utils.CheckDirStatus(dir).Writable {
				return dir, nil
			}
		}
	}

	execDir, err := utils.GetExecutableDir()
	if err != nil {
		return "", errors.Wrap(err, "no usable config directory")
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads the config at customPath when it exists, else
// the one at the default path (creating it), else builtin defaults. The
// returned path is empty when defaults are used.
func LoadConfigWithPriority(customPath string) (*Config, string, error) {
	if customPath != "" {
		if utils.FileExists(customPath) {
			cfg, err := LoadConfig(customPath)
			if err == nil {
				log.Debug("loaded config", "path", customPath)
				return cfg, customPath, nil
			}
			log.Warn("custom config unusable, trying default path", "path", customPath, "err", err)
		} else {
			log.Warn("custom config not found, trying default path", "path", customPath)
		}
	}

	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warn("no default config path, using builtin defaults", "err", err)
		return DefaultConfig(), "", nil
	}

	cfg, err := InitConfig(defaultPath)
	if err != nil {
		log.Warn("default config unusable, using builtin defaults", "path", defaultPath, "err", err)
		return DefaultConfig(), "", nil
	}
	log.Debug("loaded config", "path", defaultPath)
	return cfg, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Autocomplete: AutocompleteConfig{
			DebounceMs:   200,
			DefaultValue: "",
		},
		Provider: ProviderConfig{
			Data:         "data/places.toml",
			MinPrefix:    1,
			MaxPrefix:    60,
			DefaultLimit: 5,
			MaxLimit:     20,
			Fuzzy:        true,
		},
		Server: ServerConfig{
			RateLimit:   50,
			Burst:       10,
			WatchConfig: true,
		},
		CLI: CliConfig{
			NoFilter:  false,
			ShowTypes: true,
		},
	}
}

// InitConfig loads configPath, writing the defaults there first if the file
// does not exist.
func InitConfig(configPath string) (*Config, error) {
	if err := utils.EnsureDir(filepath.Dir(configPath)); err != nil {
		return nil, err
	}

	if !utils.FileExists(configPath) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, configPath); err != nil {
			return nil, errors.Wrap(err, "failed to write default config")
		}
		log.Debug("created default config", "path", configPath)
		return cfg, nil
	}
	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warn("no usable config sections, using defaults", "path", configPath, "err", err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "autocomplete"); ok {
		extractAutocompleteConfig(section, &config.Autocomplete)
	}
	if section, ok := utils.ExtractSection(tempConfig, "provider"); ok {
		extractProviderConfig(section, &config.Provider)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

func extractAutocompleteConfig(data map[string]any, ac *AutocompleteConfig) {
	if val, ok := utils.ExtractInt(data, "debounce_ms"); ok {
		ac.DebounceMs = val
	}
	if val, ok := utils.ExtractString(data, "default_value"); ok {
		ac.DefaultValue = val
	}
}

func extractProviderConfig(data map[string]any, provider *ProviderConfig) {
	if val, ok := utils.ExtractString(data, "data"); ok {
		provider.Data = val
	}
	if val, ok := utils.ExtractInt(data, "min_prefix"); ok {
		provider.MinPrefix = val
	}
	if val, ok := utils.ExtractInt(data, "max_prefix"); ok {
		provider.MaxPrefix = val
	}
	if val, ok := utils.ExtractInt(data, "default_limit"); ok {
		provider.DefaultLimit = val
	}
	if val, ok := utils.ExtractInt(data, "max_limit"); ok {
		provider.MaxLimit = val
	}
	if val, ok := utils.ExtractBool(data, "fuzzy"); ok {
		provider.Fuzzy = val
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractFloat64(data, "rate_limit"); ok {
		server.RateLimit = val
	}
	if val, ok := utils.ExtractInt(data, "burst"); ok {
		server.Burst = val
	}
	if val, ok := utils.ExtractBool(data, "watch_config"); ok {
		server.WatchConfig = val
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractBool(data, "no_filter"); ok {
		cli.NoFilter = val
	}
	if val, ok := utils.ExtractBool(data, "show_types"); ok {
		cli.ShowTypes = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(defaultPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return err
	}
	return SaveConfig(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
