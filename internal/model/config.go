package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config
// keys (e.g. O365MAIL_ACCOUNT_EMAIL for account.email).
const EnvPrefix = "O365MAIL"

// AccountConfig identifies the authenticating user and target mailbox.
type AccountConfig struct {
	// Username is the login identity (user@tenant.com).
	Username string `mapstructure:"username" yaml:"username"`

	// Email is the mailbox to act on; empty means Username.
	Email string `mapstructure:"email" yaml:"email"`

	// Server is the EWS host.
	Server string `mapstructure:"server" yaml:"server"`

	// TimeoutSec bounds each round trip; 0 disables the timeout.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// SearchConfig holds defaults for mailbox searches.
type SearchConfig struct {
	Folder string `mapstructure:"folder" yaml:"folder"`
	Limit  int    `mapstructure:"limit" yaml:"limit"`
}

// DownloadConfig holds attachment download settings.
type DownloadConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LedgerConfig locates the download ledger database.
type LedgerConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account  AccountConfig  `mapstructure:"account" yaml:"account"`
	Search   SearchConfig   `mapstructure:"search" yaml:"search"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Ledger   LedgerConfig   `mapstructure:"ledger" yaml:"ledger"`
}

// configDir returns ~/.config/o365mail, or "." when the home directory
// cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "o365mail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/o365mail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			Server: "outlook.office365.com",
		},
		Search: SearchConfig{
			Folder: "inbox",
			Limit:  100,
		},
		Download: DownloadConfig{
			Dir: ".",
		},
		Ledger: LedgerConfig{
			Path: filepath.Join(configDir(), "downloads.db"),
		},
	}
}

// newViper returns a viper instance with defaults and environment
// overrides registered.
func newViper(path string) *viper.Viper {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("account.username", "")
	v.SetDefault("account.email", "")
	v.SetDefault("account.server", def.Account.Server)
	v.SetDefault("account.timeout_sec", 0)
	v.SetDefault("search.folder", def.Search.Folder)
	v.SetDefault("search.limit", def.Search.Limit)
	v.SetDefault("download.dir", def.Download.Dir)
	v.SetDefault("ledger.path", def.Ledger.Path)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus environment overrides) are
// returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = 100
	}
	if cfg.Account.Server == "" {
		cfg.Account.Server = "outlook.office365.com"
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", map[string]interface{}{
		"username":    cfg.Account.Username,
		"email":       cfg.Account.Email,
		"server":      cfg.Account.Server,
		"timeout_sec": cfg.Account.TimeoutSec,
	})
	v.Set("search", map[string]interface{}{
		"folder": cfg.Search.Folder,
		"limit":  cfg.Search.Limit,
	})
	v.Set("download", map[string]interface{}{
		"dir": cfg.Download.Dir,
	})
	v.Set("ledger", map[string]interface{}{
		"path": cfg.Ledger.Path,
	})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
