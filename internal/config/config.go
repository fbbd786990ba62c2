package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appName             = "clusterdash"
	envPrefix           = "CLUSTERDASH"
	defaultConfigName   = "config.json"
	defaultDatabaseFile = "history.db"
	defaultLogFile      = "clusterdash.log"

	defaultServerURL              = "http://localhost:8080"
	defaultRefreshInterval        = 30 * time.Second
	defaultHistoryRefreshInterval = 5 * time.Minute
	defaultHistoryHours           = 24
	defaultListenAddr             = ":8090"
	defaultLogLevel               = "info"
	defaultAgentPollInterval      = 10 * time.Second
	defaultAgentPostInterval      = 10 * time.Second
	defaultAgentAuthCode          = "pass"
)

type Config struct {
	ServerURL              string        `mapstructure:"server_url"`
	RefreshInterval        time.Duration `mapstructure:"refresh_interval"`
	HistoryRefreshInterval time.Duration `mapstructure:"history_refresh_interval"`
	HistoryHours           int           `mapstructure:"history_hours"`
	Timeout                time.Duration `mapstructure:"timeout"`
	ListenAddr             string        `mapstructure:"listen_addr"`
	DatabasePath           string        `mapstructure:"database_path"`
	LogFile                string        `mapstructure:"log_file"`
	LogLevel               string        `mapstructure:"log_level"`
	Agent                  AgentConfig   `mapstructure:"agent"`
}

type AgentConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PostInterval time.Duration `mapstructure:"post_interval"`
	AuthCode     string        `mapstructure:"auth_code"`
	Hostname     string        `mapstructure:"hostname"`
}

// DefaultDir is <user config dir>/clusterdash.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("refresh_interval", defaultRefreshInterval)
	v.SetDefault("history_refresh_interval", defaultHistoryRefreshInterval)
	v.SetDefault("history_hours", defaultHistoryHours)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("database_path", filepath.Join(configDir, defaultDatabaseFile))
	v.SetDefault("log_file", filepath.Join(configDir, defaultLogFile))
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("agent.poll_interval", defaultAgentPollInterval)
	v.SetDefault("agent.post_interval", defaultAgentPostInterval)
	v.SetDefault("agent.auth_code", defaultAgentAuthCode)
	v.SetDefault("agent.hostname", "")
}

// LoadConfig reads config.json from configDir, writing one with the defaults
// first if none exists. Environment variables (CLUSTERDASH_SERVER_URL,
// CLUSTERDASH_AGENT_AUTH_CODE, ...) and any flags already bound on v take
// precedence over the file.
func LoadConfig(v *viper.Viper, configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}

	SetDefaults(v, configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := filepath.Join(configDir, defaultConfigName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := createDefaultConfig(configPath, configDir); err != nil {
			return nil, err
		}
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server_url %q", c.ServerURL)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	if c.HistoryRefreshInterval <= 0 {
		return fmt.Errorf("history_refresh_interval must be positive, got %s", c.HistoryRefreshInterval)
	}
	if c.HistoryHours <= 0 {
		return fmt.Errorf("history_hours must be positive, got %d", c.HistoryHours)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive, got %s", c.Agent.PollInterval)
	}
	return nil
}

func createDefaultConfig(configPath, configDir string) error {
	cfg := map[string]interface{}{
		"server_url":               defaultServerURL,
		"refresh_interval":         defaultRefreshInterval.String(),
		"history_refresh_interval": defaultHistoryRefreshInterval.String(),
		"history_hours":            defaultHistoryHours,
		"timeout":                  "0s",
		"listen_addr":              defaultListenAddr,
		"database_path":            filepath.Join(configDir, defaultDatabaseFile),
		"log_file":                 filepath.Join(configDir, defaultLogFile),
		"log_level":                defaultLogLevel,
		"agent": map[string]interface{}{
			"poll_interval": defaultAgentPollInterval.String(),
			"post_interval": defaultAgentPostInterval.String(),
			"auth_code":     defaultAgentAuthCode,
		},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
