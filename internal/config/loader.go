package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDir      = "WIRECHAT_CONFIG_DIR"
	defaultConfigName = "config.yaml"
	appDirName        = "wirechat"
)

const defaultFileHeader = "# wirechat client configuration. WIRECHAT_* environment variables and flags override it.\n"

// Load resolves configuration and returns it with the file path it was read from.
// Precedence: defaults < config file < WIRECHAT_* env vars. Flags are applied by the caller
// through UpdateFrom. A missing file is created with the defaults.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()
	configPath := resolveConfigPath(explicitPath)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)
	setDefaults(v, cfg)
	v.SetEnvPrefix("WIRECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	switch {
	case err == nil:
	case isNotExist(err):
		if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil {
			if logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			}
			break
		}
		if logger != nil {
			logger.Info().Str("path", configPath).Msg("created default config")
		}
	default:
		return cfg, configPath, fmt.Errorf("read config %s: %w", configPath, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, configPath, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func setDefaults(v *viper.Viper, cfg Config) {
	defaults := map[string]any{
		"server_url":              cfg.ServerURL,
		"username":                cfg.Username,
		"token":                   cfg.Token,
		"log_level":               cfg.LogLevel,
		"log_file":                cfg.LogFile,
		"db_path":                 cfg.DBPath,
		"status_addr":             cfg.StatusAddr,
		"default_room":            cfg.DefaultRoom,
		"connect_timeout":         cfg.ConnectTimeout,
		"write_timeout":           cfg.WriteTimeout,
		"reconnect.max_attempts":  cfg.Reconnect.MaxAttempts,
		"reconnect.initial_delay": cfg.Reconnect.InitialDelay,
		"reconnect.max_delay":     cfg.Reconnect.MaxDelay,
		"typing.quiet_period":     cfg.Typing.QuietPeriod,
		"typing.stale_timeout":    cfg.Typing.StaleTimeout,
		"rate_limit.window":       cfg.RateLimit.Window,
		"protocol.legacy_names":   cfg.Protocol.LegacyNames,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// resolveConfigPath picks the explicit path, then $WIRECHAT_CONFIG_DIR, then the user
// config directory, then the working directory.
func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		return filepath.Join(dir, defaultConfigName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName, defaultConfigName)
	}
	return defaultConfigName
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	// The file may hold a token.
	return os.WriteFile(path, append([]byte(defaultFileHeader), data...), 0o600)
}
