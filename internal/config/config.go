package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jobwatch/internal/dirs"
)

// Settings is the resolved configuration shared by every command.
type Settings struct {
	BaseURL       string `mapstructure:"base_url"`
	SessionCookie string `mapstructure:"session_cookie"`
	CookieName    string `mapstructure:"cookie_name"`
	Debug         bool   `mapstructure:"debug"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
}

const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultCookieName = "sessionid"
)

// Init wires Viper with config paths, env, defaults, and flag bindings.
// A config file that exists but cannot be parsed is reported; a missing one is not.
func Init(root *cobra.Command) error {
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: JOBWATCH_*
	viper.SetEnvPrefix("JOBWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("base_url", DefaultBaseURL)
	viper.SetDefault("cookie_name", DefaultCookieName)
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")

	// Bind root persistent flags to Viper keys: base-url -> base_url
	var bindErr error
	root.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		if err := viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
			bindErr = fmt.Errorf("bind %s: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load resolves the current settings. Precedence is flag, env, file, default.
func Load() (Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if s.Debug {
		s.LogLevel = "debug"
	}
	return s, nil
}

// File returns the config file in use, or "" when none was found.
func File() string {
	return viper.ConfigFileUsed()
}
