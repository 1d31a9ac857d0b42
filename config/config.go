// Package config loads the fixed parameters a nethercored session is run
// with: tick rate, player limits, NCHS timeouts, and the rollback prediction
// window. Values come from a config file, environment variables, or CLI
// flags, in that increasing order of precedence, via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// NethercoreConfig holds everything a session needs before the first guest
// instance is created. It is read once at startup; nothing in the hot path
// consults viper directly.
type NethercoreConfig struct {
	TickRate       uint8 `mapstructure:"tick_rate"`
	MaxPlayers     uint8 `mapstructure:"max_players"`
	MaxSaveSlots   int   `mapstructure:"max_save_slots"`

	JoinTimeout        time.Duration `mapstructure:"join_timeout"`
	PunchTimeout       time.Duration `mapstructure:"punch_timeout"`
	PunchRetryInterval time.Duration `mapstructure:"punch_retry_interval"`
	DisconnectTimeout  time.Duration `mapstructure:"disconnect_timeout"`
	PingInterval       time.Duration `mapstructure:"ping_interval"`

	MaxPredictionWindow int `mapstructure:"max_prediction_window"`

	LogLevel string `mapstructure:"log_level"`
}

// Default returns the configuration a bare `nethercored` run uses with no
// file, env, or flag overrides present.
func Default() *NethercoreConfig {
	return &NethercoreConfig{
		TickRate:     60,
		MaxPlayers:   8,
		MaxSaveSlots: 8,

		JoinTimeout:        5 * time.Second,
		PunchTimeout:       3 * time.Second,
		PunchRetryInterval: 200 * time.Millisecond,
		DisconnectTimeout:  5 * time.Second,
		PingInterval:       1 * time.Second,

		MaxPredictionWindow: 8,

		LogLevel: "info",
	}
}

// Load reads a NethercoreConfig from (in ascending precedence) a config
// file, NETHERCORE_-prefixed environment variables, and whatever has
// already been bound into v by the caller's flag set.
func Load(v *viper.Viper) (*NethercoreConfig, error) {
	if v == nil {
		v = viper.New()
	}
	cfg := Default()

	v.SetConfigName("nethercore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/nethercore")

	v.SetEnvPrefix("NETHERCORE")
	v.AutomaticEnv()
	// Unmarshal only visits keys viper already knows, so each field's
	// environment variable is bound explicitly.
	for _, key := range []string{"tick_rate", "max_players", "max_save_slots",
		"join_timeout", "punch_timeout", "punch_retry_interval", "disconnect_timeout",
		"ping_interval", "max_prediction_window", "log_level"} {
		v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the rest of the runtime has no recovery
// path for.
func (c *NethercoreConfig) Validate() error {
	if c.TickRate == 0 {
		return fmt.Errorf("config: tick_rate must be nonzero")
	}
	if c.MaxPlayers == 0 {
		return fmt.Errorf("config: max_players must be nonzero")
	}
	if c.MaxPredictionWindow <= 0 {
		return fmt.Errorf("config: max_prediction_window must be positive")
	}
	return nil
}
