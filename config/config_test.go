package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_DefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickRate != 60 {
		t.Fatalf("TickRate = %d, want 60", cfg.TickRate)
	}
	if cfg.MaxPlayers != 8 {
		t.Fatalf("MaxPlayers = %d, want 8", cfg.MaxPlayers)
	}
	if cfg.MaxPredictionWindow != 8 {
		t.Fatalf("MaxPredictionWindow = %d, want 8", cfg.MaxPredictionWindow)
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("NETHERCORE_MAX_PLAYERS", "2")
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxPlayers != 2 {
		t.Fatalf("MaxPlayers = %d, want 2", cfg.MaxPlayers)
	}
}

func TestValidate_RejectsZeroTickRate(t *testing.T) {
	cfg := Default()
	cfg.TickRate = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: want error for zero tick_rate")
	}
}

func TestValidate_RejectsZeroPredictionWindow(t *testing.T) {
	cfg := Default()
	cfg.MaxPredictionWindow = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: want error for zero max_prediction_window")
	}
}
