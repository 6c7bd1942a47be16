package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	if env.Env != "local" {
		t.Errorf("Env = %q, want %q", env.Env, "local")
	}
	if env.TasksKey != "tasks.yaml" {
		t.Errorf("TasksKey = %q, want %q", env.TasksKey, "tasks.yaml")
	}
	if env.HorizonURL != "https://horizon-testnet.stellar.org" {
		t.Errorf("HorizonURL = %q", env.HorizonURL)
	}
	if env.NetworkPassphrase != "Test SDF Network ; September 2015" {
		t.Errorf("NetworkPassphrase = %q", env.NetworkPassphrase)
	}
	if env.BaseFee != 100 {
		t.Errorf("BaseFee = %d, want 100", env.BaseFee)
	}
	if env.BalanceRefreshInterval != 10*time.Second {
		t.Errorf("BalanceRefreshInterval = %v, want 10s", env.BalanceRefreshInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MICROGIG_LOG_LEVEL", "warn")
	t.Setenv("MICROGIG_BASE_FEE", "200")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if env.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", env.LogLevel, "warn")
	}
	if env.BaseFee != 200 {
		t.Errorf("BaseFee = %d, want 200", env.BaseFee)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelDebug},
	}
	for _, tt := range tests {
		env := &BaseEnv{LogLevel: tt.in}
		if got := env.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if (*BaseEnv)(nil).SlogLevel() != slog.LevelDebug {
		t.Error("nil receiver should default to debug")
	}
}
