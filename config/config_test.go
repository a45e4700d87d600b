package config

import (
	"log/slog"
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.WSPort != 8080 {
		t.Errorf("expected WSPort=8080, got %d", cfg.WSPort)
	}
	if cfg.MinPlayers != 3 {
		t.Errorf("expected MinPlayers=3, got %d", cfg.MinPlayers)
	}
	if cfg.MaxRoomNameLength != 32 {
		t.Errorf("expected MaxRoomNameLength=32, got %d", cfg.MaxRoomNameLength)
	}
	if cfg.ReconnectGraceMS != 3000 {
		t.Errorf("expected ReconnectGraceMS=3000, got %d", cfg.ReconnectGraceMS)
	}
	if cfg.TurnLimitSec != 0 {
		t.Errorf("expected TurnLimitSec=0 (disabled), got %d", cfg.TurnLimitSec)
	}
	if cfg.ScoreUnit != 1 {
		t.Errorf("expected ScoreUnit=1, got %d", cfg.ScoreUnit)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("WS_PORT", "9090")
	t.Setenv("TURN_LIMIT_SEC", "30")
	t.Setenv("DATABASE_URL", "postgres://localhost/landlord")
	t.Setenv("AUTH_HMAC_SECRET", "s3cret")

	cfg := Load()

	if cfg.WSPort != 9090 {
		t.Errorf("expected WSPort=9090 after env override, got %d", cfg.WSPort)
	}
	if cfg.TurnLimitSec != 30 {
		t.Errorf("expected TurnLimitSec=30 after env override, got %d", cfg.TurnLimitSec)
	}
	if cfg.DatabaseURL != "postgres://localhost/landlord" {
		t.Errorf("unexpected DatabaseURL %q", cfg.DatabaseURL)
	}
	if cfg.AuthHMACSecret != "s3cret" {
		t.Errorf("unexpected AuthHMACSecret %q", cfg.AuthHMACSecret)
	}
	// Non-overridden fields should remain default
	if cfg.ReconnectGraceMS != 3000 {
		t.Errorf("expected ReconnectGraceMS=3000 (default), got %d", cfg.ReconnectGraceMS)
	}
}

func TestLoadWithInvalidEnv(t *testing.T) {
	t.Setenv("MIN_PLAYERS", "invalid")

	cfg := Load()

	if cfg.MinPlayers != 3 {
		t.Errorf("expected MinPlayers=3 (default) with invalid env, got %d", cfg.MinPlayers)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/config.json", []byte(`{"score_unit": 4, "reconnect_grace_ms": 500}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg := Load()
	if cfg.ScoreUnit != 4 {
		t.Errorf("expected ScoreUnit=4 from file, got %d", cfg.ScoreUnit)
	}
	if cfg.ReconnectGraceMS != 500 {
		t.Errorf("expected ReconnectGraceMS=500 from file, got %d", cfg.ReconnectGraceMS)
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "warn": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		cfg := &Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
