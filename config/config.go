package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
)

// Config holds all configurable server parameters.
type Config struct {
	WSPort            int    `json:"ws_port"`
	MinPlayers        int    `json:"min_players"`
	DefaultCapacity   int    `json:"default_capacity"`
	MaxRoomNameLength int    `json:"max_room_name_length"`
	ReconnectGraceMS  int    `json:"reconnect_grace_ms"`
	TurnLimitSec      int    `json:"turn_limit_sec"`
	ScoreUnit         int    `json:"score_unit"`
	PersistQueueSize  int    `json:"persist_queue_size"`
	LogLevel          string `json:"log_level"`

	// DatabaseURL is the Postgres DSN; empty disables persistence.
	DatabaseURL string `json:"-"`

	// Auth: either a JWKS endpoint (with optional issuer check) or a shared
	// HS256 secret. JWKS wins when both are set.
	AuthJWKSURL    string `json:"auth_jwks_url"`
	AuthIssuer     string `json:"auth_issuer"`
	AuthHMACSecret string `json:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		WSPort:            8080,
		MinPlayers:        3,
		DefaultCapacity:   3,
		MaxRoomNameLength: 32,
		ReconnectGraceMS:  3000,
		TurnLimitSec:      0,
		ScoreUnit:         1,
		PersistQueueSize:  256,
		LogLevel:          "info",
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config.json", "tag", "config", "err", err)
		}
	}

	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideInt(&cfg.MinPlayers, "MIN_PLAYERS")
	overrideInt(&cfg.DefaultCapacity, "DEFAULT_CAPACITY")
	overrideInt(&cfg.MaxRoomNameLength, "MAX_ROOM_NAME_LENGTH")
	overrideInt(&cfg.ReconnectGraceMS, "RECONNECT_GRACE_MS")
	overrideInt(&cfg.TurnLimitSec, "TURN_LIMIT_SEC")
	overrideInt(&cfg.ScoreUnit, "SCORE_UNIT")
	overrideInt(&cfg.PersistQueueSize, "PERSIST_QUEUE_SIZE")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")
	overrideString(&cfg.AuthIssuer, "AUTH_ISSUER")
	overrideString(&cfg.AuthHMACSecret, "AUTH_HMAC_SECRET")

	return cfg
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			slog.Warn("invalid integer in environment", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
