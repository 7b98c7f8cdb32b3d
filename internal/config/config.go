package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type OAuthProvider struct {
	Key         string
	Secret      string
	CallbackURL string
}

func (p OAuthProvider) Enabled() bool {
	return p.Key != "" && p.Secret != ""
}

type Config struct {
	DBPath          string
	Addr            string
	SessionLifetime time.Duration

	Discord OAuthProvider
	Google  OAuthProvider

	// Result submissions per second allowed for one client
	ResultRateLimit float64
	ResultRateBurst int
}

// SetDefaults registers every key with its default so env lookups work for
// keys that were never set explicitly.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "tournament.db")
	v.SetDefault("addr", ":8080")
	v.SetDefault("session_lifetime", "24h")
	v.SetDefault("result_rate_limit", 2.0)
	v.SetDefault("result_rate_burst", 5)
	for _, key := range []string{
		"discord_key", "discord_secret", "discord_callback_url",
		"google_key", "google_secret", "google_callback_url",
	} {
		v.SetDefault(key, "")
	}
}

// Load reads an optional .env file and then the OP_ prefixed environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	v := viper.New()
	v.SetEnvPrefix("OP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DBPath:          v.GetString("db_path"),
		Addr:            v.GetString("addr"),
		SessionLifetime: v.GetDuration("session_lifetime"),
		Discord: OAuthProvider{
			Key:         v.GetString("discord_key"),
			Secret:      v.GetString("discord_secret"),
			CallbackURL: v.GetString("discord_callback_url"),
		},
		Google: OAuthProvider{
			Key:         v.GetString("google_key"),
			Secret:      v.GetString("google_secret"),
			CallbackURL: v.GetString("google_callback_url"),
		},
		ResultRateLimit: v.GetFloat64("result_rate_limit"),
		ResultRateBurst: v.GetInt("result_rate_burst"),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path must not be empty")
	}
	if cfg.SessionLifetime <= 0 {
		return nil, fmt.Errorf("session_lifetime must be positive, got %s", v.GetString("session_lifetime"))
	}
	if cfg.ResultRateLimit <= 0 || cfg.ResultRateBurst <= 0 {
		return nil, fmt.Errorf("result rate limit and burst must be positive")
	}
	return cfg, nil
}
