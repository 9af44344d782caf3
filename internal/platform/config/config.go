package config

import (
	"os"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean.
type Config struct {
	Addr        string
	PostgresDSN string
	RedisURL    string

	Regulator RegulatorConfig

	// VolumeListCacheTTL bounds staleness of the cached volume listing.
	VolumeListCacheTTL time.Duration
}

// RegulatorConfig holds the external regulator endpoints and credentials.
type RegulatorConfig struct {
	TokenURL   string
	ClientID   string
	Username   string
	Password   string
	APIBaseURL string
}

// FromEnv builds a Config from environment variables with development
// defaults. Credentials have no defaults and must be provided.
func FromEnv() Config {
	addr := os.Getenv("LEDGER_ADDR")
	if addr == "" {
		addr = ":4000"
	}
	clientID := os.Getenv("REGULATOR_CLIENT_ID")
	if clientID == "" {
		clientID = "client-api-diariodebordo"
	}
	return Config{
		Addr:        addr,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Regulator: RegulatorConfig{
			TokenURL:   os.Getenv("REGULATOR_TOKEN_URL"),
			ClientID:   clientID,
			Username:   os.Getenv("REGULATOR_USERNAME"),
			Password:   os.Getenv("REGULATOR_PASSWORD"),
			APIBaseURL: os.Getenv("REGULATOR_API_BASE_URL"),
		},
		VolumeListCacheTTL: time.Minute,
	}
}
