// Package config loads the daemon configuration from the environment. A
// .env file, when present, is folded in before decoding so local setups do
// not need to export anything.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the daemon configuration.
type Config struct {
	HTTP     HTTPConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Engine   EngineConfig
}

// HTTPConfig controls the REST listener.
type HTTPConfig struct {
	Addr            string `env:"TOKEND_HTTP_ADDR,default=:8080"`
	ShutdownTimeout int    `env:"TOKEND_HTTP_SHUTDOWN_TIMEOUT,default=10"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"TOKEND_LOG_LEVEL,default=info"`
	Pretty bool   `env:"TOKEND_LOG_PRETTY,default=false"`
}

// DatabaseConfig selects the store backend. An empty URL keeps everything
// in memory.
type DatabaseConfig struct {
	URL string `env:"TOKEND_DATABASE_URL,default="`
}

// EngineConfig tunes the engine itself.
type EngineConfig struct {
	// BlockCron is the cron schedule advancing the block clock, in the
	// six-field form with seconds or the @every form.
	BlockCron   string `env:"TOKEND_BLOCK_CRON,default=@every 5s"`
	EventBuffer int    `env:"TOKEND_EVENT_BUFFER,default=1024"`
}

// Load reads .env when present and decodes the configuration from the
// environment.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit .env path, for tests.
func LoadFrom(envFile string) (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load(envFile)

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}
