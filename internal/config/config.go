package config

import (
	"os"
)

// Config holds the core runtime configuration for the service.
// Values are sourced from environment variables, with sensible
// defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr string

	// EntitiesFile is the path to the YAML document describing data
	// sources and entities.
	EntitiesFile string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	return &Config{
		ListenAddr:   getenv("APP_LISTEN_ADDR", ":8080"),
		EntitiesFile: getenv("APP_ENTITIES_FILE", "entities.yaml"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
