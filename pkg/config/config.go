// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
)

// Backend names accepted in MAILFEED_KV_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendMongo    = "mongo"
)

// Config holds all service configuration.
type Config struct {
	Addr string

	// Storage backend selection plus per-backend settings.
	KVBackend        string
	SQLitePath       string
	PostgresDSN      string
	SupabaseURL      string
	SupabaseKey      string
	SupabasePassword string
	MongoURI         string
	MongoDatabase    string
	MongoCollection  string

	// Extraction service.
	ExtractionAPIKey  string
	ExtractionModel   string
	ExtractionBaseURL string

	// Optional basic-auth credentials for mutating routes. Leaving both
	// empty disables auth.
	AuthUsername string
	AuthPassword string
}

// Load reads configuration from environment variables and applies
// defaults.
func Load() *Config {
	return &Config{
		Addr: envOr("MAILFEED_ADDR", ":8080"),

		KVBackend:        envOr("MAILFEED_KV_BACKEND", BackendSQLite),
		SQLitePath:       envOr("MAILFEED_SQLITE_PATH", "mailfeed.db"),
		PostgresDSN:      os.Getenv("MAILFEED_POSTGRES_DSN"),
		SupabaseURL:      os.Getenv("SUPABASE_URL"),
		SupabaseKey:      os.Getenv("SUPABASE_KEY"),
		SupabasePassword: os.Getenv("SUPABASE_DB_PASSWORD"),
		MongoURI:         envOr("MAILFEED_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    envOr("MAILFEED_MONGO_DB", "mailfeed"),
		MongoCollection:  envOr("MAILFEED_MONGO_COLLECTION", "kv_items"),

		ExtractionAPIKey:  os.Getenv("OPENAI_API_KEY"),
		ExtractionModel:   os.Getenv("MAILFEED_EXTRACTION_MODEL"),
		ExtractionBaseURL: os.Getenv("MAILFEED_EXTRACTION_BASE_URL"),

		AuthUsername: os.Getenv("AUTH_USERNAME"),
		AuthPassword: os.Getenv("AUTH_PASSWORD"),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ExtractionAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	switch c.KVBackend {
	case BackendMemory, BackendSQLite, BackendMongo:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("MAILFEED_POSTGRES_DSN is required for the postgres backend")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabasePassword == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_DB_PASSWORD are required for the supabase backend")
		}
	default:
		return fmt.Errorf("unknown kv backend %q", c.KVBackend)
	}

	if (c.AuthUsername == "") != (c.AuthPassword == "") {
		return fmt.Errorf("AUTH_USERNAME and AUTH_PASSWORD must be set together")
	}
	return nil
}

// AuthEnabled reports whether basic auth should guard mutating routes.
func (c *Config) AuthEnabled() bool {
	return c.AuthUsername != "" && c.AuthPassword != ""
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
