// Package config provides centralized configuration for the catalog service.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Pagination policies for limits above MaxQueryRows.
const (
	PaginationReject = "reject"
	PaginationClamp  = "clamp"
)

// Config holds all application configuration values.
type Config struct {
	Port              string // HTTP server port (e.g., ":8080")
	Environment       string // "debug", "test" or "release"
	DBDriver          string // sqlite3, libsql, pgx or postgres
	DBDSN             string // driver-specific data source name
	MaxQueryRows      int    // Maximum rows per query (must be > 0)
	DefaultLimit      int    // Limit applied when the payload has none
	PaginationPolicy  string // reject or clamp limits above MaxQueryRows
	MaxConditionDepth int    // Maximum nesting depth for condition groups
	MaxInListSize     int    // Maximum IN / NOT IN list length
	RequestTimeout    int    // Request timeout in seconds
	MaxRequestBody    int64  // Maximum request body size in bytes
	LogLevel          string // debug, info, warn or error
	MigrateOnStart    bool   // Apply embedded migrations at startup
	RawWhereEnabled   bool   // Expose the raw WHERE endpoint
}

// Cfg is the global configuration instance, loaded at startup.
var Cfg Config

func init() {
	// Load .env file before reading config (ignore error if file doesn't exist)
	godotenv.Load()
	Cfg = Load()
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		Port:              cast.ToString(getOrReturnDefaultValue("PORT", ":8080")),
		Environment:       cast.ToString(getOrReturnDefaultValue("ENVIRONMENT", "debug")),
		DBDriver:          cast.ToString(getOrReturnDefaultValue("DB_DRIVER", "sqlite3")),
		DBDSN:             cast.ToString(getOrReturnDefaultValue("DB_DSN", "file:catalog.db?_foreign_keys=1&_txlock=immediate&_busy_timeout=5000")),
		MaxQueryRows:      cast.ToInt(getOrReturnDefaultValue("MAX_QUERY_ROWS", 1000)),
		DefaultLimit:      cast.ToInt(getOrReturnDefaultValue("DEFAULT_LIMIT", 100)),
		PaginationPolicy:  strings.ToLower(cast.ToString(getOrReturnDefaultValue("PAGINATION_POLICY", PaginationReject))),
		MaxConditionDepth: cast.ToInt(getOrReturnDefaultValue("MAX_CONDITION_DEPTH", 8)),
		MaxInListSize:     cast.ToInt(getOrReturnDefaultValue("MAX_IN_LIST_SIZE", 100)),
		RequestTimeout:    cast.ToInt(getOrReturnDefaultValue("REQUEST_TIMEOUT", 30)),
		MaxRequestBody:    cast.ToInt64(getOrReturnDefaultValue("MAX_REQUEST_BODY", 1<<20)), // 1MB
		LogLevel:          cast.ToString(getOrReturnDefaultValue("LOG_LEVEL", "info")),
		MigrateOnStart:    cast.ToBool(getOrReturnDefaultValue("MIGRATE_ON_START", true)),
		RawWhereEnabled:   cast.ToBool(getOrReturnDefaultValue("RAW_WHERE_ENABLED", false)),
	}

	// Invalid numbers fall back to defaults rather than producing a zero limit.
	if cfg.MaxQueryRows <= 0 {
		cfg.MaxQueryRows = 1000
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxQueryRows {
		cfg.DefaultLimit = min(100, cfg.MaxQueryRows)
	}
	if cfg.PaginationPolicy != PaginationClamp {
		cfg.PaginationPolicy = PaginationReject
	}
	if cfg.MaxConditionDepth <= 0 {
		cfg.MaxConditionDepth = 8
	}
	if cfg.MaxInListSize <= 0 {
		cfg.MaxInListSize = 100
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 1 << 20
	}

	return cfg
}

// getOrReturnDefaultValue returns the environment variable value or a default if not set.
func getOrReturnDefaultValue(key string, defaultValue interface{}) interface{} {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return defaultValue
}
