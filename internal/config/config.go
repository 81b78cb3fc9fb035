package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Load reads .env and the environment into viper. Packages read their own
// keys afterwards (database.*, redis.*, jwt.*, argon2.*, processor.*, cors.*).
func Load() {
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("server.port", "PORT")

	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.migrate", "DATABASE_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.pool_size", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.dial_timeout", "REDIS_DIAL_TIMEOUT")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("processor.base_url", "PROCESSOR_BASE_URL")
	viper.BindEnv("processor.api_key", "PROCESSOR_API_KEY")
	viper.BindEnv("processor.timeout", "PROCESSOR_TIMEOUT")

	viper.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
}

// SetDefaults is split out so tests can get a usable configuration
// without touching the filesystem.
func SetDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("processor.timeout", "10s")
	viper.SetDefault("database.migrate", true)
	viper.SetDefault("cors.allowed_origins", "http://localhost:3000")
}

// CORSOrigins returns the comma-separated cors.allowed_origins list.
// Credentials are only allowed when every origin is named explicitly.
func CORSOrigins() ([]string, bool) {
	var origins []string
	allowCredentials := true
	for _, origin := range strings.Split(viper.GetString("cors.allowed_origins"), ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if strings.Contains(origin, "*") {
			allowCredentials = false
		}
		origins = append(origins, origin)
	}
	return origins, allowCredentials && len(origins) > 0
}
