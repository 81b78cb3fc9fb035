package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LedgerConfig holds the tunables of the transaction engine.
type LedgerConfig struct {
	Currency              string
	OperationTimeout      time.Duration
	DirectoryDefaultLimit int
	DirectoryMaxLimit     int
	HistoryDefaultLimit   int
	HistoryMaxLimit       int
	QRRequestTTL          time.Duration
	EventsQueue           string
	VerifyMaxRetries      int
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		Currency:              strings.ToUpper(getEnv("LEDGER_CURRENCY", "USD")),
		OperationTimeout:      getEnvAsDuration("LEDGER_OPERATION_TIMEOUT", 10*time.Second),
		DirectoryDefaultLimit: getEnvAsInt("DIRECTORY_DEFAULT_LIMIT", 10),
		DirectoryMaxLimit:     getEnvAsInt("DIRECTORY_MAX_LIMIT", 50),
		HistoryDefaultLimit:   getEnvAsInt("HISTORY_DEFAULT_LIMIT", 20),
		HistoryMaxLimit:       getEnvAsInt("HISTORY_MAX_LIMIT", 100),
		QRRequestTTL:          getEnvAsDuration("QR_REQUEST_TTL", 5*time.Minute),
		EventsQueue:           getEnv("EVENTS_QUEUE", "transaction_events"),
		VerifyMaxRetries:      getEnvAsInt("PROCESSOR_VERIFY_MAX_RETRIES", 3),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
