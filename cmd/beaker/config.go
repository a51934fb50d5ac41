package main

import (
	"os"
	"strconv"
)

// config holds every BEAKER_-prefixed environment setting. All of it is
// optional: with nothing set, the engine runs with zero external services
// against a local SQLite file in the working directory.
type config struct {
	DBPath      string
	LogLevel    string
	LogFormat   string
	NatsURL     string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	MetricsPort int
}

func loadConfig() config {
	return config{
		DBPath:      envOr("BEAKER_DB_PATH", "beaker.db"),
		LogLevel:    envOr("BEAKER_LOG_LEVEL", "info"),
		LogFormat:   envOr("BEAKER_LOG_FORMAT", "text"),
		NatsURL:     os.Getenv("BEAKER_NATS_URL"),
		Neo4jURL:    os.Getenv("BEAKER_NEO4J_URL"),
		Neo4jUser:   os.Getenv("BEAKER_NEO4J_USER"),
		Neo4jPass:   os.Getenv("BEAKER_NEO4J_PASSWORD"),
		MetricsPort: envOrInt("BEAKER_METRICS_PORT", 0),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
