package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string
	DatabaseURL    string
	ShutdownGraceS int
}

// Load reads .env if present, then the environment. Missing values
// fall back to dev defaults; DATABASE_URL stays empty when no journal
// database is configured.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:           getEnv("ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ShutdownGraceS: getEnvInt("SHUTDOWN_GRACE_SEC", 5),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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
