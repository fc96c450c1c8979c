// Package config provides environment-based configuration helpers shared by all binaries.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotenv loads a .env file from the working directory when one exists.
// A missing file is not an error so containerized deployments can rely on
// real environment variables alone.
func LoadDotenv() {
	_ = godotenv.Load()
}

// GetEnv returns the value of key, or fallback when the variable is unset or empty
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback when unset or unparsable
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of key, or fallback when unset or unparsable
func GetEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
