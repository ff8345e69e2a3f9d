package utils

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads ./.env into the environment if present. Variables already
// set in the process win over the file.
func LoadDotEnv() {
	_ = godotenv.Load()
}

type ServerConfig struct {
	HTTPAddr       string
	TCPAddr        string
	LogLevel       string
	LogFormat      string
	UpdateInterval time.Duration // 0 disables periodic ingestion
	RateRPS        float64
	RateBurst      int
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
	AdminKey    string // empty leaves mutating routes open
}

type BookstoreConfig struct {
	AppID   string
	BaseURL string
}

type CompletionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func LoadServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:       getenv("MANGASHELF_HTTP_ADDR", ":8080"),
		TCPAddr:        getenv("MANGASHELF_TCP_ADDR", ":7070"),
		LogLevel:       getenv("MANGASHELF_LOG_LEVEL", "info"),
		LogFormat:      getenv("MANGASHELF_LOG_FORMAT", "json"),
		UpdateInterval: getDuration("MANGASHELF_UPDATE_INTERVAL", 0),
		RateRPS:        getFloat("MANGASHELF_RATE_RPS", 1),
		RateBurst:      getInt("MANGASHELF_RATE_BURST", 5),
	}
}

func LoadAuthConfig() AuthConfig {
	return AuthConfig{
		// dev default (change for production)
		JWTSecret:   getenv("MANGASHELF_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getenv("MANGASHELF_JWT_ISSUER", "mangashelf"),
		JWTDuration: time.Duration(getInt("MANGASHELF_JWT_TTL_HOURS", 24)) * time.Hour,
		AdminKey:    strings.TrimSpace(os.Getenv("MANGASHELF_ADMIN_KEY")),
	}
}

func LoadBookstoreConfig() BookstoreConfig {
	return BookstoreConfig{
		AppID:   strings.TrimSpace(os.Getenv("RAKUTEN_APP_ID")),
		BaseURL: getenv("MANGASHELF_BOOKSTORE_URL", ""),
	}
}

func LoadCompletionConfig() CompletionConfig {
	return CompletionConfig{
		APIKey:  strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		BaseURL: getenv("MANGASHELF_COMPLETION_URL", ""),
		Model:   getenv("MANGASHELF_COMPLETION_MODEL", ""),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(getenv(key, ""), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil || d < 0 {
		return def
	}
	return d
}
