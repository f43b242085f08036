package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	MongoDBURI    string
	DatabaseName  string
	GitHubToken   string
	DefaultRepo   string // optional "owner/repo" fallback when a chat has no /link
	EncryptionKey string
	Port          string
	PollInterval  time.Duration
	LogLevel      string
}

func Load() *Config {
	_ = godotenv.Load()

	required := []string{
		"TELEGRAM_TOKEN",
		"MONGODB_URI",
		"GITHUB_TOKEN",
		"ENCRYPTION_KEY",
	}

	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		log.Fatalf("Missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		MongoDBURI:    os.Getenv("MONGODB_URI"),
		DatabaseName:  getEnv("DATABASE_NAME", "issue_bridge"),
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		DefaultRepo:   os.Getenv("GITHUB_REPO"),
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		Port:          getEnv("PORT", "8080"),
		PollInterval:  getDuration("POLL_INTERVAL", 20*time.Second),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Fatalf("Invalid duration for %s: %q", key, value)
	}
	return d
}
