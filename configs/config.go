package config

import (
	"os"
	"strconv"
	"time"
)

type Browser struct {
	ExecPath string
	Headless bool
}

type Config struct {
	PostgresURI   string
	OpenAIAPIKey  string
	GoogleAPIKey  string
	SecretKey     string
	CookiesDir    string
	DownloadsDir  string
	SessionTTL    time.Duration
	Browser       Browser
	FrontendURL   string
	ServerAddress string
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		GoogleAPIKey:  getEnv("GOOGLE_API_KEY", ""),
		SecretKey:     getEnv("SECRET_KEY", ""),
		CookiesDir:    getEnv("COOKIES_DIR", "cookies"),
		DownloadsDir:  getEnv("DOWNLOADS_DIR", "downloads"),
		SessionTTL:    getDuration("LOGIN_SESSION_TTL", 15*time.Minute),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:5173"),
		ServerAddress: getEnv("SERVER_ADDRESS", ":3000"),
		Browser: Browser{
			ExecPath: getEnv("CHROMIUM_EXEC_PATH", ""),
			Headless: getBool("BROWSER_HEADLESS", true),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
