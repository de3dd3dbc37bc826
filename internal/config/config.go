package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort        string
	DbPath         string
	TrustedProxies []string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleTokenDir     string

	ReasonerURL  string
	RoutineCron  string
	MessagesPath string
	Translations string
}

func LoadConfig() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		AppPort:            getEnv("APP_PORT", "8080"),
		DbPath:             getEnv("SQLITE_PATH", "data/whatstasker.db"),
		TrustedProxies:     parseTrustedProxies(os.Getenv("TRUSTED_PROXIES")),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		GoogleTokenDir:     getEnv("GOOGLE_TOKEN_DIR", "data/tokens"),
		ReasonerURL:        os.Getenv("REASONER_URL"),
		RoutineCron:        getEnv("ROUTINE_CRON", "*/15 * * * *"),
		MessagesPath:       getEnv("MESSAGES_PATH", "config/messages.yaml"),
		Translations:       getEnv("TRANSLATIONS_DIR", "pkg/translator/translation"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseTrustedProxies(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	proxies := make([]string, 0, len(parts))
	for _, part := range parts {
		proxy := strings.TrimSpace(part)
		if proxy == "" {
			continue
		}
		proxies = append(proxies, proxy)
	}

	if len(proxies) == 0 {
		return nil
	}

	return proxies
}
