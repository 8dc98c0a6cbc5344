package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the relay server configuration, read from the environment.
type Config struct {
	Port               string
	DatabaseURL        string
	AllowOrigins       []string
	AutoCallIntervalMs int
	MaxPlayersPerRoom  int
}

// Load reads .env if present, then the environment. Nothing here is
// fatal: the server can run without a database and with defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getenv("PORT", "4000"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AutoCallIntervalMs: getenvInt("AUTOCALL_INTERVAL_MS", 5000),
		MaxPlayersPerRoom:  getenvInt("MAX_PLAYERS_PER_ROOM", 6),
	}

	origins := getenv("ALLOW_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
