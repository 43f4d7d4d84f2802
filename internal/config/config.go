package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Session  SessionConfig
	TOTP     TOTPConfig
	Redis    RedisConfig
	Limiter  LimiterConfig
	OIDC     OIDCConfig
	Machine  MachineConfig
}

type ServerConfig struct {
	Addr               string
	GinMode            string
	CORSAllowedOrigins []string
	// Storage selects the backing store: "postgres" or "memory".
	Storage string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// SessionConfig keeps durations as strings; the session manager parses them.
type SessionConfig struct {
	TTL        string
	RefreshTTL string
}

type TOTPConfig struct {
	Issuer string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LimiterConfig struct {
	MaxAttempts int
	Window      string
}

type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// MachineConfig lists the API clients allowed to open machine sessions.
type MachineConfig struct {
	AssertionSecret string
	Clients         map[string][]string
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	return Config{
		Server: ServerConfig{
			Addr:               getenv("SERVER_ADDR", ":8000"),
			GinMode:            getenv("GIN_MODE", "release"),
			CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			Storage:            getenv("STORAGE", "postgres"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Session: SessionConfig{
			TTL:        getenv("SESSION_TTL", "1h"),
			RefreshTTL: getenv("SESSION_REFRESH_TTL", "90m"),
		},
		TOTP: TOTPConfig{
			Issuer: getenv("TOTP_ISSUER", "MyPlayPlanet"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Limiter: LimiterConfig{
			MaxAttempts: getInt("LOGIN_MAX_ATTEMPTS", 10),
			Window:      getenv("LOGIN_ATTEMPT_WINDOW", "15m"),
		},
		OIDC: OIDCConfig{
			IssuerURL:    os.Getenv("OIDC_ISSUER_URL"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		},
		Machine: MachineConfig{
			AssertionSecret: os.Getenv("MACHINE_ASSERTION_SECRET"),
			Clients:         ParseMachineClients(os.Getenv("MACHINE_CLIENTS")),
		},
	}
}

// ParseMachineClients reads "importer=news.create;news.update,cron=" into a
// client id -> permission names map. Permission names are validated later.
func ParseMachineClients(value string) map[string][]string {
	clients := make(map[string][]string)
	for _, entry := range splitList(value) {
		id, perms, _ := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		list := []string{}
		for _, p := range strings.Split(perms, ";") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		clients[id] = list
	}
	return clients
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int, using default", "key", key, "error", err)
		return fallback
	}
	return i
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
