package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds service configuration. Loaded once at process start and
// injected into constructors; nothing reads the environment after that.
type Config struct {
	DatabaseURL     string
	DBMaxConns      int
	ServerAddr      string
	APITokens       []string
	AuditSigningKey string
	GeometrySRID    int
	MigrationsDir   string
}

// Load reads configuration from the environment. A local .env file is picked
// up when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "fincas_geom")
		pass := getenv("POSTGRES_PASSWORD", "fincas_geom_pass")
		db := getenv("POSTGRES_DB", "fincas_geom")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	tokens := splitCSV(os.Getenv("API_TOKENS"))
	if len(tokens) == 0 {
		return nil, fmt.Errorf("API_TOKENS must contain at least one token")
	}

	return &Config{
		DatabaseURL:     dsn,
		DBMaxConns:      parseInt(getenv("DB_MAX_CONNS", "10"), 10),
		ServerAddr:      getenv("SERVER_ADDR", "0.0.0.0:8080"),
		APITokens:       tokens,
		AuditSigningKey: os.Getenv("AUDIT_SIGNING_KEY"),
		GeometrySRID:    parseInt(getenv("GEOMETRY_SRID", "4326"), 4326),
		MigrationsDir:   getenv("MIGRATIONS_DIR", "internal/migrations"),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseInt(val string, def int) int {
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
