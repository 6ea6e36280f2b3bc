package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	GinMode   string
	LogFormat string

	DBDriver    string // sqlite, mysql or postgres
	DBHost      string
	DBPort      string
	DBUser      string
	DBPass      string
	DBName      string
	DatabaseURL string
	SQLitePath  string
	DBSeed      bool

	JWTSecret  string
	CORSOrigin string

	ReservationLimitEnv int // exported before start, 0 when unset
	ReservationEnvFile  string
	LockTimeoutSeconds  int

	RateLimitRequestsPerMinute int
	RateLimitWindowMinutes     int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string
}

// Load reads the .env file when present and then the process environment.
func Load() Config {
	limitEnv := exportedLimit()
	_ = godotenv.Load()

	return Config{
		Port:      getenv("PORT", "8080"),
		GinMode:   os.Getenv("GIN_MODE"),
		LogFormat: getenv("LOG_FORMAT", "text"),

		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBHost:      getenv("DB_HOST", "127.0.0.1"),
		DBPort:      getenv("DB_PORT", "3306"),
		DBUser:      getenv("DB_USER", "root"),
		DBPass:      os.Getenv("DB_PASS"),
		DBName:      getenv("DB_NAME", "table_reservations"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getenv("SQLITE_PATH", "reservations.db"),
		DBSeed:      getbool("DB_SEED", false),

		JWTSecret:  getenv("JWT_SECRET", "change-me-in-prod"),
		CORSOrigin: getenv("CORS_ALLOWED_ORIGIN", "*"),

		ReservationLimitEnv: limitEnv,
		ReservationEnvFile:  getenv("RESERVATION_ENV_FILE", ".env"),
		LockTimeoutSeconds:  getint("LOCK_TIMEOUT_SECONDS", 5),

		RateLimitRequestsPerMinute: getint("RATE_LIMIT_REQUESTS_PER_MINUTE", 100),
		RateLimitWindowMinutes:     getint("RATE_LIMIT_WINDOW_MINUTES", 1),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getbool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
