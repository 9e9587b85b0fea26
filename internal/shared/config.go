package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	RequestTimeout time.Duration

	StoreDriver string // mysql | sqlite | memory
	MySQLDSN    string
	SQLitePath  string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	EventBacklog int

	UploadDir     string
	PublicBaseURL string
	ImageFetchRPS int

	// hosts, besides PublicBaseURL's, that banner images may be fetched from
	ImageAllowedHosts []string

	DirectoryBase string
	DirectoryKey  string
	ImportWorkers int
}

// Load reads .env (when present) and then the process environment, which wins.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env could not be parsed")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:            env("APP_ENV", "prod"),
		LogLevel:          env("LOG_LEVEL", "info"),
		HTTPAddr:          env("HTTP_ADDR", ":8080"),
		MetricsAddr:       env("METRICS_ADDR", ":9100"),
		RequestTimeout:    time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		StoreDriver:       strings.ToLower(env("STORE_DRIVER", "mysql")),
		MySQLDSN:          env("MYSQL_DSN", "root:root@tcp(localhost:3306)/mealsfly?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		SQLitePath:        env("SQLITE_PATH", "mealsfly.db"),
		RedisAddr:         env("REDIS_ADDR", ""),
		RedisPass:         env("REDIS_PASSWORD", ""),
		RedisDB:           atoi("REDIS_DB", 0),
		CacheTTL:          time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		JWTSecret:         env("JWT_SECRET", ""),
		JWTTTL:            time.Duration(atoi("JWT_TTL_HOURS", 24)) * time.Hour,
		KafkaBrokers:      splitList(env("KAFKA_BROKERS", "")),
		KafkaTopic:        env("KAFKA_TOPIC", "mealsfly.task-events"),
		EventBacklog:      atoi("EVENT_BACKLOG", 1024),
		UploadDir:         env("UPLOAD_DIR", "uploads"),
		PublicBaseURL:     strings.TrimRight(env("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		ImageFetchRPS:     atoi("IMAGE_FETCH_RPS", 10),
		ImageAllowedHosts: splitList(strings.ToLower(env("IMAGE_ALLOWED_HOSTS", ""))),
		DirectoryBase:     env("DIRECTORY_BASE_URL", ""),
		DirectoryKey:      env("DIRECTORY_API_KEY", ""),
		ImportWorkers:     atoi("IMPORT_WORKERS", 8),
	}
	if c.JWTSecret == "" && c.IsDev() {
		c.JWTSecret = "dev-only-secret"
		log.Warn().Msg("JWT_SECRET is empty, using an insecure dev secret")
	}
	return c
}

func (c Config) IsDev() bool { return c.AppEnv == "dev" || c.AppEnv == "development" }

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
