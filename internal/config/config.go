package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver string // mysql, postgres or memory
	DBDSN    string

	RedisAddr     string // empty disables Redis
	RedisPassword string
	RedisDB       int

	JWTSecret []byte

	IdentityBaseURL     string
	IdentitySecretKey   string
	IdentityBatch       bool
	IdentityConcurrency int
	IdentityRPS         float64
	IdentityFixtures    string
	ProfileCacheTTL     time.Duration

	PostRateLimit  int
	PostRateWindow time.Duration

	PageCacheSize  int
	PageRevalidate time.Duration

	CORSOrigins []string

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load بارگذاری تنظیمات از .env و متغیرهای محیطی
func Load(files ...string) (*Config, error) {
	// a missing .env is fine, the process environment is used as is
	_ = godotenv.Load(files...)

	r := &reader{}
	cfg := &Config{
		Port:    r.str("APP_PORT", "8080"),
		GinMode: r.str("GIN_MODE", "release"),

		DBDriver: strings.ToLower(r.str("DB_DRIVER", "mysql")),
		DBDSN:    r.str("DB_DSN", ""),

		RedisAddr:     r.str("REDIS_ADDR", ""),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		RedisDB:       r.num("REDIS_DB", 0),

		JWTSecret: []byte(r.str("JWT_SECRET", "")),

		IdentityBaseURL:     r.str("IDENTITY_BASE_URL", ""),
		IdentitySecretKey:   r.str("IDENTITY_SECRET_KEY", ""),
		IdentityBatch:       r.flag("IDENTITY_BATCH", true),
		IdentityConcurrency: r.num("IDENTITY_CONCURRENCY", 4),
		IdentityRPS:         r.float("IDENTITY_RPS", 10),
		IdentityFixtures:    r.str("IDENTITY_FIXTURES", ""),
		ProfileCacheTTL:     r.duration("PROFILE_CACHE_TTL", 5*time.Minute),

		PostRateLimit:  r.num("POST_RATE_LIMIT", 3),
		PostRateWindow: r.duration("POST_RATE_WINDOW", time.Minute),

		PageCacheSize:  r.num("PAGE_CACHE_SIZE", 512),
		PageRevalidate: r.duration("PAGE_REVALIDATE", 60*time.Second),

		CORSOrigins: r.list("CORS_ORIGINS", []string{"*"}),

		LogLevel:      r.str("LOG_LEVEL", "info"),
		LogPath:       r.str("LOG_PATH", ""),
		LogMaxSizeMB:  r.num("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: r.num("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: r.num("LOG_MAX_AGE_DAYS", 7),
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) == 0 {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	switch c.DBDriver {
	case "mysql", "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is not set for DB_DRIVER=%s", c.DBDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("DB_DRIVER %q is not one of mysql, postgres, memory", c.DBDriver)
	}
	if c.IdentityBaseURL == "" && c.IdentityFixtures == "" {
		return fmt.Errorf("one of IDENTITY_BASE_URL or IDENTITY_FIXTURES must be set")
	}
	if c.PostRateLimit <= 0 {
		return fmt.Errorf("POST_RATE_LIMIT must be positive, got %d", c.PostRateLimit)
	}
	if c.PostRateWindow <= 0 {
		return fmt.Errorf("POST_RATE_WINDOW must be positive, got %s", c.PostRateWindow)
	}
	if c.IdentityConcurrency <= 0 {
		return fmt.Errorf("IDENTITY_CONCURRENCY must be positive, got %d", c.IdentityConcurrency)
	}
	return nil
}

// reader keeps the first parse error so Load can report it once.
type reader struct{ err error }

func (r *reader) fail(key, val string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s=%q: %w", key, val, err)
	}
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) num(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) flag(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *reader) list(key string, def []string) []string {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
