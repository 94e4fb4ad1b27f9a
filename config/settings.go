package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// PosAPISettings configures the HTTP client for the retail backend.
//
// Set via env:
// - POS_API_BASE_URL (default http://localhost:8080)
// - POS_API_KEY
// - POS_API_KEY_HEADER (default X-API-Key)
// - POS_API_RATE_LIMIT_PER_SEC (default 20)
// - POS_API_TIMEOUT_SECONDS (default 15)
// - POS_PRINTER_NAME (empty uses the backend's default printer)
type PosAPISettings struct {
	BaseURL       string
	APIKey        string
	APIKeyHeader  string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	PrinterName   string
}

func PosAPI() PosAPISettings {
	rate := float64(intFromEnv("POS_API_RATE_LIMIT_PER_SEC", 20))
	if rate <= 0 {
		rate = 20
	}
	return PosAPISettings{
		BaseURL:       strings.TrimRight(envString("POS_API_BASE_URL", "http://localhost:8080"), "/"),
		APIKey:        strings.TrimSpace(os.Getenv("POS_API_KEY")),
		APIKeyHeader:  envString("POS_API_KEY_HEADER", "X-API-Key"),
		RatePerSecond: rate,
		Burst:         intFromEnv("POS_API_RATE_BURST", 5),
		Timeout:       time.Duration(intFromEnv("POS_API_TIMEOUT_SECONDS", 15)) * time.Second,
		PrinterName:   strings.TrimSpace(os.Getenv("POS_PRINTER_NAME")),
	}
}

// PosLocale is the language notices are rendered in. POS_LOCALE=en switches
// to English; anything unparseable stays Indonesian.
func PosLocale() language.Tag {
	raw := strings.TrimSpace(os.Getenv("POS_LOCALE"))
	if raw == "" {
		return language.Indonesian
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.Indonesian
	}
	return tag
}

func RefdataCacheTTL() time.Duration {
	return time.Duration(intFromEnv("REFDATA_CACHE_TTL_MINUTES", 5)) * time.Minute
}

// SettleEventsEnabled turns on publishing of settled transactions.
//
// Set via env:
// - SETTLE_EVENTS_ENABLED=true
// - SETTLE_TOPIC (default pos-transaction-settled)
// - SETTLE_CREATE_TOPIC=true to create the topic on startup
func SettleEventsEnabled() bool {
	return envBool("SETTLE_EVENTS_ENABLED", false)
}

func SettleTopic() string {
	return envString("SETTLE_TOPIC", "pos-transaction-settled")
}

func SettleCreateTopic() bool {
	return envBool("SETTLE_CREATE_TOPIC", false)
}

// OfflineBufferEnabled stores commits in MySQL when the backend is down and
// replays them later.
func OfflineBufferEnabled() bool {
	return envBool("OFFLINE_BUFFER_ENABLED", false)
}

func APISecret() string {
	return os.Getenv("API_SECRET")
}

func TokenLifespan() time.Duration {
	return time.Duration(intFromEnv("TOKEN_HOUR_LIFESPAN", 12)) * time.Hour
}

func ServerPort() string {
	return envString("PORT", "8090")
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

func CheckoutLockTTL() time.Duration {
	return time.Duration(intFromEnv("CHECKOUT_LOCK_TTL_SECONDS", 60)) * time.Second
}

// SessionIdleTimeout is how long an untouched register session is kept in
// memory.
func SessionIdleTimeout() time.Duration {
	return time.Duration(intFromEnv("SESSION_IDLE_MINUTES", 240)) * time.Minute
}

// ConnectTimeout bounds the startup connection attempts to Redis and MySQL.
func ConnectTimeout() time.Duration {
	return time.Duration(intFromEnv("CONNECT_TIMEOUT_SECONDS", 20)) * time.Second
}

func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS", false)
}

func CorsAllowedOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
