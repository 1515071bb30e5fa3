package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by must(); the rest
// fall back to defaults that are good enough for a local run.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	HTTPPort string // port for health, metrics, webhook and report downloads

	BotToken      string // Telegram bot token
	BotMode       string // "polling" or "webhook"
	WebhookURL    string // public URL Telegram posts updates to (webhook mode)
	WebhookSecret string // value expected in X-Telegram-Bot-Api-Secret-Token
	PublicBaseURL string // base URL used to build report download links (optional)

	DBDriver string // "mysql" or "sqlite3"
	DBUser   string // database username (mysql)
	DBPass   string // database password (mysql, optional)
	DBHost   string // database host address (mysql)
	DBPort   string // database port number (mysql)
	DBName   string // database name (mysql)
	DBPath   string // database file (sqlite3)

	SuperAdminID     int64         // chat id of the single super admin
	OrgLimitPerOwner int           // organization-creation quota granted to a new owner
	SessionIdleTTL   time.Duration // idle conversations older than this are discarded
	PendingTTL       time.Duration // lifetime of a pending payment approval (0 = until consumed)
	BroadcastDelay   time.Duration // pause between broadcast messages
	Workers          int           // dispatch workers; one chat always maps to the same worker
	QueueSize        int           // buffered interactions per worker

	BcryptCost    int           // bcrypt cost for password hashing
	JWTSecret     string        // secret used to sign report download links
	ReportLinkTTL time.Duration // lifetime of a report download link

	LogLevel  string // zap level (debug, info, warn, error)
	LogFormat string // "json" or "console"
}

// LoadEnvFile reads a dotenv file into the process environment.  A missing
// file is not an error: production deployments inject variables directly.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required variables cause the program to exit with a
// fatal log message.
func Load() Config {
	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		HTTPPort: envStr("HTTP_PORT", "8080"),

		BotToken:      must("TELEGRAM_TOKEN"),
		BotMode:       strings.ToLower(envStr("BOT_MODE", "polling")),
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),

		DBDriver: strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBPath:   envStr("DB_PATH", "ticketbot.db"),

		SuperAdminID:     envInt64("ADMIN_ID", 0),
		OrgLimitPerOwner: envInt("ORG_LIMIT_PER_OWNER", 2),
		SessionIdleTTL:   envDur("SESSION_IDLE_TTL", 30*time.Minute),
		PendingTTL:       envDur("PENDING_TTL", 0),
		BroadcastDelay:   envDur("BROADCAST_DELAY", 50*time.Millisecond),
		Workers:          envInt("BOT_WORKERS", 8),
		QueueSize:        envInt("BOT_QUEUE_SIZE", 256),

		BcryptCost:    envInt("BCRYPT_COST", 10),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ReportLinkTTL: envDur("REPORT_LINK_TTL", 15*time.Minute),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
	}
	if cfg.DBDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	}
	if cfg.BotMode == "webhook" && cfg.WebhookURL == "" {
		log.Fatalf("WEBHOOK_URL is required when BOT_MODE=webhook")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.OrgLimitPerOwner < 1 {
		cfg.OrgLimitPerOwner = 1
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envInt64(k string, d int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", k, v)
	}
	return n
}
