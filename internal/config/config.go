package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	Mailer  MailerConfig
	Rewrite RewriteConfig

	SeedAdminLogin    string
	SeedAdminEmail    string
	SeedAdminPassword string
}

// MailerConfig selects and configures the outbound mail provider.
type MailerConfig struct {
	Provider string // graph, smtp or noop
	From     string

	GraphBaseURL      string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphSender       string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// RewriteConfig configures the text rewrite helper.
type RewriteConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

const (
	ProviderGraph = "graph"
	ProviderSMTP  = "smtp"
	ProviderNoop  = "noop"
)

// Load loads configuration from environment variables and .env file.
func Load(log *zap.Logger) Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "lettermill"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "lettermill"),
		DBUser:            getenv("DATABASE_USER", "lettermill"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt(log, "DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt(log, "DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt(log, "DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt(log, "DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Mailer: MailerConfig{
			Provider:          normalizeProvider(getenv("MAILER_PROVIDER", ProviderNoop)),
			From:              strings.TrimSpace(getenv("MAILER_FROM", "")),
			GraphBaseURL:      getenv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
			GraphTenantID:     strings.TrimSpace(getenv("GRAPH_TENANT_ID", "")),
			GraphClientID:     strings.TrimSpace(getenv("GRAPH_CLIENT_ID", "")),
			GraphClientSecret: strings.TrimSpace(getenv("GRAPH_CLIENT_SECRET", "")),
			GraphSender:       strings.TrimSpace(getenv("GRAPH_SENDER", "")),
			SMTPHost:          getenv("SMTP_HOST", "localhost"),
			SMTPPort:          getenvInt(log, "SMTP_PORT", 587),
			SMTPUsername:      getenv("SMTP_USERNAME", ""),
			SMTPPassword:      getenv("SMTP_PASSWORD", ""),
		},
		Rewrite: RewriteConfig{
			Endpoint: strings.TrimSpace(getenv("REWRITE_ENDPOINT", "https://api.groq.com/openai/v1")),
			APIKey:   strings.TrimSpace(getenv("REWRITE_API_KEY", "")),
			Model:    getenv("REWRITE_MODEL", "llama-3.3-70b-versatile"),
		},

		SeedAdminLogin:    getenv("SEED_ADMIN_LOGIN", "admin"),
		SeedAdminEmail:    getenv("SEED_ADMIN_EMAIL", "admin@localhost"),
		SeedAdminPassword: getenv("SEED_ADMIN_PASSWORD", ""),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProviderGraph:
		return ProviderGraph
	case ProviderSMTP:
		return ProviderSMTP
	default:
		return ProviderNoop
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(log *zap.Logger, key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Warn("invalid integer in environment, using default",
			zap.String("key", key),
			zap.String("value", value),
			zap.Int("default", def),
		)
		return def
	}
	return parsed
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewMergeConfigHolder),
)
