package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	SwaggerEnabled     bool
	LogLevel           logging.Level
	LogFormat          logging.Format

	StorageDriver           string
	DBURL                   string
	DBDisablePreparedBinary bool
	DBMaxOpenConns          int

	AuctionDuration             time.Duration
	AuctionConflictRetries      int
	AuctionRetryInitialInterval time.Duration
	AuctionLockTimeout          time.Duration

	ExpirySweepEnabled  bool
	ExpirySweepInterval time.Duration
	ExpirySweepWorkers  int

	CacheEnabled bool
	CacheTTL     time.Duration

	AccountBaseURL               string
	AccountIntrospectPath        string
	AccountAdminKey              string
	AccountTimeout               time.Duration
	AccountCircuitEnabled        bool
	AccountCircuitFailureCount   int
	AccountCircuitOpenTimeout    time.Duration
	AccountCircuitHalfOpenMaxReq int
	AccountTokenCacheTTL         time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	QStashEnabled       bool
	QStashBaseURL       string
	QStashToken         string
	QStashTargetBaseURL string
	QStashRetries       int
	QStashTimeout       time.Duration

	InternalJobToken    string
	BootstrapAdminID    string
	BootstrapAdminEmail string

	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("SERVICE_NAME", "fantasy-auction-api"),
		ServiceVersion:     getEnv("SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DBURL:              strings.TrimSpace(getEnv("DB_URL", "")),

		AccountBaseURL:        strings.TrimSpace(getEnv("ACCOUNT_BASE_URL", "http://localhost:8081")),
		AccountIntrospectPath: strings.TrimSpace(getEnv("ACCOUNT_INTROSPECT_PATH", "/v1/auth/introspect")),
		AccountAdminKey:       strings.TrimSpace(getEnv("ACCOUNT_ADMIN_KEY", "")),

		RedisAddr:     strings.TrimSpace(getEnv("REDIS_ADDR", "localhost:6379")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisChannel:  strings.TrimSpace(getEnv("REDIS_CHANNEL", "fantasy-auction.events")),

		QStashBaseURL:       strings.TrimSpace(getEnv("QSTASH_BASE_URL", "https://qstash.upstash.io")),
		QStashToken:         strings.TrimSpace(getEnv("QSTASH_TOKEN", "")),
		QStashTargetBaseURL: strings.TrimSpace(getEnv("QSTASH_TARGET_BASE_URL", "")),

		InternalJobToken:    strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		BootstrapAdminID:    strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_ID", "")),
		BootstrapAdminEmail: strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_EMAIL", "")),

		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	formatDefault := string(logging.FormatJSON)
	if appEnv == EnvDev {
		formatDefault = string(logging.FormatConsole)
	}
	cfg.LogFormat = logging.ParseFormat(getEnv("LOG_FORMAT", formatDefault))

	swaggerDefault := "true"
	if appEnv == EnvProd {
		swaggerDefault = "false"
	}
	p := parser{}
	cfg.SwaggerEnabled = p.bool("SWAGGER_ENABLED", swaggerDefault)
	cfg.ReadTimeout = p.positiveDuration("HTTP_READ_TIMEOUT", "10s")
	cfg.WriteTimeout = p.positiveDuration("HTTP_WRITE_TIMEOUT", "15s")

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", StorageMemory)))
	cfg.DBDisablePreparedBinary = p.bool("DB_DISABLE_PREPARED_BINARY_RESULT", "true")
	cfg.DBMaxOpenConns = p.intAtLeast("DB_MAX_OPEN_CONNS", 10, 1)

	cfg.AuctionDuration = p.positiveDuration("AUCTION_DURATION", "24h")
	cfg.AuctionConflictRetries = p.intAtLeast("AUCTION_CONFLICT_RETRIES", 3, 1)
	cfg.AuctionRetryInitialInterval = p.positiveDuration("AUCTION_RETRY_INITIAL_INTERVAL", "5ms")
	cfg.AuctionLockTimeout = p.positiveDuration("AUCTION_LOCK_TIMEOUT", "5s")

	cfg.ExpirySweepEnabled = p.bool("EXPIRY_SWEEP_ENABLED", "true")
	cfg.ExpirySweepInterval = p.positiveDuration("EXPIRY_SWEEP_INTERVAL", "30s")
	cfg.ExpirySweepWorkers = p.intAtLeast("EXPIRY_SWEEP_WORKERS", 4, 1)

	cfg.CacheEnabled = p.bool("CACHE_ENABLED", "true")
	cfg.CacheTTL = p.positiveDuration("CACHE_TTL", "60s")

	cfg.AccountTimeout = p.positiveDuration("ACCOUNT_TIMEOUT", "3s")
	cfg.AccountCircuitEnabled = p.bool("ACCOUNT_CIRCUIT_ENABLED", "true")
	cfg.AccountCircuitFailureCount = p.intAtLeast("ACCOUNT_CIRCUIT_FAILURE_COUNT", 5, 1)
	cfg.AccountCircuitOpenTimeout = p.positiveDuration("ACCOUNT_CIRCUIT_OPEN_TIMEOUT", "15s")
	cfg.AccountCircuitHalfOpenMaxReq = p.intAtLeast("ACCOUNT_CIRCUIT_HALF_OPEN_MAX_REQ", 2, 1)
	cfg.AccountTokenCacheTTL = p.positiveDuration("ACCOUNT_TOKEN_CACHE_TTL", "30s")

	cfg.RedisEnabled = p.bool("REDIS_ENABLED", "false")
	cfg.RedisDB = p.intAtLeast("REDIS_DB", 0, 0)

	cfg.QStashEnabled = p.bool("QSTASH_ENABLED", "false")
	cfg.QStashRetries = p.intAtLeast("QSTASH_RETRIES", 3, 0)
	cfg.QStashTimeout = p.positiveDuration("QSTASH_TIMEOUT", "10s")

	cfg.PprofEnabled = p.bool("PPROF_ENABLED", "false")
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))

	cfg.UptraceEnabled = p.bool("UPTRACE_ENABLED", "false")
	cfg.UptraceLogsEnabled = p.bool("UPTRACE_LOGS_ENABLED", "true")
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}

	cfg.PyroscopeEnabled = p.bool("PYROSCOPE_ENABLED", "false")
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeUploadRate = p.positiveDuration("PYROSCOPE_UPLOAD_RATE", "15s")

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.DBURL == "" {
			return fmt.Errorf("DB_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: valid values are %s, %s", c.StorageDriver, StorageMemory, StoragePostgres)
	}
	if c.RedisEnabled {
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
		}
		if c.RedisChannel == "" {
			return fmt.Errorf("REDIS_CHANNEL cannot be empty when REDIS_ENABLED=true")
		}
	}
	if c.QStashEnabled {
		if c.QStashToken == "" || c.QStashTargetBaseURL == "" {
			return fmt.Errorf("QSTASH_TOKEN and QSTASH_TARGET_BASE_URL are required when QSTASH_ENABLED=true")
		}
		if c.InternalJobToken == "" {
			return fmt.Errorf("INTERNAL_JOB_TOKEN is required when QSTASH_ENABLED=true")
		}
	}
	if c.BootstrapAdminEmail != "" && c.BootstrapAdminID == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_ID is required when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	if c.PprofEnabled && c.PprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}
	if c.UptraceEnabled && c.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if c.PyroscopeEnabled {
		if c.PyroscopeServerAddress == "" {
			return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
		}
		if c.PyroscopeAppName == "" {
			return fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
		}
	}
	return nil
}

// parser keeps the first parse failure so Load can read every variable in
// one pass.
type parser struct {
	err error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) bool(key, fallback string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		p.fail(fmt.Errorf("parse %s: %w", key, err))
	}
	return v
}

func (p *parser) positiveDuration(key, fallback string) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		p.fail(fmt.Errorf("parse %s: %w", key, err))
		return 0
	}
	if v <= 0 {
		p.fail(fmt.Errorf("%s must be > 0", key))
	}
	return v
}

func (p *parser) intAtLeast(key string, fallback, minimum int) int {
	v, err := getEnvAsInt(key, fallback)
	if err != nil {
		p.fail(fmt.Errorf("parse %s: %w", key, err))
		return 0
	}
	if v < minimum {
		p.fail(fmt.Errorf("%s must be >= %d", key, minimum))
	}
	return v
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
