// Package config loads service settings from config.toml and LEDGER_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
	// MaskFields names log fields whose values are replaced before encoding
	MaskFields []string `mapstructure:"mask_fields"`
}

// DatabaseConfig selects and sizes the ledger store. Lifetimes are minutes.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite or memory
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
	MigrateOnStart  bool   `mapstructure:"migrate_on_start"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"` // ledger lock lease
}

type JWTConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	Secret                string        `mapstructure:"secret"`
	Issuer                string        `mapstructure:"issuer"`
	AccessTokenExpiration time.Duration `mapstructure:"access_token_expiration"`
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	CORSAllowOrigins  []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods  []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders  []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
}

// SchedulerConfig drives the alert sweep and reconciliation cron jobs
type SchedulerConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	AlertCronSchedule  string        `mapstructure:"alert_cron_schedule"`
	ReconcileSchedule  string        `mapstructure:"reconcile_cron_schedule"`
	MaxConcurrentJobs  int           `mapstructure:"max_concurrent_jobs"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	MetricsCollectTick time.Duration `mapstructure:"metrics_collect_interval"`
}

// AlertsConfig holds alert thresholds and routing
type AlertsConfig struct {
	OverdueArrearsDays          int             `mapstructure:"overdue_arrears_days"`
	UnmatchedDepositDays        int             `mapstructure:"unmatched_deposit_days"`
	LargeDisbursementThreshold  decimal.Decimal `mapstructure:"large_disbursement_threshold"`
	LargeDisbursementWindowDays int             `mapstructure:"large_disbursement_window_days"`
	Workers                     int             `mapstructure:"workers"`
	PageSize                    int             `mapstructure:"page_size"`
	FinanceRecipients           []string        `mapstructure:"finance_recipients"`
	ComplianceRecipients        []string        `mapstructure:"compliance_recipients"`
	DefaultRecipients           []string        `mapstructure:"default_recipients"`
}

type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	EventsTopic    string        `mapstructure:"events_topic"`
	AlertsTopic    string        `mapstructure:"alerts_topic"`
	PaymentsTopic  string        `mapstructure:"payments_topic"`
	ConsumerGroup  string        `mapstructure:"consumer_group"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// StorageConfig holds object storage settings for ledger documents
type StorageConfig struct {
	Type              string        `mapstructure:"type"` // s3 or memory
	Endpoint          string        `mapstructure:"endpoint"`
	Region            string        `mapstructure:"region"`
	Bucket            string        `mapstructure:"bucket"`
	AccessKey         string        `mapstructure:"access_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	UseSSL            bool          `mapstructure:"use_ssl"`
	UsePathStyle      bool          `mapstructure:"use_path_style"`
	PresignExpiration time.Duration `mapstructure:"presign_expiration"`
	CreateBucket      bool          `mapstructure:"create_bucket"` // create the bucket at startup when missing
	Encrypt           bool          `mapstructure:"encrypt"`       // request SSE-S3 on upload
}

type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP gRPC, host:port
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	LogsEnabled       bool    `mapstructure:"logs_enabled"`

	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`

	ProfilingEnabled  bool   `mapstructure:"profiling_enabled"`
	PyroscopeEndpoint string `mapstructure:"pyroscope_endpoint"`
}

// defaults lists every key. Keys must be known to viper before Unmarshal
// will consult the environment for them, so secrets are listed empty.
var defaults = map[string]any{
	"app.name": "ledger-service",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             "postgres",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "ledger",
	"database.sslmode":            "disable",
	"database.sqlite_path":        "ledger.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.migrate_on_start":   false,

	"redis.enabled":    false,
	"redis.host":       "localhost",
	"redis.port":       6379,
	"redis.password":   "",
	"redis.db":         0,
	"redis.key_prefix": "ledger:",
	"redis.lock_ttl":   10 * time.Second,

	"jwt.enabled":                 false,
	"jwt.secret":                  "",
	"jwt.issuer":                  "ledger-service",
	"jwt.access_token_expiration": 15 * time.Minute,

	"log.level":       "info",
	"log.format":      "console",
	"log.output":      "stdout",
	"log.mask_fields": []string{"payee_name", "payee_address", "client_name", "content"},

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.shutdown_timeout":    30 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       int64(10 << 20),
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	"http.cors_allow_origins":  []string{}, // cross-origin stays off until configured
	"http.cors_allow_methods":  []string{"GET", "POST", "DELETE", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "Authorization", "X-Request-ID", "X-User-ID"},
	"http.trusted_proxies":     []string{},

	"scheduler.enabled":                  false,
	"scheduler.alert_cron_schedule":      "0 8 * * *",
	"scheduler.reconcile_cron_schedule":  "30 6 * * *",
	"scheduler.max_concurrent_jobs":      1,
	"scheduler.job_timeout":              30 * time.Minute,
	"scheduler.retry_attempts":           3,
	"scheduler.retry_delay":              5 * time.Minute,
	"scheduler.metrics_collect_interval": 5 * time.Minute,

	"alerts.overdue_arrears_days":           30,
	"alerts.unmatched_deposit_days":         30,
	"alerts.large_disbursement_threshold":   "5000",
	"alerts.large_disbursement_window_days": 7,
	"alerts.workers":                        4,
	"alerts.page_size":                      200,
	"alerts.finance_recipients":             []string{"finance-team"},
	"alerts.compliance_recipients":          []string{"compliance-officer"},
	"alerts.default_recipients":             []string{},

	"kafka.enabled":         false,
	"kafka.brokers":         []string{"localhost:9092"},
	"kafka.events_topic":    "ledger.events",
	"kafka.alerts_topic":    "ledger.alerts",
	"kafka.payments_topic":  "assistance.payments",
	"kafka.consumer_group":  "ledger-service",
	"kafka.write_timeout":   10 * time.Second,
	"kafka.idempotency_ttl": 72 * time.Hour,

	"storage.type":               "memory",
	"storage.endpoint":           "",
	"storage.region":             "us-east-1",
	"storage.bucket":             "",
	"storage.access_key":         "",
	"storage.secret_key":         "",
	"storage.use_ssl":            false,
	"storage.use_path_style":     false,
	"storage.presign_expiration": 15 * time.Minute,
	"storage.create_bucket":      false,
	"storage.encrypt":            false,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "ledger-service",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.pyroscope_endpoint":      "http://localhost:4040",
}

// Load reads config.toml from . or /app when present, overlays LEDGER_*
// environment variables (LEDGER_DATABASE_PASSWORD sets database.password)
// and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		listHook,
		decimalHook,
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// listHook splits environment lists on commas or whitespace
func listHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeFor[[]string]() {
		return data, nil
	}
	return strings.FieldsFunc(data.(string), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}), nil
}

// decimalHook parses amounts from strings or numbers
func decimalHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeFor[decimal.Decimal]() {
		return data, nil
	}
	switch x := data.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		if x == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(x)
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	}
	return nil, fmt.Errorf("cannot read %s as an amount", from)
}

func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(slices.Contains([]string{"postgres", "sqlite", "memory"}, db.Driver),
		"database.driver must be one of postgres, sqlite, memory, got %q", db.Driver)
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	a := c.Alerts
	check(a.OverdueArrearsDays >= 0 && a.UnmatchedDepositDays >= 0 && a.LargeDisbursementWindowDays >= 0,
		"alert day windows cannot be negative")
	check(a.LargeDisbursementThreshold.IsPositive(), "alerts.large_disbursement_threshold must be positive")
	check(a.Workers >= 0, "alerts.workers cannot be negative")

	switch c.Storage.Type {
	case "memory":
	case "s3":
		check(c.Storage.Bucket != "", "storage.bucket is required for s3 storage")
	default:
		check(false, "storage.type must be s3 or memory, got %q", c.Storage.Type)
	}

	check(!c.JWT.Enabled || c.JWT.Secret != "", "jwt.secret is required when jwt is enabled")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)

	if c.App.Env == "production" {
		check(c.JWT.Enabled, "jwt.enabled must be true in production")
		check(len(c.JWT.Secret) >= 32, "jwt.secret must be at least 32 characters in production")
		check(db.Driver == "postgres", "database.driver must be postgres in production")
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"),
			"http.cors_allow_origins cannot be '*' in production (use specific origins)")
		// full SQL in traces carries client financial data
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}
	return errors.Join(errs...)
}

// DSN returns the postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
