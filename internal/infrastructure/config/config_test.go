package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ledger-service", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "ledger", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
		assert.Equal(t, "0 8 * * *", cfg.Scheduler.AlertCronSchedule)
		assert.Equal(t, 30, cfg.Alerts.OverdueArrearsDays)
		assert.Equal(t, 30, cfg.Alerts.UnmatchedDepositDays)
		assert.True(t, decimal.NewFromInt(5000).Equal(cfg.Alerts.LargeDisbursementThreshold))
		assert.Equal(t, 7, cfg.Alerts.LargeDisbursementWindowDays)
		assert.Equal(t, 4, cfg.Alerts.Workers)
		assert.Equal(t, "ledger.alerts", cfg.Kafka.AlertsTopic)
		assert.Equal(t, "assistance.payments", cfg.Kafka.PaymentsTopic)
		assert.Equal(t, "memory", cfg.Storage.Type)
	})

	t.Run("loads values from environment variables with LEDGER prefix", func(t *testing.T) {
		t.Setenv("LEDGER_APP_NAME", "test-app")
		t.Setenv("LEDGER_APP_PORT", "9000")
		t.Setenv("LEDGER_DATABASE_DRIVER", "sqlite")
		t.Setenv("LEDGER_DATABASE_SQLITE_PATH", "/tmp/ledger.db")
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("LEDGER_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("LEDGER_ALERTS_OVERDUE_ARREARS_DAYS", "45")
		t.Setenv("LEDGER_ALERTS_LARGE_DISBURSEMENT_THRESHOLD", "7500.50")
		t.Setenv("LEDGER_KAFKA_BROKERS", "kafka-1:9092 kafka-2:9092")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "/tmp/ledger.db", cfg.Database.SQLitePath)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 45, cfg.Alerts.OverdueArrearsDays)
		assert.Equal(t, "7500.5", cfg.Alerts.LargeDisbursementThreshold.String())
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	})

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "max idle exceeds max open",
			env:     map[string]string{"LEDGER_DATABASE_MAX_OPEN_CONNS": "10", "LEDGER_DATABASE_MAX_IDLE_CONNS": "20"},
			wantErr: "cannot exceed",
		},
		{
			name:    "negative max idle",
			env:     map[string]string{"LEDGER_DATABASE_MAX_IDLE_CONNS": "-1"},
			wantErr: "max_idle_conns cannot be negative",
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"LEDGER_DATABASE_DRIVER": "mysql"},
			wantErr: "database.driver",
		},
		{
			name:    "malformed threshold",
			env:     map[string]string{"LEDGER_ALERTS_LARGE_DISBURSEMENT_THRESHOLD": "lots"},
			wantErr: "large_disbursement_threshold",
		},
		{
			name:    "negative threshold",
			env:     map[string]string{"LEDGER_ALERTS_LARGE_DISBURSEMENT_THRESHOLD": "-5"},
			wantErr: "must be positive",
		},
		{
			name:    "s3 without bucket",
			env:     map[string]string{"LEDGER_STORAGE_TYPE": "s3"},
			wantErr: "storage.bucket",
		},
		{
			name:    "jwt enabled without secret",
			env:     map[string]string{"LEDGER_JWT_ENABLED": "true"},
			wantErr: "jwt.secret is required",
		},
		{
			name:    "sampling ratio out of range",
			env:     map[string]string{"LEDGER_TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "sampling_ratio",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("LEDGER_APP_ENV", "production")
		t.Setenv("LEDGER_JWT_ENABLED", "true")
		t.Setenv("LEDGER_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("LEDGER_DATABASE_PASSWORD", "secure-password")
		t.Setenv("LEDGER_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"requires jwt", map[string]string{"LEDGER_JWT_ENABLED": "false"}, "jwt.enabled must be true"},
		{"short secret", map[string]string{"LEDGER_JWT_SECRET": "short-secret"}, "at least 32 characters"},
		{"sqlite driver", map[string]string{"LEDGER_DATABASE_DRIVER": "sqlite"}, "must be postgres in production"},
		{"ssl disabled", map[string]string{"LEDGER_DATABASE_SSLMODE": "disable"}, "cannot be 'disable'"},
		{"wildcard cors", map[string]string{"LEDGER_HTTP_CORS_ALLOW_ORIGINS": "*"}, "cors_allow_origins"},
		{"full sql in traces", map[string]string{"LEDGER_TELEMETRY_DB_LOG_FULL_SQL": "true"}, "db_log_full_sql"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setValidProductionBase(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("LEDGER_DATABASE_DRIVER", "mysql")
	t.Setenv("LEDGER_STORAGE_TYPE", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "storage.bucket")
}

func TestLoad_Durations(t *testing.T) {
	t.Setenv("LEDGER_REDIS_LOCK_TTL", "45s")
	t.Setenv("LEDGER_STORAGE_CREATE_BUCKET", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 15*time.Minute, cfg.Storage.PresignExpiration)
	assert.True(t, cfg.Storage.CreateBucket)
}

func TestDecodeHooks(t *testing.T) {
	strs := reflect.TypeFor[[]string]()
	dec := reflect.TypeFor[decimal.Decimal]()
	str := reflect.TypeFor[string]()

	got, err := listHook(str, strs, "finance@haven.test, ops@haven.test\tcompliance@haven.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance@haven.test", "ops@haven.test", "compliance@haven.test"}, got)

	got, err = listHook(str, str, "untouched")
	require.NoError(t, err)
	assert.Equal(t, "untouched", got)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "2500.75", "2500.75"},
		{"int", 3000, "3000"},
		{"float", 12.5, "12.5"},
		{"empty", "", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := decimalHook(reflect.TypeOf(tt.in), dec, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.(decimal.Decimal).String())
		})
	}

	_, err = decimalHook(reflect.TypeFor[bool](), dec, true)
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "user", Password: "pass@word#123", DBName: "db", SSLMode: "disable"}
		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", cfg.Addr())
}
