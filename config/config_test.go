package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "fern-api", cfg.AppName)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 10*time.Second, cfg.DatabaseConnMaxLifetime)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Equal(t, []string{"GET", "POST", "DELETE", "OPTIONS"}, cfg.AllowMethods)
	assert.True(t, cfg.DatabaseMigrationAutoRollback)
	assert.False(t, cfg.KafkaConsumerEnabled)
	assert.Equal(t, "fern:dlq:purchase-events", cfg.DLQStream)
	assert.Equal(t, 3, cfg.DatabaseTxMaxAttempts)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/var/lib/fern/contacts.db")
	t.Setenv("PRETTY_LOGS", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.PrettyLogs)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)

	db, err := cfg.Database()
	require.NoError(t, err)
	assert.Equal(t, database.DialectSQLite, db.Dialect)
	assert.Equal(t, "/var/lib/fern/contacts.db", db.SQLitePath)
}

func TestLoadFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("APP_NAME=fern-test\nREDIS_PORT=6380\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("APP_NAME")
		os.Unsetenv("REDIS_PORT")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "fern-test", cfg.AppName)
	assert.Equal(t, "localhost:6380", cfg.RedisAddr())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad driver", env: map[string]string{"DB_DRIVER": "oracle"}, wantErr: "DB_DRIVER"},
		{name: "bad port", env: map[string]string{"PORT": "0"}, wantErr: "PORT"},
		{name: "no tx attempts", env: map[string]string{"DB_TX_MAX_ATTEMPTS": "0"}, wantErr: "DB_TX_MAX_ATTEMPTS"},
		{name: "consumer without topic", env: map[string]string{"KAFKA_CONSUMER_ENABLED": "true", "KAFKA_INPUT_TOPIC": " "}, wantErr: "KAFKA_INPUT_TOPIC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "duration", key: "CACHE_TTL", value: "bogus", wantErr: "bogus"},
		{name: "int", key: "KAFKA_BATCH_SIZE", value: "abc", wantErr: "abc"},
		{name: "bool", key: "REDIS_ENABLED", value: "maybe", wantErr: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileFillsUnsetValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "fern.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
app_name: fern-from-file
port: 9090
cache_ttl: 45s
kafka_brokers:
  - kafka-a:9092
  - kafka-b:9092
`), 0o600))

	// Registered so the exported values are cleared after the test.
	t.Setenv("APP_NAME", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("PORT", "7070")

	cfg, err := LoadFile(configFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "fern-from-file", cfg.AppName)
	assert.Equal(t, 7070, cfg.Port, "the environment wins over the file")
	assert.Equal(t, 45*time.Second, cfg.CacheTTL)
	assert.Equal(t, []string{"kafka-a:9092", "kafka-b:9092"}, cfg.KafkaBrokers)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
