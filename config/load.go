package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Load reads the optional env files (".env" when none are given) and binds
// every tagged field from the environment, falling back to env-default.
// Variables already set in the process win over the files.
func Load(envFiles ...string) (*Config, error) {
	return LoadFile("", envFiles...)
}

// LoadFile is Load with an optional config file (yaml, json or toml) whose
// keys are the env names in any case. The file only fills variables that are
// still unset after the env files, so the precedence is process env, env
// files, config file, env-default.
func LoadFile(configFile string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if configFile != "" {
		if err := exportConfigFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		return nil, fmt.Errorf("bind environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func exportConfigFile(configFile string) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", configFile, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if os.Getenv(name) != "" {
			continue
		}

		value := v.GetString(key)
		if _, ok := v.Get(key).([]any); ok {
			value = strings.Join(v.GetStringSlice(key), ",")
		}
		if value == "" {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}

// normalize trims the values ectoenv copies verbatim from the environment.
func (c *Config) normalize() {
	for _, s := range []*string{
		&c.AppName, &c.LogLevel, &c.DatabaseDriver, &c.DatabaseHost, &c.DatabaseName,
		&c.DatabaseSQLitePath, &c.RedisHost, &c.KafkaOutputTopic, &c.KafkaCompression,
		&c.KafkaInputTopic, &c.KafkaConsumerGroup, &c.DLQStream, &c.OTLPEndpoint, &c.OTLPProtocol,
	} {
		*s = strings.TrimSpace(*s)
	}
	for _, list := range []*[]string{&c.AllowOrigins, &c.AllowMethods, &c.AllowHeaders, &c.KafkaBrokers} {
		*list = trimList(*list)
	}
}

func trimList(raw []string) []string {
	values := make([]string, 0, len(raw))
	for _, part := range raw {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if _, err := database.ParseDialect(c.DatabaseDriver); err != nil {
		errs = append(errs, fmt.Errorf("DB_DRIVER: %w", err))
	}
	if c.DatabaseTxMaxAttempts < 1 {
		errs = append(errs, errors.New("DB_TX_MAX_ATTEMPTS must be at least 1"))
	}
	if c.KafkaProducerEnabled && c.KafkaOutputTopic == "" {
		errs = append(errs, errors.New("KAFKA_OUTPUT_TOPIC is required when KAFKA_PRODUCER_ENABLED is set"))
	}
	if c.KafkaConsumerEnabled && (c.KafkaInputTopic == "" || c.KafkaConsumerGroup == "") {
		errs = append(errs, errors.New("KAFKA_INPUT_TOPIC and KAFKA_CONSUMER_GROUP are required when KAFKA_CONSUMER_ENABLED is set"))
	}
	if (c.KafkaProducerEnabled || c.KafkaConsumerEnabled) && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when kafka is enabled"))
	}
	return errors.Join(errs...)
}

// Database describes the contact store connection.
func (c *Config) Database() (database.ConnectionConfig, error) {
	dialect, err := database.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return database.ConnectionConfig{}, err
	}
	return database.ConnectionConfig{
		Dialect:         dialect,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		UserName:        c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		SQLitePath:      c.DatabaseSQLitePath,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
		TxMaxAttempts:   c.DatabaseTxMaxAttempts,
	}, nil
}

// RedisAddr is the host:port of the cache.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
