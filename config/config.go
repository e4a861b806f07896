package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	ShutdownTimeoutSeconds        int      `env:"HTTP_SERVER_SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,DELETE,OPTIONS"`
	AllowHeaders                  []string `env:"HTTP_SERVER_ALLOW_HEADERS" env-default:"Content-Type,X-Request-Id"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Contact store
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseSQLitePath            string        `env:"DB_SQLITE_PATH" env-default:"fern.db"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseTxMaxAttempts         int           `env:"DB_TX_MAX_ATTEMPTS" env-default:"3"`

	// Consolidated contact cache
	RedisEnabled  bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" env-default:"10m"`

	// Kafka Producer (contact lifecycle events)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaProducerEnabled bool     `env:"KAFKA_PRODUCER_ENABLED" env-default:"false"`
	KafkaOutputTopic     string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"contact-events"`
	KafkaBatchSize       int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Kafka Consumer (purchase events)
	KafkaConsumerEnabled bool   `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`
	KafkaInputTopic      string `env:"KAFKA_INPUT_TOPIC" env-default:"purchase-events"`
	KafkaConsumerGroup   string `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-consumer"`

	// Dead-lettered purchase events go to this redis stream when redis is enabled.
	DLQStream string `env:"DLQ_STREAM" env-default:"fern:dlq:purchase-events"`

	// Observability
	TracingEnabled bool   `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol   string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure   bool   `env:"OTLP_INSECURE" env-default:"true"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" env-default:"true"`
}
