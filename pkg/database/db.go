package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Queryer is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Queryer
	Close() error
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
	SQLDB() *sql.DB
	Dialect() Dialect

	// Queryer returns the transaction bound to ctx, or the pool when there is none.
	Queryer(ctx context.Context) Queryer

	// InTx runs fn inside a transaction. Calls nested inside fn join the outer transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ConnectionConfig describes how to reach the contact store.
type ConnectionConfig struct {
	Dialect         Dialect
	Host            string
	Port            string
	UserName        string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxMaxAttempts   int
}

// DSN builds the driver connection string for the configured dialect.
func (c ConnectionConfig) DSN() string {
	if c.Dialect == DialectSQLite {
		path := c.SQLitePath
		if path == "" {
			path = "fern.db"
		}
		query := url.Values{}
		query.Add("_pragma", "foreign_keys(1)")
		query.Add("_pragma", "busy_timeout(5000)")
		query.Set("_time_format", "sqlite")
		return "file:" + path + "?" + query.Encode()
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Name,
	}
	if c.UserName != "" {
		u.User = url.UserPassword(c.UserName, c.Password)
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
	return u.String()
}

type DatabaseInstance struct {
	*sqlx.DB
	logger        ectologger.Logger
	dialect       Dialect
	txMaxAttempts int
}

func NewDatabaseInstance(db *sqlx.DB, dialect Dialect, txMaxAttempts int, logger ectologger.Logger) DB {
	if txMaxAttempts < 1 {
		txMaxAttempts = 1
	}
	return &DatabaseInstance{
		DB:            db,
		logger:        logger,
		dialect:       dialect,
		txMaxAttempts: txMaxAttempts,
	}
}

// Connect opens the pool, applies pool limits and verifies the connection.
func Connect(ctx context.Context, cfg ConnectionConfig, logger ectologger.Logger) (DB, error) {
	db, err := sqlx.Open(cfg.Dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}

	if cfg.Dialect == DialectSQLite {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Dialect, err)
	}

	logger.WithFields(map[string]any{
		"dialect": cfg.Dialect,
		"host":    cfg.Host,
		"name":    cfg.Name,
	}).Info("Connected to database")

	return NewDatabaseInstance(db, cfg.Dialect, cfg.TxMaxAttempts, logger), nil
}

func (db *DatabaseInstance) Dialect() Dialect {
	return db.dialect
}

func (db *DatabaseInstance) SQLDB() *sql.DB {
	return db.DB.DB
}

func (db *DatabaseInstance) Queryer(ctx context.Context) Queryer {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db.DB
}
