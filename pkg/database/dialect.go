package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Dialect identifies the relational engine behind a DB handle.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a DB_DRIVER value onto a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (use 'postgres' or 'sqlite')", driver)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// Flavor is the go-sqlbuilder flavor matching the dialect's placeholder style.
func (d Dialect) Flavor() sqlbuilder.Flavor {
	if d == DialectSQLite {
		return sqlbuilder.SQLite
	}
	return sqlbuilder.PostgreSQL
}

// IsolationLevel is the level used for read-decide-write transactions.
// SQLite transactions are already serializable and the driver rejects explicit levels.
func (d Dialect) IsolationLevel() sql.IsolationLevel {
	if d == DialectSQLite {
		return sql.LevelDefault
	}
	return sql.LevelSerializable
}
