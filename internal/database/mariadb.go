// Package database provides connection setup for the credential store
// (MongoDB or MariaDB) and Redis. Connections are created once at startup
// and shared via dependency injection. This package owns the connection
// lifecycle (open, configure pool, ping, close).
package database

import (
	"database/sql"
	"fmt"

	// MariaDB driver -- imported for side effect of registering the driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/gatehouse/internal/config"
)

// NewMariaDB opens a MariaDB pool with the configured limits and pings it
// (with backoff) before returning.
func NewMariaDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := withRetry("mariadb", db.PingContext); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
