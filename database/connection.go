// database/connection.go
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gewnthar/fareprice/config"
	_ "github.com/go-sql-driver/mysql" // MySQL/MariaDB driver
)

var DB *sql.DB

// InitDB opens the connection pool used for run bookkeeping.
func InitDB(cfg config.DatabaseConfig) error {
	var err error
	DB, err = sql.Open("mysql", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	// A training run only writes a handful of statements.
	DB.SetMaxOpenConns(4)
	DB.SetMaxIdleConns(4)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to the database.", "host", cfg.Host, "db", cfg.DBName)
	return nil
}

// CloseDB closes the pool. Safe to call when InitDB was never run.
func CloseDB() {
	if DB != nil {
		DB.Close()
		DB = nil
		slog.Info("Database connection closed.")
	}
}
