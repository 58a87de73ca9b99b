// Package storage provides the Postgres-backed persistence layer for
// users, the catalog, comments, review assignments and site settings.
package storage

import (
	"github.com/jmoiron/sqlx"
)

// Database provides database operations for the application.
type Database struct {
	db *sqlx.DB
}

// NewDatabase wraps an existing sqlx connection. The connection is owned by
// the caller; use Close to release it when the Database is the sole user.
func NewDatabase(db *sqlx.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying database connection.
func (d *Database) GetDB() *sqlx.DB {
	return d.db
}
