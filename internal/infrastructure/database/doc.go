// Package database provides the SQLite persistence layer.
//
// It wraps database/sql with the pragmas SQLite needs for an embedded
// controller workload (WAL mode, busy timeout, foreign keys, a
// single-writer pool) and a small embedded-migration runner.
//
// # Migrations
//
// Schema migrations are SQL files compiled into the binary by the
// migrations package. Files are named
// YYYYMMDD_HHMMSS_description.up.sql and applied in version order,
// each in its own transaction, tracked in schema_migrations.
//
// # Thread Safety
//
// *DB is safe for concurrent use; the pool is capped at one connection
// to match SQLite's single-writer model.
package database
