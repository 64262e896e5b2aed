// Package sqlite owns the SQLite connections, the declarative schema and its migration.
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	_ "embed"
)

//go:embed schema.sql
var schemaDefinition string

//go:embed fixtures.sql
var fixtures string

// Database holds separate pools for writes and reads. SQLite allows a single writer, so ReadWrite has exactly one
// connection while ReadOnly serves concurrent readers.
type Database struct {
	ReadWrite *sql.DB
	ReadOnly  *sql.DB
	logger    *slog.Logger
}

// NewDatabase connects to a database, migrates the schema, and applies fixtures.
//
// The url parameter is the path to the SQLite database file or ":memory:" for an in-memory database. The optimizer
// runs in the background until ctx is done.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(ctx, url, logger)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err = db.migrateTo(ctx, schemaDefinition); err != nil {
		return nil, errors.Join(fmt.Errorf("migrate: %w", err), db.Close())
	}

	if _, err = db.ReadWrite.ExecContext(ctx, fixtures); err != nil {
		return nil, errors.Join(fmt.Errorf("apply fixtures: %w", err), db.Close())
	}

	go db.runOptimizer(ctx, time.Hour)

	return db, nil
}

//nolint:gochecknoglobals // the driver may be registered only once per process.
var registerDriver sync.Once

const optimizedDriver = "sqlite3optimized"

// connectionPragmas are executed on every new connection. The URI parameters cannot express them.
var connectionPragmas = strings.Join([]string{ //nolint:gochecknoglobals // constant list
	// Temporary tables and indices live in memory instead of files.
	"PRAGMA temp_store = memory;",
	// Memory-mapped I/O reduces syscalls.
	"PRAGMA mmap_size = 30000000000;",
}, "")

// dsn builds the data source name. Parameters without a leading underscore are SQLite URI parameters documented at
// https://www.sqlite.org/uri.html, the rest are documented at
// https://pkg.go.dev/github.com/mattn/go-sqlite3#SQLiteDriver.Open.
func dsn(path string, inMemory bool, readOnly bool) string {
	params := []string{
		"_loc=auto",
		"_defer_foreign_keys=1",
		"_journal_mode=wal",
		"_busy_timeout=5000",
		"_synchronous=normal",
		"_foreign_keys=on",
	}
	if readOnly {
		params = append(params, "mode=ro", "_txlock=deferred", "_query_only=true")
	} else {
		params = append(params, "mode=rwc", "_txlock=immediate")
	}
	if inMemory {
		// Both pools must see the same in-memory database.
		params = append(params, "mode=memory", "cache=shared")
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))
}

func connect(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	registerDriver.Do(func() {
		sql.Register(optimizedDriver, &sqlite3.SQLiteDriver{
			Extensions: nil,
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if _, err := conn.Exec(connectionPragmas, nil); err != nil {
					return fmt.Errorf("exec connection pragmas: %w", err)
				}
				return nil
			},
		})
	})

	// Every in-memory database gets a random name so that parallel tests do not share data.
	// See https://www.sqlite.org/inmemorydb.html.
	inMemory := strings.Contains(url, ":memory:")
	if inMemory {
		url = rand.Text()
	}

	readWriteDSN := dsn(url, inMemory, false)
	readWriteDB, err := sql.Open(optimizedDriver, readWriteDSN)
	if err != nil {
		return nil, fmt.Errorf("open read-write database: %w", err)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "opened database", slog.String("sqlDsn", readWriteDSN))
	configurePool(readWriteDB, 1)

	// sql.DB is lazy. Ping so that the database file is created and configured before readers connect.
	if err = readWriteDB.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping read-write database: %w", err), readWriteDB.Close())
	}

	readDB, err := sql.Open(optimizedDriver, dsn(url, inMemory, true))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open read database: %w", err), readWriteDB.Close())
	}
	configurePool(readDB, 10) //nolint:mnd // concurrent readers

	return &Database{
		ReadWrite: readWriteDB,
		ReadOnly:  readDB,
		logger:    logger,
	}, nil
}

func configurePool(db *sql.DB, conns int) {
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)
}

// WithTx runs fn in a read-write transaction that is committed when fn returns nil and rolled back otherwise.
func (db *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer db.rollback(ctx, tx)()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback rolls back given transaction unless it has already been committed.
func (db *Database) rollback(ctx context.Context, tx *sql.Tx) func() {
	return func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction", slog.Any("error", err))
		}
	}
}

// Close closes the database connections.
func (db *Database) Close() error {
	return errors.Join(db.ReadOnly.Close(), db.ReadWrite.Close())
}
