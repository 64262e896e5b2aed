package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migrateTo brings the live schema in line with schemaDefinition.
//
// The migration is declarative. The target schema is created in an attached in-memory database and diffed against
// sqlite_schema: removed tables are dropped, new tables created, changed tables rebuilt with the 12-step procedure
// from https://www.sqlite.org/lang_altertable.html#otheralter, and finally indexes and triggers are synchronized.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach schema target: %w", err)
	}
	defer detach()

	// Steps 1 and 12: foreign keys are off while tables are rebuilt. PRAGMA foreign_keys is a no-op inside a
	// transaction.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil && err == nil {
			err = fmt.Errorf("re-enable foreign keys: %w", fkErr)
		}
	}()

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if txErr := db.migrateTables(ctx, tx); txErr != nil {
			return fmt.Errorf("migrate tables: %w", txErr)
		}
		for _, typ := range []schemaType{schemaTypeTrigger, schemaTypeIndex} {
			if txErr := db.migrateSchema(ctx, tx, typ); txErr != nil {
				return fmt.Errorf("migrate %ss: %w", typ, txErr)
			}
		}
		violations, txErr := queryAll(ctx, tx, func(rows *sql.Rows) (string, error) {
			var (
				table, parent string
				rowID         sql.NullInt64
				fkID          int
			)
			scanErr := rows.Scan(&table, &rowID, &parent, &fkID)
			return table, scanErr //nolint:wrapcheck // wrapped by queryAll
		}, "PRAGMA foreign_key_check")
		if txErr != nil {
			return fmt.Errorf("foreign key check: %w", txErr)
		}
		if len(violations) > 0 {
			return fmt.Errorf("foreign key violations in %v", violations)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// attachSchemaTarget attaches a fresh in-memory database created from schemaDefinition as schemaTarget. The returned
// function detaches it.
func (db *Database) attachSchemaTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())

	// The target must stay open until it is attached, otherwise the shared in-memory database is discarded.
	target, err := sql.Open("sqlite3", name)
	if err != nil {
		return nil, fmt.Errorf("open schema target: %w", err)
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target", slog.Any("error", closeErr))
		}
	}()

	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create target schema: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", name); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target", slog.Any("error", detachErr))
		}
	}, nil
}

// userTables filters out SQLite internals and Litestream bookkeeping.
const userTables = `AND %[1]s.name NOT LIKE 'sqlite_%%' AND %[1]s.name NOT LIKE '_litestream_%%'`

// migrateTables performs steps 3 to 7 of the 12-step procedure.
func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	dropped, err := queryStrings(ctx, tx, `SELECT live.name FROM sqlite_schema AS live
LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = 'table' AND target.type IS NULL `+fmt.Sprintf(userTables, "live"))
	if err != nil {
		return fmt.Errorf("query dropped tables: %w", err)
	}
	for _, table := range dropped {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err = tx.ExecContext(ctx, "DROP TABLE "+table); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}

	created, err := queryStrings(ctx, tx, `SELECT target.sql FROM schemaTarget.sqlite_schema AS target
LEFT JOIN sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = 'table' AND live.type IS NULL `+fmt.Sprintf(userTables, "target"))
	if err != nil {
		return fmt.Errorf("query created tables: %w", err)
	}
	for _, query := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", query))
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Renaming a table quotes its name in sqlite_schema, so quotes are ignored in the diff.
	changed, err := queryChanged(ctx, tx, `SELECT live.name, live.sql, target.sql FROM sqlite_schema AS live
JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = 'table' `+fmt.Sprintf(userTables, "live")+`
  AND REPLACE(live.sql, '"', '') <> REPLACE(target.sql, '"', '')`)
	if err != nil {
		return fmt.Errorf("query changed tables: %w", err)
	}
	for _, c := range changed {
		if err = db.rebuildTable(ctx, tx, c); err != nil {
			return fmt.Errorf("rebuild %s: %w", c.name, err)
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the columns both definitions share, drops
// the old table and renames the new one into place.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, c changedSchema) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table",
		slog.String("table", c.name),
		slog.String("live_sql", c.liveSQL),
		slog.String("new_sql", c.newSQL))

	temp := c.name + "_migration_temp"
	columns, err := queryStrings(ctx, tx, `SELECT '"' || target.name || '"'
FROM pragma_table_info(:table) AS live
JOIN pragma_table_info(:table, 'schemaTarget') AS target ON target.name = live.name`, sql.Named("table", c.name))
	if err != nil {
		return fmt.Errorf("query common columns: %w", err)
	}
	common := strings.Join(columns, ", ")

	steps := []string{
		strings.Replace(c.newSQL, c.name, temp, 1),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", temp, common, common, c.name),
		"DROP TABLE " + c.name,
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", temp, c.name),
	}
	for _, step := range steps {
		db.logger.LogAttrs(ctx, slog.LevelDebug, "rebuild step", slog.String("query", step))
		if _, err = tx.ExecContext(ctx, step); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}
	return nil
}

type schemaType string

const (
	schemaTypeTrigger schemaType = "trigger"
	schemaTypeIndex   schemaType = "index"
)

// migrateSchema synchronizes all schema entries of typ. Indexes and triggers hold no data so changed ones are simply
// dropped and recreated.
func (db *Database) migrateSchema(ctx context.Context, tx *sql.Tx, typ schemaType) error {
	logger := db.logger.With(slog.String("schemaType", string(typ)))
	keyword := strings.ToUpper(string(typ))

	dropped, err := queryStrings(ctx, tx, `SELECT live.name FROM sqlite_schema AS live
LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ? AND target.type IS NULL AND live.name NOT LIKE 'sqlite_%'`, typ)
	if err != nil {
		return fmt.Errorf("query dropped: %w", err)
	}
	for _, name := range dropped {
		logger.LogAttrs(ctx, slog.LevelInfo, "dropping", slog.String("name", name))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP %s %s", keyword, name)); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}

	created, err := queryStrings(ctx, tx, `SELECT target.sql FROM schemaTarget.sqlite_schema AS target
LEFT JOIN sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = ? AND live.type IS NULL AND target.name NOT LIKE 'sqlite_%'`, typ)
	if err != nil {
		return fmt.Errorf("query created: %w", err)
	}
	for _, query := range created {
		logger.LogAttrs(ctx, slog.LevelInfo, "creating", slog.String("query", query))
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create: %w", err)
		}
	}

	changed, err := queryChanged(ctx, tx, `SELECT live.name, live.sql, target.sql FROM sqlite_schema AS live
JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ? AND live.name NOT LIKE 'sqlite_%' AND live.sql <> target.sql`, typ)
	if err != nil {
		return fmt.Errorf("query changed: %w", err)
	}
	for _, c := range changed {
		logger.LogAttrs(ctx, slog.LevelInfo, "recreating",
			slog.String("name", c.name),
			slog.String("live_sql", c.liveSQL),
			slog.String("new_sql", c.newSQL))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP %s %s", keyword, c.name)); err != nil {
			return fmt.Errorf("drop %s: %w", c.name, err)
		}
		if _, err = tx.ExecContext(ctx, c.newSQL); err != nil {
			return fmt.Errorf("create %s: %w", c.name, err)
		}
	}
	return nil
}

type changedSchema struct {
	name    string
	liveSQL string
	newSQL  string
}

func queryChanged(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]changedSchema, error) {
	return queryAll(ctx, tx, func(rows *sql.Rows) (changedSchema, error) {
		var c changedSchema
		err := rows.Scan(&c.name, &c.liveSQL, &c.newSQL)
		return c, err //nolint:wrapcheck // wrapped by queryAll
	}, query, args...)
}

func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	return queryAll(ctx, tx, func(rows *sql.Rows) (string, error) {
		var s string
		err := rows.Scan(&s)
		return s, err //nolint:wrapcheck // wrapped by queryAll
	}, query, args...)
}

// queryAll runs query in tx and scans every row with scan.
func queryAll[T any](
	ctx context.Context,
	tx *sql.Tx,
	scan func(*sql.Rows) (T, error),
	query string,
	args ...any,
) (_ []T, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	var results []T
	for rows.Next() {
		var v T
		if v, err = scan(rows); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return results, nil
}
