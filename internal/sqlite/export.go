package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ExportUser copies every row belonging to userID into a new SQLite database file in dir and returns its path.
//
// The export holds the users row and the rows of every table with a user_id column, with their original table
// definitions, so that users can take all of their data with them.
func (db *Database) ExportUser(ctx context.Context, userID int, dir string) (_ string, err error) {
	path := filepath.Join(dir, fmt.Sprintf("stride-user-%d.sqlite3", userID))

	// ATTACH is not allowed inside a transaction so a dedicated connection is attached first.
	conn, err := db.ReadWrite.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("get connection: %w", err)
	}
	defer func() {
		err = errors.Join(err, conn.Close())
	}()

	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS export", fmt.Sprintf("file:%s?mode=rwc", path)); err != nil {
		return "", fmt.Errorf("attach export database: %w", err)
	}
	defer func() {
		if _, detachErr := conn.ExecContext(ctx, "DETACH DATABASE export"); detachErr != nil {
			err = errors.Join(err, fmt.Errorf("detach export database: %w", detachErr))
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer db.rollback(ctx, tx)()

	tables, err := userOwnedTables(ctx, tx)
	if err != nil {
		return "", err
	}
	for _, t := range tables {
		if err = exportTable(ctx, tx, t, userID); err != nil {
			return "", fmt.Errorf("export %s: %w", t.name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit export: %w", err)
	}
	return path, nil
}

type ownedTable struct {
	name      string
	createSQL string
	// column holding the user id.
	column string
}

// userOwnedTables lists the users table first followed by every table with a user_id column, so that foreign keys
// into users are satisfied during the copy.
func userOwnedTables(ctx context.Context, tx *sql.Tx) ([]ownedTable, error) {
	tables, err := queryAll(ctx, tx, func(rows *sql.Rows) (ownedTable, error) {
		var t ownedTable
		err := rows.Scan(&t.name, &t.createSQL, &t.column)
		return t, err //nolint:wrapcheck // wrapped by queryAll
	}, `SELECT s.name, s.sql, CASE WHEN s.name = 'users' THEN 'id' ELSE 'user_id' END
FROM main.sqlite_schema AS s
WHERE s.type = 'table'
  AND (s.name = 'users' OR EXISTS (SELECT 1 FROM pragma_table_info(s.name) AS c WHERE c.name = 'user_id'))
ORDER BY s.name <> 'users', s.name`)
	if err != nil {
		return nil, fmt.Errorf("query user owned tables: %w", err)
	}
	if len(tables) == 0 || tables[0].name != "users" {
		return nil, errors.New("users table does not exist")
	}
	return tables, nil
}

func exportTable(ctx context.Context, tx *sql.Tx, t ownedTable, userID int) error {
	// Keep the column definitions but create the table in the export schema.
	_, definition, found := strings.Cut(t.createSQL, "(")
	if !found {
		return fmt.Errorf("unexpected table definition %q", t.createSQL)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE export.%s (%s", t.name, definition)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	query := fmt.Sprintf("INSERT INTO export.%[1]s SELECT * FROM main.%[1]s WHERE %[2]s = ?", t.name, t.column)
	if _, err := tx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	return nil
}
