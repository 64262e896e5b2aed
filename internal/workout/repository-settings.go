package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/myrjola/stride/internal/sqlite"
)

// sqliteSettingsRepository implements settingsRepository.
type sqliteSettingsRepository struct {
	baseRepository
}

func newSQLiteSettingsRepository(db *sqlite.Database) *sqliteSettingsRepository {
	return &sqliteSettingsRepository{
		baseRepository: newBaseRepository(db),
	}
}

// Get retrieves the setting with key.
func (r *sqliteSettingsRepository) Get(ctx context.Context, key string) (Setting, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return Setting{}, err
	}

	var (
		setting Setting
		updated string
	)
	err = r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT key, value, updated
		FROM user_settings
		WHERE user_id = ? AND key = ?`, userID, key).Scan(&setting.Key, &setting.Value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Setting{}, ErrNotFound
	}
	if err != nil {
		return Setting{}, fmt.Errorf("query setting %s: %w", key, err)
	}
	if setting.Updated, err = time.Parse(timestampFormat, updated); err != nil {
		return Setting{}, fmt.Errorf("parse updated: %w", err)
	}
	return setting, nil
}

// SetMany stores every key of values in one transaction. The last write wins.
func (r *sqliteSettingsRepository) SetMany(ctx context.Context, values map[string]string) error {
	userID, err := r.userID(ctx)
	if err != nil {
		return err
	}

	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, key := range slices.Sorted(maps.Keys(values)) {
			if _, execErr := tx.ExecContext(ctx, `
				INSERT INTO user_settings (user_id, key, value)
				VALUES (?, ?, ?)
				ON CONFLICT (user_id, key) DO UPDATE SET
					value = excluded.value,
					updated = excluded.updated`,
				userID, key, values[key]); execErr != nil {
				return fmt.Errorf("save setting %s: %w", key, execErr)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (r *sqliteSettingsRepository) SetIfAbsent(ctx context.Context, key, value string) (string, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return "", err
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	var stored string
	err = r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, key) DO UPDATE SET value = value
		RETURNING value`,
		userID, key, value).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("initialize setting %s: %w", key, err)
	}
	return stored, nil
}

// List retrieves every setting of the user ordered by key.
func (r *sqliteSettingsRepository) List(ctx context.Context) ([]Setting, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT key, value, updated
		FROM user_settings
		WHERE user_id = ?
		ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	settings, err := collectRows(rows, func(rows *sql.Rows) (Setting, error) {
		var (
			setting Setting
			updated string
		)
		if scanErr := rows.Scan(&setting.Key, &setting.Value, &updated); scanErr != nil {
			return Setting{}, fmt.Errorf("scan setting: %w", scanErr)
		}
		var parseErr error
		if setting.Updated, parseErr = time.Parse(timestampFormat, updated); parseErr != nil {
			return Setting{}, fmt.Errorf("parse updated: %w", parseErr)
		}
		return setting, nil
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}
