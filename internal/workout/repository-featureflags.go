package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/myrjola/stride/internal/sqlite"
)

// sqliteFeatureFlagRepository implements featureFlagRepository. Flags are global and need no user in context.
type sqliteFeatureFlagRepository struct {
	baseRepository
}

func newSQLiteFeatureFlagRepository(db *sqlite.Database) *sqliteFeatureFlagRepository {
	return &sqliteFeatureFlagRepository{
		baseRepository: newBaseRepository(db),
	}
}

func scanFeatureFlag(row interface{ Scan(dest ...any) error }) (FeatureFlag, error) {
	var flag FeatureFlag
	if err := row.Scan(&flag.Name, &flag.Enabled); err != nil {
		return FeatureFlag{}, err //nolint:wrapcheck // callers wrap
	}
	return flag, nil
}

// Get returns ErrNotFound for flags that were never set.
func (r *sqliteFeatureFlagRepository) Get(ctx context.Context, name string) (FeatureFlag, error) {
	flag, err := scanFeatureFlag(r.db.ReadOnly.QueryRowContext(ctx,
		`SELECT name, enabled FROM feature_flags WHERE name = ?`, name))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return FeatureFlag{}, ErrNotFound
	case err != nil:
		return FeatureFlag{}, fmt.Errorf("query feature flag %s: %w", name, err)
	}
	return flag, nil
}
