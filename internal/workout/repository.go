package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/stride/internal/contexthelpers"
	"github.com/myrjola/stride/internal/sqlite"
)

var (
	// ErrNotFound is returned when a requested entity is not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when the context carries no user.
	ErrUnauthenticated = errors.New("user not authenticated")
)

const (
	timestampFormat = "2006-01-02T15:04:05.000Z"
	dateFormat      = time.DateOnly
)

// repository contains the repositories for the workout domain.
type repository struct {
	settings    settingsRepository
	completions completionRepository
	timers      timerRepository
	flags       featureFlagRepository
}

// settingsRepository persists the per-user key-value settings of the user in context.
type settingsRepository interface {
	// Get returns ErrNotFound for keys that were never stored.
	Get(ctx context.Context, key string) (Setting, error)
	SetMany(ctx context.Context, values map[string]string) error
	// SetIfAbsent stores value unless key already exists and returns the value that is stored afterwards.
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
	List(ctx context.Context) ([]Setting, error)
}

// completionRepository persists completions keyed by (user, date, exercise).
type completionRepository interface {
	Upsert(ctx context.Context, c Completion) error
	Delete(ctx context.Context, date time.Time, exerciseID string) error
	ListByDate(ctx context.Context, date time.Time) ([]Completion, error)
	ListAll(ctx context.Context) ([]Completion, error)
}

// timerRepository persists block timers keyed by (user, date, block).
type timerRepository interface {
	Upsert(ctx context.Context, t BlockTimer) error
	ListByDate(ctx context.Context, date time.Time) ([]BlockTimer, error)
	ListAll(ctx context.Context) ([]BlockTimer, error)
}

// featureFlagRepository handles global feature flags.
type featureFlagRepository interface {
	Get(ctx context.Context, name string) (FeatureFlag, error)
}

// repositoryFactory creates repository instances.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// newRepositoryFactory creates a new repository factory.
func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{
		db:     db,
		logger: logger,
	}
}

// newRepository creates a new repository aggregate.
func (f *repositoryFactory) newRepository() *repository {
	return &repository{
		settings:    newSQLiteSettingsRepository(f.db),
		completions: newSQLiteCompletionRepository(f.db),
		timers:      newSQLiteTimerRepository(f.db),
		flags:       newSQLiteFeatureFlagRepository(f.db),
	}
}

// baseRepository holds the database shared by the SQLite repositories.
type baseRepository struct {
	db *sqlite.Database
}

func newBaseRepository(db *sqlite.Database) baseRepository {
	return baseRepository{db: db}
}

func (r baseRepository) userID(ctx context.Context) (int, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return 0, ErrUnauthenticated
	}
	return userID, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateFormat, s) //nolint:wrapcheck // callers wrap
}

// collectRows scans every row with scan and closes rows.
func collectRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
