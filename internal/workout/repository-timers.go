package workout

import (
	"context"
	"fmt"
	"time"

	"github.com/myrjola/stride/internal/sqlite"
)

// sqliteTimerRepository implements timerRepository.
type sqliteTimerRepository struct {
	baseRepository
}

func newSQLiteTimerRepository(db *sqlite.Database) *sqliteTimerRepository {
	return &sqliteTimerRepository{
		baseRepository: newBaseRepository(db),
	}
}

func (r *sqliteTimerRepository) Upsert(ctx context.Context, t BlockTimer) error {
	userID, err := r.userID(ctx)
	if err != nil {
		return err
	}

	_, err = r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO block_timers (user_id, timer_date, block_id, elapsed_seconds, running)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, timer_date, block_id) DO UPDATE SET
			elapsed_seconds = excluded.elapsed_seconds,
			running = excluded.running,
			updated = excluded.updated`,
		userID, formatDate(t.Date), t.BlockID, t.ElapsedSeconds, t.Running)
	if err != nil {
		return fmt.Errorf("save block timer %s %s: %w", formatDate(t.Date), t.BlockID, err)
	}
	return nil
}

func (r *sqliteTimerRepository) ListByDate(ctx context.Context, date time.Time) ([]BlockTimer, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, `
		SELECT timer_date, block_id, elapsed_seconds, running, updated
		FROM block_timers
		WHERE user_id = ? AND timer_date = ?
		ORDER BY block_id`,
		userID, formatDate(date))
}

func (r *sqliteTimerRepository) ListAll(ctx context.Context) ([]BlockTimer, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, `
		SELECT timer_date, block_id, elapsed_seconds, running, updated
		FROM block_timers
		WHERE user_id = ?
		ORDER BY timer_date, block_id`,
		userID)
}

func (r *sqliteTimerRepository) query(ctx context.Context, query string, args ...any) ([]BlockTimer, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query block timers: %w", err)
	}
	defer rows.Close()

	var timers []BlockTimer
	for rows.Next() {
		var (
			t       BlockTimer
			date    string
			updated string
		)
		if err = rows.Scan(&date, &t.BlockID, &t.ElapsedSeconds, &t.Running, &updated); err != nil {
			return nil, fmt.Errorf("scan block timer: %w", err)
		}
		if t.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse timer date: %w", err)
		}
		if t.Updated, err = time.Parse(timestampFormat, updated); err != nil {
			return nil, fmt.Errorf("parse updated: %w", err)
		}
		timers = append(timers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block timers: %w", err)
	}
	return timers, nil
}
