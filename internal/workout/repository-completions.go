package workout

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/myrjola/stride/internal/ptr"
	"github.com/myrjola/stride/internal/sqlite"
)

// sqliteCompletionRepository implements completionRepository.
type sqliteCompletionRepository struct {
	baseRepository
}

func newSQLiteCompletionRepository(db *sqlite.Database) *sqliteCompletionRepository {
	return &sqliteCompletionRepository{
		baseRepository: newBaseRepository(db),
	}
}

// Upsert saves c, replacing the earlier record of the same exercise on the same date.
func (r *sqliteCompletionRepository) Upsert(ctx context.Context, c Completion) error {
	userID, err := r.userID(ctx)
	if err != nil {
		return err
	}

	var completedAt *string
	if c.CompletedAt != nil {
		completedAt = ptr.Ref(c.CompletedAt.UTC().Format(timestampFormat))
	}

	_, err = r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO exercise_completions (user_id, completion_date, exercise_id, completed, notes, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, completion_date, exercise_id) DO UPDATE SET
			completed = excluded.completed,
			notes = excluded.notes,
			completed_at = excluded.completed_at,
			updated = excluded.updated`,
		userID, formatDate(c.Date), c.ExerciseID, c.Completed, ptr.NonZero(c.Notes), completedAt)
	if err != nil {
		return fmt.Errorf("save completion %s %s: %w", formatDate(c.Date), c.ExerciseID, err)
	}
	return nil
}

// Delete removes the completion record. Deleting a missing record returns ErrNotFound.
func (r *sqliteCompletionRepository) Delete(ctx context.Context, date time.Time, exerciseID string) error {
	userID, err := r.userID(ctx)
	if err != nil {
		return err
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		DELETE FROM exercise_completions
		WHERE user_id = ? AND completion_date = ? AND exercise_id = ?`,
		userID, formatDate(date), exerciseID)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteCompletionRepository) ListByDate(ctx context.Context, date time.Time) ([]Completion, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, `
		SELECT completion_date, exercise_id, completed, notes, completed_at
		FROM exercise_completions
		WHERE user_id = ? AND completion_date = ?
		ORDER BY exercise_id`,
		userID, formatDate(date))
}

func (r *sqliteCompletionRepository) ListAll(ctx context.Context) ([]Completion, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, `
		SELECT completion_date, exercise_id, completed, notes, completed_at
		FROM exercise_completions
		WHERE user_id = ?
		ORDER BY completion_date, exercise_id`,
		userID)
}

func (r *sqliteCompletionRepository) query(ctx context.Context, query string, args ...any) ([]Completion, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var completions []Completion
	for rows.Next() {
		var (
			c           Completion
			date        string
			notes       *string
			completedAt sql.NullString
		)
		if err = rows.Scan(&date, &c.ExerciseID, &c.Completed, &notes, &completedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		if c.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse completion date: %w", err)
		}
		c.Notes = ptr.Deref(notes, "")
		if c.CompletedAt, err = parseTimestamp(completedAt); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		completions = append(completions, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return completions, nil
}

// parseTimestamp parses a timestamp from a nullable database string.
func parseTimestamp(timestampStr sql.NullString) (*time.Time, error) {
	if timestampStr.Valid {
		parsedTime, err := time.Parse(timestampFormat, timestampStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp format: %w", err)
		}
		return &parsedTime, nil
	}
	return nil, nil //nolint:nilnil // nil time.Time is expected when the string is NULL.
}
