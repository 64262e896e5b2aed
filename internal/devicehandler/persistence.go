package devicehandler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (h *DeviceHandler) createUser(ctx context.Context) (int, string, error) {
	handle := uuid.NewString()
	var userID int
	stmt := `INSERT INTO users (handle) VALUES (?) RETURNING id`
	if err := h.database.ReadWrite.QueryRowContext(ctx, stmt, handle).Scan(&userID); err != nil {
		return 0, "", fmt.Errorf("insert user: %w", err)
	}
	return userID, handle, nil
}

// userExists reports whether the session still points at a live user. Rows disappear when a device is forgotten
// from another session.
func (h *DeviceHandler) userExists(ctx context.Context, userID int, handle string) (bool, error) {
	var exists bool
	stmt := `SELECT EXISTS (SELECT 1 FROM users WHERE id = ? AND handle = ?)`
	if err := h.database.ReadOnly.QueryRowContext(ctx, stmt, userID, handle).Scan(&exists); err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return exists, nil
}

func (h *DeviceHandler) deleteUser(ctx context.Context, userID int) error {
	if _, err := h.database.ReadWrite.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
