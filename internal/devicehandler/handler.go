// Package devicehandler identifies anonymous devices. Every browser gets a user row on its first API request and
// keeps it through a session cookie until the device is forgotten.
package devicehandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexedwards/scs/v2"
	"github.com/myrjola/stride/internal/contexthelpers"
	"github.com/myrjola/stride/internal/metrics"
	"github.com/myrjola/stride/internal/sqlite"
)

type sessionKey string

const (
	userIDSessionKey sessionKey = "user_id"
	handleSessionKey sessionKey = "device_handle"
)

type DeviceHandler struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	database       *sqlite.Database
	metrics        *metrics.Manager
}

func New(
	logger *slog.Logger,
	sessionManager *scs.SessionManager,
	dbs *sqlite.Database,
	m *metrics.Manager,
) *DeviceHandler {
	return &DeviceHandler{
		logger:         logger,
		sessionManager: sessionManager,
		database:       dbs,
		metrics:        m,
	}
}

// Forget deletes every row of the device in ctx and destroys its session. The next request starts over as a new
// device.
func (h *DeviceHandler) Forget(ctx context.Context) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID != 0 {
		if err := h.deleteUser(ctx, userID); err != nil {
			return fmt.Errorf("delete user %d: %w", userID, err)
		}
	}
	if err := h.sessionManager.Destroy(ctx); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	h.logger.LogAttrs(ctx, slog.LevelInfo, "forgot device", slog.Int("user_id", userID))
	return nil
}

// register creates a user for a fresh device and binds it to the session.
func (h *DeviceHandler) register(ctx context.Context) (int, string, error) {
	userID, handle, err := h.createUser(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("create user: %w", err)
	}
	// Fixation attacks are not a threat for anonymous sessions, but a fresh token keeps the behaviour uniform with
	// privilege changes.
	if err = h.sessionManager.RenewToken(ctx); err != nil {
		return 0, "", fmt.Errorf("renew session token: %w", err)
	}
	h.sessionManager.Put(ctx, string(userIDSessionKey), userID)
	h.sessionManager.Put(ctx, string(handleSessionKey), handle)
	h.metrics.CounterRegistrations.Inc()
	h.logger.LogAttrs(ctx, slog.LevelInfo, "registered device", slog.Int("user_id", userID))
	return userID, handle, nil
}
