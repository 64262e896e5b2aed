package devicehandler

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/myrjola/stride/internal/contexthelpers"
	"github.com/myrjola/stride/internal/errors"
	"github.com/myrjola/stride/internal/logging"
)

// IdentifyMiddleware attaches the device's user to the request context, registering a new one when the session has
// none. It must run inside scs LoadAndSave.
func (h *DeviceHandler) IdentifyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := h.sessionManager.GetInt(ctx, string(userIDSessionKey))
		handle := h.sessionManager.GetString(ctx, string(handleSessionKey))

		known := false
		if userID != 0 {
			var err error
			if known, err = h.userExists(ctx, userID, handle); err != nil {
				h.logger.LogAttrs(ctx, slog.LevelError, "unable to fetch user", errors.SlogError(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}
		if !known {
			var err error
			if userID, handle, err = h.register(ctx); err != nil {
				h.logger.LogAttrs(ctx, slog.LevelError, "unable to register device", errors.SlogError(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}
		r = contexthelpers.AuthenticateContext(r, userID, handle)

		// Hash token with sha256 to avoid leaking it in logs.
		tokenHash := sha256.Sum256([]byte(h.sessionManager.Token(ctx)))
		ctx = logging.WithAttrs(r.Context(),
			slog.String("session_hash", hex.EncodeToString(tokenHash[:])),
			slog.Int("user_id", userID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
