package contexthelpers

import (
	"context"
	"net/http"
)

// WithUser marks ctx as belonging to userID. Use it where there is no request, such as in tests and background jobs.
func WithUser(ctx context.Context, userID int, handle string) context.Context {
	ctx = context.WithValue(ctx, AuthenticatedUserIDContextKey, userID)
	return context.WithValue(ctx, DeviceHandleContextKey, handle)
}

func AuthenticateContext(r *http.Request, userID int, handle string) *http.Request {
	return r.WithContext(WithUser(r.Context(), userID, handle))
}
