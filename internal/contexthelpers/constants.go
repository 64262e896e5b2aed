// Package contexthelpers stores the identity of the requesting device in a context.
package contexthelpers

type contextKey string

const (
	AuthenticatedUserIDContextKey = contextKey("authenticatedUserID")
	DeviceHandleContextKey        = contextKey("deviceHandle")
)
