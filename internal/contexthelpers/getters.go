package contexthelpers

import (
	"context"
)

// AuthenticatedUserID returns the user id of the device, or 0 outside an identified request.
func AuthenticatedUserID(ctx context.Context) int {
	userID, _ := ctx.Value(AuthenticatedUserIDContextKey).(int)
	return userID
}

// DeviceHandle returns the public identifier of the anonymous device the request belongs to.
func DeviceHandle(ctx context.Context) string {
	handle, _ := ctx.Value(DeviceHandleContextKey).(string)
	return handle
}
