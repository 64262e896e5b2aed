package main

import (
	"net/http"
)

// deviceDELETE removes every row stored for the device. The next request registers a fresh device.
func (app *application) deviceDELETE(w http.ResponseWriter, r *http.Request) {
	if err := app.deviceHandler.Forget(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
