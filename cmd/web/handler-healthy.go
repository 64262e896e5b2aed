package main

import (
	"net/http"
	"time"
)

type statusResponse struct {
	Status  string `json:"status"`
	SleptMS int    `json:"slept_ms,omitempty"`
}

// healthy answers without touching the session or the database, so probes never register devices.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, statusResponse{Status: "ok", SleptMS: 0})
}

// testTimeout sleeps for sleep_ms milliseconds, or until the request is cancelled, to exercise the timeout
// middleware.
func (app *application) testTimeout(w http.ResponseWriter, r *http.Request) {
	sleepMS, ok := app.parseIntQuery(w, r, "sleep_ms", 0)
	if !ok {
		return
	}

	timer := time.NewTimer(time.Duration(sleepMS) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-r.Context().Done():
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusResponse{Status: "completed", SleptMS: sleepMS})
}
