package main

import (
	"fmt"
	"net/http"
)

func (app *application) routes() (http.Handler, error) {
	mux := http.NewServeMux()

	protection, err := app.newCrossOriginProtection()
	if err != nil {
		return nil, fmt.Errorf("cross-origin protection: %w", err)
	}

	var (
		withoutMaintenanceMode = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(secureHeaders(protection.Handler(app.timeout(next))))
		}
		shared = func(next http.Handler) http.Handler {
			return withoutMaintenanceMode(app.maintenanceMode(next))
		}
		noSession = func(next http.Handler) http.Handler {
			return app.recoverPanic(withoutMaintenanceMode(next))
		}
		device = func(next http.Handler) http.Handler {
			return app.recoverPanic(noCache(app.sessionManager.LoadAndSave(
				app.deviceHandler.IdentifyMiddleware(shared(next)))))
		}
	)

	mux.Handle("GET /api/program", device(http.HandlerFunc(app.programGET)))
	mux.Handle("GET /api/program/origin", device(http.HandlerFunc(app.originGET)))
	mux.Handle("PUT /api/program/origin", device(http.HandlerFunc(app.originPUT)))
	mux.Handle("POST /api/program/push", device(http.HandlerFunc(app.programPushPOST)))
	mux.Handle("POST /api/program/reset", device(http.HandlerFunc(app.programResetPOST)))

	mux.Handle("GET /api/workouts/{date}", device(http.HandlerFunc(app.workoutGET)))
	mux.Handle("PUT /api/workouts/{date}/exercises/{exerciseID}/completion",
		device(http.HandlerFunc(app.completionPUT)))
	mux.Handle("DELETE /api/workouts/{date}/exercises/{exerciseID}/completion",
		device(http.HandlerFunc(app.completionDELETE)))
	mux.Handle("PUT /api/workouts/{date}/blocks/{blockID}/timer", device(http.HandlerFunc(app.timerPUT)))
	mux.Handle("GET /api/schedule", device(http.HandlerFunc(app.scheduleGET)))

	mux.Handle("GET /api/exercises/{exerciseID}", device(http.HandlerFunc(app.exerciseGET)))
	mux.Handle("GET /api/progress", device(http.HandlerFunc(app.progressGET)))
	mux.Handle("GET /api/export", device(http.HandlerFunc(app.exportGET)))
	mux.Handle("DELETE /api/device", device(http.HandlerFunc(app.deviceDELETE)))

	mux.Handle("GET /api/healthy", noSession(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/test/timeout", noSession(http.HandlerFunc(app.testTimeout)))

	mux.Handle("/", noSession(http.HandlerFunc(app.notFound)))

	return app.cors(mux), nil
}
