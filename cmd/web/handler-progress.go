package main

import (
	"net/http"
)

func (app *application) progressGET(w http.ResponseWriter, r *http.Request) {
	today, ok := app.parseDateQuery(w, r, "today")
	if !ok {
		return
	}
	progress, err := app.workoutService.Progress(r.Context(), today)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newProgressResponse(progress))
}
