package main

import (
	"net/http"
	"time"

	"github.com/myrjola/stride/internal/workout"
)

func (app *application) workoutGET(w http.ResponseWriter, r *http.Request) {
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return
	}
	day, err := app.workoutService.Workout(r.Context(), date)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponse(day))
}

func (app *application) scheduleGET(w http.ResponseWriter, r *http.Request) {
	from, ok := app.parseDateQuery(w, r, "from")
	if !ok {
		return
	}
	days, ok := app.parseIntQuery(w, r, "days", 7) //nolint:mnd // a week
	if !ok {
		return
	}
	schedule, err := app.workoutService.Schedule(r.Context(), from, days)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	resp := make([]scheduleDayResponse, len(schedule))
	for i, d := range schedule {
		resp[i] = scheduleDayResponse{
			Date:       d.Date.Format(time.DateOnly),
			Meta:       newMetaResponse(d.Meta),
			BlockNames: d.BlockNames,
			Minutes:    d.Minutes,
			Progress:   newDayProgressResponse(d.Progress),
		}
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

type completionRequest struct {
	Completed bool   `json:"completed"`
	Notes     string `json:"notes"`
}

func (app *application) completionPUT(w http.ResponseWriter, r *http.Request) {
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return
	}
	var req completionRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	c, err := app.workoutService.SetCompletion(r.Context(), date, r.PathValue("exerciseID"), req.Completed, req.Notes)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newCompletionResponse(c))
}

func (app *application) completionDELETE(w http.ResponseWriter, r *http.Request) {
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return
	}
	if err := app.workoutService.DeleteCompletion(r.Context(), date, r.PathValue("exerciseID")); err != nil {
		app.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type timerRequest struct {
	ElapsedSeconds int  `json:"elapsed_seconds"`
	Running        bool `json:"running"`
}

func (app *application) timerPUT(w http.ResponseWriter, r *http.Request) {
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return
	}
	var req timerRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	blockID := r.PathValue("blockID")
	if err := app.workoutService.SaveBlockTimer(ctx, date, blockID, req.ElapsedSeconds, req.Running); err != nil {
		app.serviceError(w, r, err)
		return
	}
	timers, err := app.workoutService.BlockTimers(ctx, date)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	for _, t := range timers {
		if t.BlockID == blockID {
			app.writeJSON(w, r, http.StatusOK, newTimerResponse(t))
			return
		}
	}
	app.serviceError(w, r, workout.ErrNotFound)
}
