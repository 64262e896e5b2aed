package main

import (
	"net/http"
	"time"
)

func (app *application) programGET(w http.ResponseWriter, r *http.Request) {
	plan := app.workoutService.Plan()
	defs := plan.Phases()
	phases := make([]phaseResponse, len(defs))
	for i, def := range defs {
		focus, err := app.renderMarkdownList(def.Focus)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		phases[i] = phaseResponse{PhaseDefinition: def, FocusHTML: focus}
	}
	app.writeJSON(w, r, http.StatusOK, programResponse{
		ID:         plan.ID(),
		TotalWeeks: plan.TotalWeeks(),
		Rotation:   plan.Rotation(),
		Phases:     phases,
	})
}

func (app *application) originGET(w http.ResponseWriter, r *http.Request) {
	origin, err := app.workoutService.Origin(r.Context())
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newOriginResponse(origin))
}

type originRequest struct {
	StartDate string `json:"start_date"`
}

func (app *application) originPUT(w http.ResponseWriter, r *http.Request) {
	var req originRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		app.errorJSON(w, r, http.StatusUnprocessableEntity, "start_date: want YYYY-MM-DD")
		return
	}
	origin, err := app.workoutService.SetStartDate(r.Context(), start)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newOriginResponse(origin))
}

type pushRequest struct {
	Days int `json:"days"`
}

// programPushPOST moves the start date earlier so that the program advances by the given number of days.
func (app *application) programPushPOST(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	origin, err := app.workoutService.PushForward(r.Context(), req.Days)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newOriginResponse(origin))
}

func (app *application) programResetPOST(w http.ResponseWriter, r *http.Request) {
	origin, err := app.workoutService.ResetProgram(r.Context())
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newOriginResponse(origin))
}
