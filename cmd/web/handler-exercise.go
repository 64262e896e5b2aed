package main

import (
	"net/http"
)

// exerciseGET serves an exercise definition with its markdown rendered to HTML alongside the source.
func (app *application) exerciseGET(w http.ResponseWriter, r *http.Request) {
	exercise, ok := app.workoutService.Plan().Exercise(r.PathValue("exerciseID"))
	if !ok {
		app.notFound(w, r)
		return
	}

	var (
		resp = exerciseResponse{Exercise: exercise} //nolint:exhaustruct // filled below
		err  error
	)
	if resp.DescriptionHTML, err = app.renderMarkdown(exercise.Description); err != nil {
		app.serverError(w, r, err)
		return
	}
	if resp.InstructionsHTML, err = app.renderMarkdownList(exercise.Instructions); err != nil {
		app.serverError(w, r, err)
		return
	}
	if resp.CommonMistakesHTML, err = app.renderMarkdownList(exercise.CommonMistakes); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}
