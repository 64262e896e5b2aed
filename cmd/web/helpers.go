package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/myrjola/stride/internal/errors"
	"github.com/myrjola/stride/internal/workout"
)

const maxRequestBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(body); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "failed to write response", errors.SlogError(err))
	}
}

func (app *application) errorJSON(w http.ResponseWriter, r *http.Request, status int, msg string) {
	app.writeJSON(w, r, status, errorResponse{Error: msg})
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.errorJSON(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.errorJSON(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// serviceError maps workout service errors to responses. Anything unrecognized is a server error.
func (app *application) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workout.ErrInvalidInput):
		app.errorJSON(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workout.ErrUnknownExercise),
		errors.Is(err, workout.ErrUnknownBlock),
		errors.Is(err, workout.ErrNotFound):
		app.errorJSON(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, workout.ErrUnauthenticated):
		app.errorJSON(w, r, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	default:
		app.serverError(w, r, err)
	}
}

// decodeJSON reads a single JSON object into dst. Unknown fields and trailing data are rejected with 400.
func (app *application) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		app.errorJSON(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		app.errorJSON(w, r, http.StatusBadRequest, "request body must contain a single JSON object")
		return false
	}
	return true
}

// parseDate parses s as YYYY-MM-DD. The literal "today" and the empty string resolve to the server's calendar date.
func (app *application) parseDate(s string) (time.Time, error) {
	if s == "" || s == "today" {
		return app.workoutService.Today(), nil
	}
	date, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return date, nil
}

// parseDateParam parses the "date" path parameter from the request URL.
// On failure, sends HTTP 404 response automatically.
func (app *application) parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := app.parseDate(r.PathValue("date"))
	if err != nil {
		app.notFound(w, r)
		return time.Time{}, false
	}
	return date, true
}

// parseDateQuery parses an optional date query parameter, defaulting to today.
// On failure, sends HTTP 400 response automatically.
func (app *application) parseDateQuery(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	date, err := app.parseDate(r.URL.Query().Get(key))
	if err != nil {
		app.errorJSON(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s: want YYYY-MM-DD", key))
		return time.Time{}, false
	}
	return date, true
}

// parseIntQuery parses an optional integer query parameter.
// On failure, sends HTTP 400 response automatically.
func (app *application) parseIntQuery(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		app.errorJSON(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s: want an integer", key))
		return 0, false
	}
	return n, true
}
