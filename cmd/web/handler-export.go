package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/myrjola/stride/internal/errors"
)

// exportGET downloads everything stored for the device, as JSON by default or as a standalone SQLite database with
// ?format=sqlite.
func (app *application) exportGET(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		app.exportJSON(w, r)
	case "sqlite":
		app.exportSQLite(w, r)
	default:
		app.errorJSON(w, r, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
	}
}

func (app *application) exportJSON(w http.ResponseWriter, r *http.Request) {
	data, err := app.workoutService.ExportData(r.Context())
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("stride-export-%s.json", data.ExportedAt.Format(time.DateOnly))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	app.writeJSON(w, r, http.StatusOK, newExportResponse(data))
}

func (app *application) exportSQLite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dir, err := os.MkdirTemp(app.exportDir, "stride-export-*")
	if err != nil {
		app.serverError(w, r, fmt.Errorf("create export directory: %w", err))
		return
	}
	defer func() {
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			app.logger.LogAttrs(ctx, slog.LevelError, "failed to remove export directory",
				slog.String("dir", dir), errors.SlogError(removeErr))
		}
	}()

	path, err := app.workoutService.ExportDatabase(ctx, dir)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		app.serverError(w, r, fmt.Errorf("open export: %w", err))
		return
	}
	defer func() {
		_ = f.Close()
	}()
	info, err := f.Stat()
	if err != nil {
		app.serverError(w, r, fmt.Errorf("stat export: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
