package main

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/stride/internal/e2etest"
)

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	var statusErr *e2etest.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected status %d, got error %v", status, err)
	}
	if statusErr.StatusCode != status {
		t.Errorf("Expected status %d, got %d: %s", status, statusErr.StatusCode, statusErr.Body)
	}
}

func Test_application_workout(t *testing.T) {
	var (
		ctx    = t.Context()
		server = startServer(t)
		client = server.Client()
		origin originResponse
		day    workoutResponse
	)

	before := time.Now().Format(time.DateOnly)
	if err := client.GetJSON(ctx, "/api/program/origin", &origin); err != nil {
		t.Fatalf("Failed to get origin: %v", err)
	}
	// The date may roll over during the request.
	if after := time.Now().Format(time.DateOnly); origin.StartDate != before && origin.StartDate != after {
		t.Errorf("New device starts on %s, want today %s", origin.StartDate, after)
	}
	if origin.PlanID != "run5k-24w-v1" {
		t.Errorf("PlanID = %q", origin.PlanID)
	}

	if err := client.DoJSON(ctx, http.MethodPut, "/api/program/origin",
		originRequest{StartDate: "2024-01-15"}, http.StatusOK, &origin); err != nil {
		t.Fatalf("Failed to set origin: %v", err)
	}

	t.Run("Generated day", func(t *testing.T) {
		if err := client.GetJSON(ctx, "/api/workouts/2024-01-15", &day); err != nil {
			t.Fatalf("Failed to get workout: %v", err)
		}
		wantMeta := metaResponse{
			PlanID:    "run5k-24w-v1",
			StartDate: "2024-01-15",
			Week:      1,
			Phase:     "P1",
			PhaseWeek: 1,
			Day:       "A",
		}
		if diff := cmp.Diff(wantMeta, day.Meta); diff != "" {
			t.Errorf("Meta mismatch (-want +got):\n%s", diff)
		}
		var blockIDs []string
		for _, b := range day.Blocks {
			blockIDs = append(blockIDs, b.ID)
		}
		if diff := cmp.Diff([]string{"rules-global", "daily-hip", "p1-a-core", "p1-a-cardio"}, blockIDs); diff != "" {
			t.Errorf("Blocks mismatch (-want +got):\n%s", diff)
		}
		if day.Progress != (dayProgressResponse{Completed: 0, Total: 7}) {
			t.Errorf("Progress = %+v, want 0/7", day.Progress)
		}
	})

	t.Run("Today resolves to the server date", func(t *testing.T) {
		var todays workoutResponse
		if err := client.GetJSON(ctx, "/api/workouts/today", &todays); err != nil {
			t.Fatalf("Failed to get today's workout: %v", err)
		}
		if todays.Date == "" || todays.Meta.StartDate != "2024-01-15" {
			t.Errorf("Unexpected today workout %s starting %s", todays.Date, todays.Meta.StartDate)
		}
	})

	t.Run("Invalid date", func(t *testing.T) {
		wantStatus(t, client.GetJSON(ctx, "/api/workouts/2024-13-01", nil), http.StatusNotFound)
	})

	completionPath := "/api/workouts/2024-01-15/exercises/p1-mcgill-curlup/completion"

	t.Run("Complete an exercise", func(t *testing.T) {
		var c completionResponse
		if err := client.DoJSON(ctx, http.MethodPut, completionPath,
			completionRequest{Completed: true, Notes: "easy"}, http.StatusOK, &c); err != nil {
			t.Fatalf("Failed to save completion: %v", err)
		}
		if !c.Completed || c.CompletedAt == nil || c.Notes != "easy" {
			t.Errorf("Unexpected completion %+v", c)
		}

		if err := client.GetJSON(ctx, "/api/workouts/2024-01-15", &day); err != nil {
			t.Fatalf("Failed to get workout: %v", err)
		}
		if day.Progress.Completed != 1 {
			t.Errorf("Completed = %d, want 1", day.Progress.Completed)
		}
		if got := day.Completions["p1-mcgill-curlup"]; !got.Completed {
			t.Errorf("Completion missing from day: %+v", day.Completions)
		}
	})

	t.Run("Completion validation", func(t *testing.T) {
		wantStatus(t, client.DoJSON(ctx, http.MethodPut,
			"/api/workouts/2024-01-15/exercises/rules-load-management/completion",
			completionRequest{Completed: true, Notes: ""}, http.StatusOK, nil), http.StatusNotFound)
		wantStatus(t, client.DoJSON(ctx, http.MethodPut, completionPath,
			completionRequest{Completed: true, Notes: strings.Repeat("x", 2001)}, http.StatusOK, nil),
			http.StatusUnprocessableEntity)
		wantStatus(t, client.DoJSON(ctx, http.MethodPut, completionPath,
			map[string]any{"completed": true, "extra": 1}, http.StatusOK, nil), http.StatusBadRequest)
	})

	t.Run("Delete completion", func(t *testing.T) {
		path := "/api/workouts/2024-01-15/exercises/p1-bird-dog/completion"
		if err := client.DoJSON(ctx, http.MethodPut, path,
			completionRequest{Completed: false, Notes: "skipped"}, http.StatusOK, nil); err != nil {
			t.Fatalf("Failed to save completion: %v", err)
		}
		if err := client.DoJSON(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil); err != nil {
			t.Fatalf("Failed to delete completion: %v", err)
		}
		wantStatus(t, client.DoJSON(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil), http.StatusNotFound)
	})

	t.Run("Block timer", func(t *testing.T) {
		var timer timerResponse
		if err := client.DoJSON(ctx, http.MethodPut, "/api/workouts/2024-01-15/blocks/daily-hip/timer",
			timerRequest{ElapsedSeconds: 90, Running: true}, http.StatusOK, &timer); err != nil {
			t.Fatalf("Failed to save timer: %v", err)
		}
		if timer.ElapsedSeconds != 90 || !timer.Running {
			t.Errorf("Unexpected timer %+v", timer)
		}

		// p1-b-knee belongs to day B.
		wantStatus(t, client.DoJSON(ctx, http.MethodPut, "/api/workouts/2024-01-15/blocks/p1-b-knee/timer",
			timerRequest{ElapsedSeconds: 10, Running: false}, http.StatusOK, nil), http.StatusNotFound)
		wantStatus(t, client.DoJSON(ctx, http.MethodPut, "/api/workouts/2024-01-15/blocks/daily-hip/timer",
			timerRequest{ElapsedSeconds: -1, Running: false}, http.StatusOK, nil), http.StatusUnprocessableEntity)

		if err := client.GetJSON(ctx, "/api/workouts/2024-01-15", &day); err != nil {
			t.Fatalf("Failed to get workout: %v", err)
		}
		if len(day.Timers) != 1 || day.Timers[0].BlockID != "daily-hip" {
			t.Errorf("Unexpected timers %+v", day.Timers)
		}
	})

	t.Run("Schedule", func(t *testing.T) {
		var schedule []scheduleDayResponse
		if err := client.GetJSON(ctx, "/api/schedule?from=2024-01-15&days=3", &schedule); err != nil {
			t.Fatalf("Failed to get schedule: %v", err)
		}
		var days []string
		for _, d := range schedule {
			days = append(days, string(d.Meta.Day))
		}
		if diff := cmp.Diff([]string{"A", "B", "C"}, days); diff != "" {
			t.Errorf("Rotation mismatch (-want +got):\n%s", diff)
		}
		if schedule[0].Progress.Completed != 1 {
			t.Errorf("First day completed = %d, want 1", schedule[0].Progress.Completed)
		}

		wantStatus(t, client.GetJSON(ctx, "/api/schedule?days=0", nil), http.StatusUnprocessableEntity)
		wantStatus(t, client.GetJSON(ctx, "/api/schedule?days=43", nil), http.StatusUnprocessableEntity)
		wantStatus(t, client.GetJSON(ctx, "/api/schedule?days=week", nil), http.StatusBadRequest)
		wantStatus(t, client.GetJSON(ctx, "/api/schedule?from=yesterday", nil), http.StatusBadRequest)
	})

	t.Run("Progress", func(t *testing.T) {
		var p progressResponse
		if err := client.GetJSON(ctx, "/api/progress?today=2024-01-15", &p); err != nil {
			t.Fatalf("Failed to get progress: %v", err)
		}
		if p.TotalWorkouts != 1 || p.CurrentStreak != 1 {
			t.Errorf("Total %d streak %d, want 1 and 1", p.TotalWorkouts, p.CurrentStreak)
		}
		if len(p.Exercises) != 1 || p.Exercises[0].Name != "McGill Curl-Up" {
			t.Errorf("Unexpected exercise stats %+v", p.Exercises)
		}
		if len(p.Milestones) != 12 {
			t.Errorf("Got %d milestones, want 12", len(p.Milestones))
		}
	})

	t.Run("Push forward and reset", func(t *testing.T) {
		if err := client.DoJSON(ctx, http.MethodPost, "/api/program/push",
			pushRequest{Days: 7}, http.StatusOK, &origin); err != nil {
			t.Fatalf("Failed to push program: %v", err)
		}
		if origin.StartDate != "2024-01-08" {
			t.Errorf("StartDate = %s, want 2024-01-08", origin.StartDate)
		}
		wantStatus(t, client.DoJSON(ctx, http.MethodPost, "/api/program/push",
			pushRequest{Days: 0}, http.StatusOK, nil), http.StatusUnprocessableEntity)

		if err := client.DoJSON(ctx, http.MethodPost, "/api/program/reset", nil, http.StatusOK, &origin); err != nil {
			t.Fatalf("Failed to reset program: %v", err)
		}
		if origin.StartDate == "2024-01-08" {
			t.Error("Reset kept the old start date")
		}
	})
}

func Test_application_devicesAreIsolated(t *testing.T) {
	var (
		ctx    = t.Context()
		server = startServer(t)
		first  = server.Client()
	)
	second, err := first.NewDevice()
	if err != nil {
		t.Fatalf("Failed to create second device: %v", err)
	}

	if err = first.DoJSON(ctx, http.MethodPut, "/api/program/origin",
		originRequest{StartDate: "2024-01-15"}, http.StatusOK, nil); err != nil {
		t.Fatalf("Failed to set origin: %v", err)
	}

	var origin originResponse
	if err = second.GetJSON(ctx, "/api/program/origin", &origin); err != nil {
		t.Fatalf("Failed to get origin: %v", err)
	}
	if origin.StartDate == "2024-01-15" {
		t.Error("Second device sees the first device's origin")
	}
}

func Test_application_forgetDevice(t *testing.T) {
	var (
		ctx    = t.Context()
		server = startServer(t)
		client = server.Client()
		origin originResponse
	)

	if err := client.DoJSON(ctx, http.MethodPut, "/api/program/origin",
		originRequest{StartDate: "2024-01-15"}, http.StatusOK, nil); err != nil {
		t.Fatalf("Failed to set origin: %v", err)
	}
	if err := client.DoJSON(ctx, http.MethodDelete, "/api/device", nil, http.StatusNoContent, nil); err != nil {
		t.Fatalf("Failed to forget device: %v", err)
	}

	var users int
	if err := server.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if users != 0 {
		t.Errorf("Got %d users after forgetting the only device", users)
	}

	if err := client.GetJSON(ctx, "/api/program/origin", &origin); err != nil {
		t.Fatalf("Failed to get origin: %v", err)
	}
	if origin.StartDate == "2024-01-15" {
		t.Error("Forgotten device kept its origin")
	}
}
