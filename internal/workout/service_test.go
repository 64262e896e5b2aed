package workout_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/stride/internal/contexthelpers"
	"github.com/myrjola/stride/internal/metrics"
	"github.com/myrjola/stride/internal/program"
	"github.com/myrjola/stride/internal/sqlite"
	"github.com/myrjola/stride/internal/testhelpers"
	"github.com/myrjola/stride/internal/workout"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// clock is a settable clock shared by a test and its service.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc     *workout.Service
	db      *sqlite.Database
	clock   *clock
	metrics *metrics.Manager
}

// newFixture returns a service over a fresh in-memory database and a context authenticated as a new user.
func newFixture(t *testing.T, today string) (fixture, context.Context) {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))

	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var userID int
	if err = db.ReadWrite.QueryRowContext(ctx,
		"INSERT INTO users (handle) VALUES (?) RETURNING id", "test-device").Scan(&userID); err != nil {
		t.Fatalf("Failed to insert test user: %v", err)
	}

	c := &clock{now: date(t, today).Add(9 * time.Hour)}
	m := metrics.NewTestManager()
	plan := program.MustLoadReference(program.WithLogger(logger))
	svc := workout.NewService(db, logger, plan, m, workout.WithClock(c.Now), workout.WithCacheBytes(workout.DefaultCacheBytes))
	return fixture{svc: svc, db: db, clock: c, metrics: m}, contexthelpers.WithUser(ctx, userID, "test-device")
}

func TestService_Origin(t *testing.T) {
	f, ctx := newFixture(t, "2024-03-10")

	origin, err := f.svc.Origin(ctx)
	if err != nil {
		t.Fatalf("Origin() error = %v", err)
	}
	want := workout.Origin{StartDate: date(t, "2024-03-10"), PlanID: program.ReferencePlanID}
	if diff := cmp.Diff(want, origin); diff != "" {
		t.Errorf("Origin mismatch (-want +got):\n%s", diff)
	}

	// The origin is fixed on first use and does not follow the clock.
	f.clock.Set(date(t, "2024-03-20"))
	if origin, err = f.svc.Origin(ctx); err != nil {
		t.Fatalf("Origin() error = %v", err)
	}
	if diff := cmp.Diff(want, origin); diff != "" {
		t.Errorf("Origin moved (-want +got):\n%s", diff)
	}
}

func TestService_Origin_unauthenticated(t *testing.T) {
	f, _ := newFixture(t, "2024-03-10")
	if _, err := f.svc.Origin(t.Context()); !errors.Is(err, workout.ErrUnauthenticated) {
		t.Errorf("Origin() error = %v, want ErrUnauthenticated", err)
	}
	if _, err := f.svc.SetStartDate(t.Context(), date(t, "2024-01-01")); !errors.Is(err, workout.ErrUnauthenticated) {
		t.Errorf("SetStartDate() error = %v, want ErrUnauthenticated", err)
	}
}

func TestService_Origin_readsWithoutWriteConnection(t *testing.T) {
	f, ctx := newFixture(t, "2024-03-10")
	if _, err := f.svc.Origin(ctx); err != nil {
		t.Fatal(err)
	}

	// The write pool has a single connection. Holding it makes every write wait until the deadline.
	conn, err := f.db.ReadWrite.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	origin, err := f.svc.Origin(readCtx)
	if err != nil {
		t.Fatalf("Origin() error = %v", err)
	}
	if !origin.StartDate.Equal(date(t, "2024-03-10")) {
		t.Errorf("Start = %s, want 2024-03-10", origin.StartDate.Format(time.DateOnly))
	}
	if _, err = f.svc.Workout(readCtx, date(t, "2024-03-12")); err != nil {
		t.Errorf("Workout() error = %v", err)
	}
	if _, err = f.svc.Schedule(readCtx, date(t, "2024-03-10"), 7); err != nil {
		t.Errorf("Schedule() error = %v", err)
	}
}

func TestService_Origin_isolatedPerUser(t *testing.T) {
	f, ctx := newFixture(t, "2024-03-10")
	if _, err := f.svc.SetStartDate(ctx, date(t, "2024-01-01")); err != nil {
		t.Fatal(err)
	}

	var otherID int
	if err := f.db.ReadWrite.QueryRowContext(ctx,
		"INSERT INTO users (handle) VALUES ('other') RETURNING id").Scan(&otherID); err != nil {
		t.Fatal(err)
	}
	other, err := f.svc.Origin(contexthelpers.WithUser(t.Context(), otherID, "other"))
	if err != nil {
		t.Fatal(err)
	}
	if !other.StartDate.Equal(date(t, "2024-03-10")) {
		t.Errorf("Other user's start = %s, want 2024-03-10", other.StartDate.Format(time.DateOnly))
	}
}

func TestService_Workout(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")

	day, err := f.svc.Workout(ctx, date(t, "2024-01-01"))
	if err != nil {
		t.Fatalf("Workout() error = %v", err)
	}
	if day.Meta.Phase != program.PhaseFoundation || day.Meta.Day != program.DayA || day.Meta.Week != 1 {
		t.Errorf("Got meta %+v, want P1 day A week 1", day.Meta)
	}
	var ids []string
	for _, b := range day.Blocks {
		ids = append(ids, b.ID)
	}
	if diff := cmp.Diff([]string{"rules-global", "daily-hip", "p1-a-core", "p1-a-cardio"}, ids); diff != "" {
		t.Errorf("Blocks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(workout.DayProgress{Completed: 0, Total: 7}, day.Progress); diff != "" {
		t.Errorf("Progress mismatch (-want +got):\n%s", diff)
	}

	if _, err = f.svc.SetCompletion(ctx, date(t, "2024-01-01"), "p1-bird-dog", true, "felt fine"); err != nil {
		t.Fatalf("SetCompletion() error = %v", err)
	}
	if _, err = f.svc.SetCompletion(ctx, date(t, "2024-01-01"), "p1-elliptical", false, ""); err != nil {
		t.Fatalf("SetCompletion() error = %v", err)
	}
	if day, err = f.svc.Workout(ctx, date(t, "2024-01-01")); err != nil {
		t.Fatalf("Workout() error = %v", err)
	}
	if diff := cmp.Diff(workout.DayProgress{Completed: 1, Total: 7}, day.Progress); diff != "" {
		t.Errorf("Progress mismatch (-want +got):\n%s", diff)
	}
	c := day.Completions["p1-bird-dog"]
	if !c.Completed || c.Notes != "felt fine" || c.CompletedAt == nil {
		t.Errorf("Unexpected completion %+v", c)
	}
	if c = day.Completions["p1-elliptical"]; c.Completed || c.CompletedAt != nil {
		t.Errorf("Unexpected incomplete record %+v", c)
	}

	if got := testutil.ToFloat64(f.metrics.CounterCacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("Got %v cache hits, want 1", got)
	}
	if got := testutil.ToFloat64(f.metrics.CounterGenerations.WithLabelValues("P1", "A")); got != 1 {
		t.Errorf("Got %v generations, want 1", got)
	}
}

func TestService_Workout_cachedBlocksAreNotShared(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")
	first, err := f.svc.Workout(ctx, date(t, "2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	first.Blocks[1].Exercises[0].Name = "mutated"

	second, err := f.svc.Workout(ctx, date(t, "2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Blocks[1].Exercises[0].Name == "mutated" {
		t.Error("Mutating a returned workout changed the cached copy")
	}
}

func TestService_PushForward(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-15")

	before, err := f.svc.Workout(ctx, date(t, "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}
	origin, err := f.svc.PushForward(ctx, 7)
	if err != nil {
		t.Fatalf("PushForward() error = %v", err)
	}
	if !origin.StartDate.Equal(date(t, "2024-01-08")) {
		t.Errorf("Start = %s, want 2024-01-08", origin.StartDate.Format(time.DateOnly))
	}
	after, err := f.svc.Workout(ctx, date(t, "2024-01-15"))
	if err != nil {
		t.Fatal(err)
	}
	if after.Meta.Week != before.Meta.Week+1 {
		t.Errorf("Week after push = %d, want %d", after.Meta.Week, before.Meta.Week+1)
	}

	if _, err = f.svc.PushForward(ctx, 0); !errors.Is(err, workout.ErrInvalidInput) {
		t.Errorf("PushForward(0) error = %v, want ErrInvalidInput", err)
	}
}

func TestService_ResetProgram(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")
	if _, err := f.svc.SetStartDate(ctx, date(t, "2023-06-01")); err != nil {
		t.Fatal(err)
	}
	f.clock.Set(date(t, "2024-02-02"))
	origin, err := f.svc.ResetProgram(ctx)
	if err != nil {
		t.Fatalf("ResetProgram() error = %v", err)
	}
	if !origin.StartDate.Equal(date(t, "2024-02-02")) {
		t.Errorf("Start = %s, want 2024-02-02", origin.StartDate.Format(time.DateOnly))
	}
	day, err := f.svc.Workout(ctx, date(t, "2024-02-02"))
	if err != nil {
		t.Fatal(err)
	}
	if day.Meta.Week != 1 || day.Meta.Day != program.DayA {
		t.Errorf("Got %+v after reset, want week 1 day A", day.Meta)
	}
}

func TestService_SetCompletion_validation(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")

	tests := []struct {
		name       string
		exerciseID string
		notes      string
		wantErr    error
	}{
		{"Unknown exercise", "p9-moonwalk", "", workout.ErrUnknownExercise},
		{"Guidance entry", "rules-load-management", "", workout.ErrUnknownExercise},
		{"Notes too long", "p1-bird-dog", strings.Repeat("x", 2001), workout.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetCompletion(ctx, date(t, "2024-01-01"), tt.exerciseID, true, tt.notes)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetCompletion() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_DeleteCompletion(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")
	d := date(t, "2024-01-01")
	if _, err := f.svc.SetCompletion(ctx, d, "p1-bird-dog", true, ""); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteCompletion(ctx, d, "p1-bird-dog"); err != nil {
		t.Fatalf("DeleteCompletion() error = %v", err)
	}
	completions, err := f.svc.Completions(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(completions) != 0 {
		t.Errorf("Got %d completions after delete, want 0", len(completions))
	}
	if err = f.svc.DeleteCompletion(ctx, d, "p1-bird-dog"); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("Second DeleteCompletion() error = %v, want ErrNotFound", err)
	}
}

func TestService_BlockTimers(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")
	d := date(t, "2024-01-01")

	if err := f.svc.SaveBlockTimer(ctx, d, "p1-a-core", 90, true); err != nil {
		t.Fatalf("SaveBlockTimer() error = %v", err)
	}
	if err := f.svc.SaveBlockTimer(ctx, d, "p1-a-core", 120, false); err != nil {
		t.Fatalf("SaveBlockTimer() error = %v", err)
	}
	if err := f.svc.SaveBlockTimer(ctx, d, "p1-b-knee", 10, true); !errors.Is(err, workout.ErrUnknownBlock) {
		t.Errorf("SaveBlockTimer() for another day's block error = %v, want ErrUnknownBlock", err)
	}
	if err := f.svc.SaveBlockTimer(ctx, d, "p1-a-core", -1, false); !errors.Is(err, workout.ErrInvalidInput) {
		t.Errorf("SaveBlockTimer() with negative seconds error = %v, want ErrInvalidInput", err)
	}

	timers, err := f.svc.BlockTimers(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(timers) != 1 {
		t.Fatalf("Got %d timers, want 1", len(timers))
	}
	if timers[0].ElapsedSeconds != 120 || timers[0].Running {
		t.Errorf("Unexpected timer %+v", timers[0])
	}
}

func TestService_Schedule(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")
	if _, err := f.svc.SetCompletion(ctx, date(t, "2024-01-02"), "p1-quad-sets", true, ""); err != nil {
		t.Fatal(err)
	}

	schedule, err := f.svc.Schedule(ctx, date(t, "2024-01-01"), 7)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if len(schedule) != 7 {
		t.Fatalf("Got %d days, want 7", len(schedule))
	}
	var days []program.Day
	for i, d := range schedule {
		if want := date(t, "2024-01-01").AddDate(0, 0, i); !d.Date.Equal(want) {
			t.Errorf("Day %d date = %s, want %s", i, d.Date.Format(time.DateOnly), want.Format(time.DateOnly))
		}
		days = append(days, d.Meta.Day)
	}
	if diff := cmp.Diff([]program.Day{"A", "B", "C", "A", "B", "C", "A"}, days); diff != "" {
		t.Errorf("Rotation mismatch (-want +got):\n%s", diff)
	}
	if schedule[1].Progress.Completed != 1 {
		t.Errorf("Day B completed = %d, want 1", schedule[1].Progress.Completed)
	}
	if schedule[0].BlockNames[0] == "" || schedule[0].Minutes == 0 {
		t.Errorf("Missing preview details: %+v", schedule[0])
	}

	for _, n := range []int{0, workout.MaxScheduleDays + 1} {
		if _, err = f.svc.Schedule(ctx, date(t, "2024-01-01"), n); !errors.Is(err, workout.ErrInvalidInput) {
			t.Errorf("Schedule(%d) error = %v, want ErrInvalidInput", n, err)
		}
	}
}

func TestService_Progress(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-05", "2024-01-06"} {
		if _, err := f.svc.SetCompletion(ctx, date(t, d), "piriformis-90-90", true, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.SetCompletion(ctx, date(t, "2024-01-04"), "piriformis-90-90", false, ""); err != nil {
		t.Fatal(err)
	}

	p, err := f.svc.Progress(ctx, date(t, "2024-01-07"))
	if err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if p.TotalWorkouts != 5 || p.CurrentStreak != 2 || p.LongestStreak != 3 {
		t.Errorf("Got total %d, current %d, longest %d, want 5, 2, 3",
			p.TotalWorkouts, p.CurrentStreak, p.LongestStreak)
	}
	if len(p.Exercises) != 1 || p.Exercises[0].Name == "piriformis-90-90" || p.Exercises[0].TimesCompleted != 5 {
		t.Errorf("Unexpected exercise stats %+v", p.Exercises)
	}
}

func TestService_ExportData(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")
	if _, err := f.svc.SetCompletion(ctx, date(t, "2024-01-01"), "p1-bird-dog", true, ""); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SaveBlockTimer(ctx, date(t, "2024-01-01"), "p1-a-core", 30, false); err != nil {
		t.Fatal(err)
	}

	data, err := f.svc.ExportData(ctx)
	if err != nil {
		t.Fatalf("ExportData() error = %v", err)
	}
	if data.Handle != "test-device" || len(data.Completions) != 1 || len(data.Timers) != 1 || len(data.Settings) != 2 {
		t.Errorf("Unexpected export %+v", data)
	}

	path, err := f.svc.ExportDatabase(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("ExportDatabase() error = %v", err)
	}
	if !strings.HasSuffix(path, ".sqlite3") {
		t.Errorf("Unexpected export path %q", path)
	}
}

func TestService_FeatureFlags(t *testing.T) {
	f, ctx := newFixture(t, "2024-01-01")

	enabled, err := f.svc.IsMaintenanceModeEnabled(ctx)
	if err != nil || enabled {
		t.Fatalf("IsMaintenanceModeEnabled() = %t, %v, want false, nil", enabled, err)
	}
	if _, err = f.db.ReadWrite.ExecContext(ctx,
		"UPDATE feature_flags SET enabled = 1 WHERE name = 'maintenance_mode'"); err != nil {
		t.Fatal(err)
	}
	if enabled, err = f.svc.IsMaintenanceModeEnabled(ctx); err != nil || !enabled {
		t.Errorf("IsMaintenanceModeEnabled() = %t, %v, want true, nil", enabled, err)
	}

	if _, err = f.db.ReadWrite.ExecContext(ctx, "DELETE FROM feature_flags"); err != nil {
		t.Fatal(err)
	}
	if enabled, err = f.svc.IsMaintenanceModeEnabled(ctx); err != nil || enabled {
		t.Errorf("IsMaintenanceModeEnabled() without a flag = %t, %v, want false, nil", enabled, err)
	}
}
