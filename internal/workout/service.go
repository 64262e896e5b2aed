// Package workout serves the generated program to users and stores what they record against it.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/stride/internal/contexthelpers"
	"github.com/myrjola/stride/internal/metrics"
	"github.com/myrjola/stride/internal/program"
	"github.com/myrjola/stride/internal/ptr"
	"github.com/myrjola/stride/internal/sqlite"
	"golang.org/x/sync/errgroup"
)

const (
	settingStartDate = "programStartDate"
	settingPlanID    = "programPlanId"

	// MaxScheduleDays bounds schedule previews to six weeks.
	MaxScheduleDays = 42
	maxNotesLength  = 2000
)

var (
	// ErrUnknownExercise is returned for ids that are not trackable exercises of the plan.
	ErrUnknownExercise = errors.New("unknown exercise")
	// ErrUnknownBlock is returned for ids that are not blocks of the generated day.
	ErrUnknownBlock = errors.New("unknown block")
	// ErrInvalidInput is returned when arguments are out of range.
	ErrInvalidInput = errors.New("invalid input")
)

// Service handles the business logic for the program.
type Service struct {
	repo    *repository
	db      *sqlite.Database
	logger  *slog.Logger
	plan    *program.Plan
	cache   *blockCache
	metrics *metrics.Manager
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now. The clock decides what "today" means for new origins and completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCacheBytes sizes the generated workout cache.
func WithCacheBytes(n int) Option {
	return func(s *Service) {
		s.cache = newBlockCache(n, s.logger, s.metrics)
	}
}

// NewService creates a new workout service.
func NewService(
	db *sqlite.Database,
	logger *slog.Logger,
	plan *program.Plan,
	m *metrics.Manager,
	opts ...Option,
) *Service {
	factory := newRepositoryFactory(db, logger)
	s := &Service{
		repo:    factory.newRepository(),
		db:      db,
		logger:  logger,
		plan:    plan,
		cache:   nil,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = newBlockCache(DefaultCacheBytes, logger, m)
	}
	return s
}

// Plan returns the program served by s.
func (s *Service) Plan() *program.Plan {
	return s.plan
}

// Today returns the current calendar date.
func (s *Service) Today() time.Time {
	return program.CalendarDate(s.now())
}

// Origin returns the program origin of the user, initializing it to start today on first use.
func (s *Service) Origin(ctx context.Context) (Origin, error) {
	start, err := s.setting(ctx, settingStartDate, formatDate(s.Today()))
	if err != nil {
		return Origin{}, err
	}
	planID, err := s.setting(ctx, settingPlanID, s.plan.ID())
	if err != nil {
		return Origin{}, err
	}

	startDate, err := parseDate(start)
	if err != nil {
		return Origin{}, fmt.Errorf("parse start date %q: %w", start, err)
	}
	return Origin{StartDate: startDate, PlanID: planID}, nil
}

// setting reads key and stores fallback only when the key is missing, so reads stay off the write connection.
func (s *Service) setting(ctx context.Context, key, fallback string) (string, error) {
	setting, err := s.repo.settings.Get(ctx, key)
	if err == nil {
		return setting.Value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	value, err := s.repo.settings.SetIfAbsent(ctx, key, fallback)
	if err != nil {
		return "", fmt.Errorf("ensure setting %s: %w", key, err)
	}
	return value, nil
}

// SetStartDate moves the program start. Both settings are written in one transaction with the plan id reset to
// the served plan.
func (s *Service) SetStartDate(ctx context.Context, start time.Time) (Origin, error) {
	origin := Origin{StartDate: program.CalendarDate(start), PlanID: s.plan.ID()}
	if err := s.repo.settings.SetMany(ctx, map[string]string{
		settingStartDate: formatDate(origin.StartDate),
		settingPlanID:    origin.PlanID,
	}); err != nil {
		return Origin{}, fmt.Errorf("set start date: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "moved program start",
		slog.String("start_date", formatDate(origin.StartDate)))
	return origin, nil
}

// PushForward delays the program by days. The start date moves days earlier so every date lands further along.
func (s *Service) PushForward(ctx context.Context, days int) (Origin, error) {
	if days < 1 || days > MaxScheduleDays {
		return Origin{}, fmt.Errorf("%w: push forward by %d days", ErrInvalidInput, days)
	}
	origin, err := s.Origin(ctx)
	if err != nil {
		return Origin{}, err
	}
	return s.SetStartDate(ctx, origin.StartDate.AddDate(0, 0, -days))
}

// ResetProgram restarts the program today.
func (s *Service) ResetProgram(ctx context.Context) (Origin, error) {
	return s.SetStartDate(ctx, s.Today())
}

// blocks resolves date against origin and generates its blocks through the cache.
func (s *Service) blocks(ctx context.Context, date time.Time, origin Origin) (program.Meta, []program.Block) {
	meta := s.plan.Resolve(date, origin.StartDate, origin.PlanID)
	if blocks, ok := s.cache.get(ctx, date, origin); ok {
		return meta, blocks
	}
	blocks := s.plan.Generate(meta)
	s.metrics.CounterGenerations.WithLabelValues(string(meta.Phase), string(meta.Day)).Inc()
	s.cache.set(ctx, date, origin, blocks)
	return meta, blocks
}

// Workout returns the generated workout of date with the user's completions and block timers.
func (s *Service) Workout(ctx context.Context, date time.Time) (Day, error) {
	date = program.CalendarDate(date)
	origin, err := s.Origin(ctx)
	if err != nil {
		return Day{}, err
	}
	meta, blocks := s.blocks(ctx, date, origin)

	completions, err := s.Completions(ctx, date)
	if err != nil {
		return Day{}, err
	}
	timers, err := s.repo.timers.ListByDate(ctx, date)
	if err != nil {
		return Day{}, fmt.Errorf("list block timers %s: %w", formatDate(date), err)
	}

	byID := make(map[string]Completion, len(completions))
	for _, c := range completions {
		byID[c.ExerciseID] = c
	}
	return Day{
		Date:        date,
		Meta:        meta,
		Blocks:      blocks,
		Completions: byID,
		Timers:      timers,
		Progress:    dayProgress(blocks, byID),
	}, nil
}

func dayProgress(blocks []program.Block, completions map[string]Completion) DayProgress {
	ids := program.TrackableIDs(blocks)
	p := DayProgress{Completed: 0, Total: len(ids)}
	for _, id := range ids {
		if completions[id].Completed {
			p.Completed++
		}
	}
	return p
}

// Schedule previews days consecutive dates starting at from. Each date is resolved and its completions are loaded
// concurrently.
func (s *Service) Schedule(ctx context.Context, from time.Time, days int) ([]ScheduleDay, error) {
	if days < 1 || days > MaxScheduleDays {
		return nil, fmt.Errorf("%w: schedule of %d days", ErrInvalidInput, days)
	}
	from = program.CalendarDate(from)
	origin, err := s.Origin(ctx)
	if err != nil {
		return nil, err
	}

	schedule := make([]ScheduleDay, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4) //nolint:mnd // matches the read pool comfortably
	for i := range days {
		g.Go(func() error {
			date := from.AddDate(0, 0, i)
			meta, blocks := s.blocks(gctx, date, origin)
			completions, err := s.Completions(gctx, date)
			if err != nil {
				return err
			}
			byID := make(map[string]Completion, len(completions))
			for _, c := range completions {
				byID[c.ExerciseID] = c
			}

			names := make([]string, len(blocks))
			minutes := 0
			for j, b := range blocks {
				names[j] = b.Name
				minutes += b.EstimatedMinutes
			}
			schedule[i] = ScheduleDay{
				Date:       date,
				Meta:       meta,
				BlockNames: names,
				Minutes:    minutes,
				Progress:   dayProgress(blocks, byID),
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return schedule, nil
}

// SetCompletion records whether exerciseID was done on date. Notes longer than 2000 characters are rejected.
func (s *Service) SetCompletion(
	ctx context.Context,
	date time.Time,
	exerciseID string,
	completed bool,
	notes string,
) (Completion, error) {
	if !s.plan.Trackable(exerciseID) {
		return Completion{}, fmt.Errorf("%w: %s", ErrUnknownExercise, exerciseID)
	}
	if len([]rune(notes)) > maxNotesLength {
		return Completion{}, fmt.Errorf("%w: notes longer than %d characters", ErrInvalidInput, maxNotesLength)
	}

	c := Completion{
		ExerciseID:  exerciseID,
		Date:        program.CalendarDate(date),
		Completed:   completed,
		Notes:       notes,
		CompletedAt: nil,
	}
	if completed {
		c.CompletedAt = ptr.Ref(s.now().UTC())
	}
	if err := s.repo.completions.Upsert(ctx, c); err != nil {
		return Completion{}, fmt.Errorf("save completion: %w", err)
	}
	s.metrics.CounterCompletions.WithLabelValues(fmt.Sprint(completed)).Inc()
	return c, nil
}

// DeleteCompletion removes the completion record of exerciseID on date.
func (s *Service) DeleteCompletion(ctx context.Context, date time.Time, exerciseID string) error {
	if err := s.repo.completions.Delete(ctx, program.CalendarDate(date), exerciseID); err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// Completions lists the completion records of date.
func (s *Service) Completions(ctx context.Context, date time.Time) ([]Completion, error) {
	date = program.CalendarDate(date)
	completions, err := s.repo.completions.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list completions %s: %w", formatDate(date), err)
	}
	return completions, nil
}

// SaveBlockTimer stores the stopwatch state of blockID on date. The block must be part of that date's workout.
func (s *Service) SaveBlockTimer(
	ctx context.Context,
	date time.Time,
	blockID string,
	elapsedSeconds int,
	running bool,
) error {
	if elapsedSeconds < 0 {
		return fmt.Errorf("%w: negative elapsed seconds", ErrInvalidInput)
	}
	date = program.CalendarDate(date)
	origin, err := s.Origin(ctx)
	if err != nil {
		return err
	}
	_, blocks := s.blocks(ctx, date, origin)
	found := false
	for _, b := range blocks {
		if b.ID == blockID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s on %s", ErrUnknownBlock, blockID, formatDate(date))
	}

	t := BlockTimer{BlockID: blockID, Date: date, ElapsedSeconds: elapsedSeconds, Running: running, Updated: time.Time{}}
	if err = s.repo.timers.Upsert(ctx, t); err != nil {
		return fmt.Errorf("save block timer: %w", err)
	}
	return nil
}

// BlockTimers lists the block timers of date.
func (s *Service) BlockTimers(ctx context.Context, date time.Time) ([]BlockTimer, error) {
	timers, err := s.repo.timers.ListByDate(ctx, program.CalendarDate(date))
	if err != nil {
		return nil, fmt.Errorf("list block timers: %w", err)
	}
	return timers, nil
}

// Progress summarizes the user's history as of today.
func (s *Service) Progress(ctx context.Context, today time.Time) (Progress, error) {
	completions, err := s.repo.completions.ListAll(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("list completions: %w", err)
	}
	return computeProgress(completions, today, func(id string) string {
		e, _ := s.plan.Exercise(id)
		return e.Name
	}), nil
}

// ExportData collects every row stored for the user.
func (s *Service) ExportData(ctx context.Context) (ExportData, error) {
	origin, err := s.Origin(ctx)
	if err != nil {
		return ExportData{}, err
	}
	settings, err := s.repo.settings.List(ctx)
	if err != nil {
		return ExportData{}, fmt.Errorf("list settings: %w", err)
	}
	completions, err := s.repo.completions.ListAll(ctx)
	if err != nil {
		return ExportData{}, fmt.Errorf("list completions: %w", err)
	}
	timers, err := s.repo.timers.ListAll(ctx)
	if err != nil {
		return ExportData{}, fmt.Errorf("list block timers: %w", err)
	}
	return ExportData{
		Handle:      contexthelpers.DeviceHandle(ctx),
		ExportedAt:  s.now().UTC(),
		Origin:      origin,
		Settings:    settings,
		Completions: completions,
		Timers:      timers,
	}, nil
}

// ExportDatabase writes the user's rows into a standalone SQLite file under dir and returns its path.
func (s *Service) ExportDatabase(ctx context.Context, dir string) (string, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return "", ErrUnauthenticated
	}
	path, err := s.db.ExportUser(ctx, userID, dir)
	if err != nil {
		return "", fmt.Errorf("export user database: %w", err)
	}
	return path, nil
}

// IsMaintenanceModeEnabled checks if maintenance mode is enabled. A missing flag means disabled.
func (s *Service) IsMaintenanceModeEnabled(ctx context.Context) (bool, error) {
	flag, err := s.repo.flags.Get(ctx, maintenanceModeFlag)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get maintenance mode flag: %w", err)
	}
	return flag.Enabled, nil
}
