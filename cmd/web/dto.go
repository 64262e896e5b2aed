package main

import (
	"time"

	"github.com/myrjola/stride/internal/program"
	"github.com/myrjola/stride/internal/workout"
)

// Response bodies. Dates are YYYY-MM-DD strings and timestamps RFC 3339.

type originResponse struct {
	StartDate string `json:"start_date"`
	PlanID    string `json:"plan_id"`
}

func newOriginResponse(o workout.Origin) originResponse {
	return originResponse{StartDate: o.StartDate.Format(time.DateOnly), PlanID: o.PlanID}
}

type metaResponse struct {
	PlanID    string        `json:"plan_id"`
	StartDate string        `json:"start_date"`
	Week      int           `json:"week"`
	Phase     program.Phase `json:"phase"`
	PhaseWeek int           `json:"phase_week"`
	Day       program.Day   `json:"day"`
}

func newMetaResponse(m program.Meta) metaResponse {
	return metaResponse{
		PlanID:    m.PlanID,
		StartDate: m.StartDate.Format(time.DateOnly),
		Week:      m.Week,
		Phase:     m.Phase,
		PhaseWeek: m.PhaseWeek,
		Day:       m.Day,
	}
}

type phaseResponse struct {
	program.PhaseDefinition

	// FocusHTML holds Focus rendered from markdown.
	FocusHTML []string `json:"focus_html"`
}

type programResponse struct {
	ID         string          `json:"id"`
	TotalWeeks int             `json:"total_weeks"`
	Rotation   []program.Day   `json:"rotation"`
	Phases     []phaseResponse `json:"phases"`
}

type dayProgressResponse struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func newDayProgressResponse(p workout.DayProgress) dayProgressResponse {
	return dayProgressResponse{Completed: p.Completed, Total: p.Total}
}

type completionResponse struct {
	ExerciseID  string     `json:"exercise_id"`
	Date        string     `json:"date"`
	Completed   bool       `json:"completed"`
	Notes       string     `json:"notes"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newCompletionResponse(c workout.Completion) completionResponse {
	return completionResponse{
		ExerciseID:  c.ExerciseID,
		Date:        c.Date.Format(time.DateOnly),
		Completed:   c.Completed,
		Notes:       c.Notes,
		CompletedAt: c.CompletedAt,
	}
}

type timerResponse struct {
	BlockID        string    `json:"block_id"`
	Date           string    `json:"date"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Running        bool      `json:"running"`
	Updated        time.Time `json:"updated"`
}

func newTimerResponse(t workout.BlockTimer) timerResponse {
	return timerResponse{
		BlockID:        t.BlockID,
		Date:           t.Date.Format(time.DateOnly),
		ElapsedSeconds: t.ElapsedSeconds,
		Running:        t.Running,
		Updated:        t.Updated,
	}
}

type workoutResponse struct {
	Date        string                        `json:"date"`
	Meta        metaResponse                  `json:"meta"`
	Blocks      []program.Block               `json:"blocks"`
	Completions map[string]completionResponse `json:"completions"`
	Timers      []timerResponse               `json:"timers"`
	Progress    dayProgressResponse           `json:"progress"`
}

func newWorkoutResponse(d workout.Day) workoutResponse {
	completions := make(map[string]completionResponse, len(d.Completions))
	for id, c := range d.Completions {
		completions[id] = newCompletionResponse(c)
	}
	timers := make([]timerResponse, len(d.Timers))
	for i, t := range d.Timers {
		timers[i] = newTimerResponse(t)
	}
	return workoutResponse{
		Date:        d.Date.Format(time.DateOnly),
		Meta:        newMetaResponse(d.Meta),
		Blocks:      d.Blocks,
		Completions: completions,
		Timers:      timers,
		Progress:    newDayProgressResponse(d.Progress),
	}
}

type scheduleDayResponse struct {
	Date       string              `json:"date"`
	Meta       metaResponse        `json:"meta"`
	BlockNames []string            `json:"block_names"`
	Minutes    int                 `json:"minutes"`
	Progress   dayProgressResponse `json:"progress"`
}

type exerciseResponse struct {
	program.Exercise

	DescriptionHTML    string   `json:"description_html"`
	InstructionsHTML   []string `json:"instructions_html"`
	CommonMistakesHTML []string `json:"common_mistakes_html"`
}

type weeklyStatResponse struct {
	Week              string  `json:"week"`
	Start             string  `json:"start"`
	End               string  `json:"end"`
	WorkoutsCompleted int     `json:"workouts_completed"`
	CompletionRate    float64 `json:"completion_rate"`
}

type monthlyStatResponse struct {
	Month             string  `json:"month"`
	Name              string  `json:"name"`
	WorkoutsCompleted int     `json:"workouts_completed"`
	CompletionRate    float64 `json:"completion_rate"`
}

type exerciseStatResponse struct {
	ExerciseID     string `json:"exercise_id"`
	Name           string `json:"name"`
	TimesCompleted int    `json:"times_completed"`
	LastCompleted  string `json:"last_completed"`
}

type milestoneResponse struct {
	Kind        workout.MilestoneKind `json:"kind"`
	Value       int                   `json:"value"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Achieved    bool                  `json:"achieved"`
}

type progressResponse struct {
	TotalWorkouts  int                    `json:"total_workouts"`
	CurrentStreak  int                    `json:"current_streak"`
	LongestStreak  int                    `json:"longest_streak"`
	CompletionRate float64                `json:"completion_rate"`
	StreakMessage  string                 `json:"streak_message"`
	Weekly         []weeklyStatResponse   `json:"weekly"`
	Monthly        []monthlyStatResponse  `json:"monthly"`
	Exercises      []exerciseStatResponse `json:"exercises"`
	Milestones     []milestoneResponse    `json:"milestones"`
}

func newProgressResponse(p workout.Progress) progressResponse {
	resp := progressResponse{
		TotalWorkouts:  p.TotalWorkouts,
		CurrentStreak:  p.CurrentStreak,
		LongestStreak:  p.LongestStreak,
		CompletionRate: p.CompletionRate,
		StreakMessage:  p.StreakMessage,
		Weekly:         make([]weeklyStatResponse, len(p.Weekly)),
		Monthly:        make([]monthlyStatResponse, len(p.Monthly)),
		Exercises:      make([]exerciseStatResponse, len(p.Exercises)),
		Milestones:     make([]milestoneResponse, len(p.Milestones)),
	}
	for i, w := range p.Weekly {
		resp.Weekly[i] = weeklyStatResponse{
			Week:              w.Week,
			Start:             w.Start.Format(time.DateOnly),
			End:               w.End.Format(time.DateOnly),
			WorkoutsCompleted: w.WorkoutsCompleted,
			CompletionRate:    w.CompletionRate,
		}
	}
	for i, m := range p.Monthly {
		resp.Monthly[i] = monthlyStatResponse(m)
	}
	for i, e := range p.Exercises {
		resp.Exercises[i] = exerciseStatResponse{
			ExerciseID:     e.ExerciseID,
			Name:           e.Name,
			TimesCompleted: e.TimesCompleted,
			LastCompleted:  e.LastCompleted.Format(time.DateOnly),
		}
	}
	for i, m := range p.Milestones {
		resp.Milestones[i] = milestoneResponse(m)
	}
	return resp
}

type settingResponse struct {
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Updated time.Time `json:"updated"`
}

type exportResponse struct {
	Handle      string               `json:"handle"`
	ExportedAt  time.Time            `json:"exported_at"`
	Origin      originResponse       `json:"origin"`
	Settings    []settingResponse    `json:"settings"`
	Completions []completionResponse `json:"completions"`
	Timers      []timerResponse      `json:"timers"`
}

func newExportResponse(d workout.ExportData) exportResponse {
	resp := exportResponse{
		Handle:      d.Handle,
		ExportedAt:  d.ExportedAt,
		Origin:      newOriginResponse(d.Origin),
		Settings:    make([]settingResponse, len(d.Settings)),
		Completions: make([]completionResponse, len(d.Completions)),
		Timers:      make([]timerResponse, len(d.Timers)),
	}
	for i, s := range d.Settings {
		resp.Settings[i] = settingResponse(s)
	}
	for i, c := range d.Completions {
		resp.Completions[i] = newCompletionResponse(c)
	}
	for i, t := range d.Timers {
		resp.Timers[i] = newTimerResponse(t)
	}
	return resp
}
