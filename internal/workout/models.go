package workout

import (
	"time"

	"github.com/myrjola/stride/internal/program"
)

// Origin anchors a user's calendar to a program. Moving the start date shifts every date's position in the program.
type Origin struct {
	StartDate time.Time
	PlanID    string
}

// Completion records whether a trackable exercise was done on a date.
type Completion struct {
	ExerciseID  string
	Date        time.Time
	Completed   bool
	Notes       string
	CompletedAt *time.Time
}

// BlockTimer is the stopwatch state of a block on a date.
type BlockTimer struct {
	BlockID        string
	Date           time.Time
	ElapsedSeconds int
	Running        bool
	Updated        time.Time
}

// DayProgress counts trackable exercises only. Guidance entries never count.
type DayProgress struct {
	Completed int
	Total     int
}

// Day is the generated workout of a date together with what the user has recorded for it.
type Day struct {
	Date        time.Time
	Meta        program.Meta
	Blocks      []program.Block
	Completions map[string]Completion
	Timers      []BlockTimer
	Progress    DayProgress
}

// ScheduleDay previews a date without its exercise details.
type ScheduleDay struct {
	Date       time.Time
	Meta       program.Meta
	BlockNames []string
	Minutes    int
	Progress   DayProgress
}

// FeatureFlag toggles behavior at runtime.
type FeatureFlag struct {
	Name    string
	Enabled bool
}

const maintenanceModeFlag = "maintenance_mode"

// Setting is a raw per-user key-value pair.
type Setting struct {
	Key     string
	Value   string
	Updated time.Time
}

// ExportData holds every row stored for the user.
type ExportData struct {
	Handle      string
	ExportedAt  time.Time
	Origin      Origin
	Settings    []Setting
	Completions []Completion
	Timers      []BlockTimer
}
