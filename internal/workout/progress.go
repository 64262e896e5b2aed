package workout

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/myrjola/stride/internal/program"
)

const (
	streakLookbackDays   = 365
	completionRateWindow = 30
	weeklyStatsLimit     = 12
	monthlyStatsLimit    = 6
	exerciseStatsLimit   = 10
)

//nolint:gochecknoglobals // constant thresholds
var (
	streakMilestones  = []int{3, 7, 14, 30, 50, 100}
	workoutMilestones = []int{10, 25, 50, 100, 200, 500}
)

// Progress summarizes the completion history of a user as of a given day.
type Progress struct {
	// TotalWorkouts is the number of distinct days with at least one completed exercise.
	TotalWorkouts int
	CurrentStreak int
	LongestStreak int
	// CompletionRate is the percentage of the last 30 days that have a workout.
	CompletionRate float64
	Weekly         []WeeklyStat
	Monthly        []MonthlyStat
	Exercises      []ExerciseStat
	Milestones     []Milestone
	StreakMessage  string
}

type WeeklyStat struct {
	// Week is the ISO week formatted as 2024-W01.
	Week              string
	Start             time.Time
	End               time.Time
	WorkoutsCompleted int
	CompletionRate    float64
}

type MonthlyStat struct {
	// Month is formatted as 2024-01.
	Month             string
	Name              string
	WorkoutsCompleted int
	CompletionRate    float64
}

type ExerciseStat struct {
	ExerciseID     string
	Name           string
	TimesCompleted int
	LastCompleted  time.Time
}

type MilestoneKind string

const (
	MilestoneStreak   MilestoneKind = "streak"
	MilestoneWorkouts MilestoneKind = "workouts"
)

type Milestone struct {
	Kind        MilestoneKind
	Value       int
	Title       string
	Description string
	Achieved    bool
}

// computeProgress derives Progress from completions. Only completed records dated on or before today count.
// exerciseName resolves display names and may return "" for unknown ids.
func computeProgress(completions []Completion, today time.Time, exerciseName func(string) string) Progress {
	today = program.CalendarDate(today)

	days := make(map[time.Time]struct{})
	var done []Completion
	for _, c := range completions {
		date := program.CalendarDate(c.Date)
		if !c.Completed || date.After(today) {
			continue
		}
		c.Date = date
		done = append(done, c)
		days[date] = struct{}{}
	}

	current := currentStreak(days, today)
	p := Progress{
		TotalWorkouts:  len(days),
		CurrentStreak:  current,
		LongestStreak:  longestStreak(days),
		CompletionRate: completionRate(days, today),
		Weekly:         weeklyStats(days),
		Monthly:        monthlyStats(days),
		Exercises:      exerciseStats(done, exerciseName),
		Milestones:     nil,
		StreakMessage:  streakMessage(current),
	}
	p.Milestones = milestones(p)
	return p
}

// currentStreak walks back from today. Today without a workout does not break the streak because the day is not
// over yet.
func currentStreak(days map[time.Time]struct{}, today time.Time) int {
	streak := 0
	for i := range streakLookbackDays {
		if _, ok := days[today.AddDate(0, 0, -i)]; ok {
			streak++
			continue
		}
		if i == 0 {
			continue
		}
		break
	}
	return streak
}

func longestStreak(days map[time.Time]struct{}) int {
	sorted := slices.SortedFunc(maps.Keys(days), func(a, b time.Time) int { return a.Compare(b) })
	longest, run := 0, 0
	for i, d := range sorted {
		if i > 0 && program.DaysBetween(sorted[i-1], d) == 1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}

func completionRate(days map[time.Time]struct{}, today time.Time) float64 {
	n := 0
	for i := range completionRateWindow {
		if _, ok := days[today.AddDate(0, 0, -i)]; ok {
			n++
		}
	}
	return percentage(n, completionRateWindow)
}

func percentage(n, of int) float64 {
	return min(100, max(0, float64(n)/float64(of)*100)) //nolint:mnd // percent
}

func weeklyStats(days map[time.Time]struct{}) []WeeklyStat {
	byWeek := make(map[string]*WeeklyStat)
	for d := range days {
		year, week := d.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		stat, ok := byWeek[key]
		if !ok {
			// ISO weeks start on Monday.
			start := d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7)) //nolint:mnd // days in a week
			stat = &WeeklyStat{Week: key, Start: start, End: start.AddDate(0, 0, 6)} //nolint:exhaustruct,mnd // counted below
			byWeek[key] = stat
		}
		stat.WorkoutsCompleted++
	}

	stats := make([]WeeklyStat, 0, len(byWeek))
	for _, stat := range byWeek {
		stat.CompletionRate = percentage(stat.WorkoutsCompleted, 7) //nolint:mnd // days in a week
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b WeeklyStat) int { return cmp.Compare(b.Week, a.Week) })
	return stats[:min(len(stats), weeklyStatsLimit)]
}

func monthlyStats(days map[time.Time]struct{}) []MonthlyStat {
	byMonth := make(map[string]*MonthlyStat)
	for d := range days {
		key := d.Format("2006-01")
		stat, ok := byMonth[key]
		if !ok {
			stat = &MonthlyStat{Month: key, Name: d.Format("January 2006")} //nolint:exhaustruct // counted below
			byMonth[key] = stat
		}
		stat.WorkoutsCompleted++
	}

	stats := make([]MonthlyStat, 0, len(byMonth))
	for _, stat := range byMonth {
		first, _ := time.Parse("2006-01", stat.Month)
		daysInMonth := first.AddDate(0, 1, -1).Day()
		stat.CompletionRate = percentage(stat.WorkoutsCompleted, daysInMonth)
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b MonthlyStat) int { return cmp.Compare(b.Month, a.Month) })
	return stats[:min(len(stats), monthlyStatsLimit)]
}

func exerciseStats(done []Completion, exerciseName func(string) string) []ExerciseStat {
	byID := make(map[string]*ExerciseStat)
	for _, c := range done {
		stat, ok := byID[c.ExerciseID]
		if !ok {
			name := exerciseName(c.ExerciseID)
			if name == "" {
				name = c.ExerciseID
			}
			stat = &ExerciseStat{ExerciseID: c.ExerciseID, Name: name} //nolint:exhaustruct // counted below
			byID[c.ExerciseID] = stat
		}
		stat.TimesCompleted++
		if c.Date.After(stat.LastCompleted) {
			stat.LastCompleted = c.Date
		}
	}

	stats := make([]ExerciseStat, 0, len(byID))
	for _, stat := range byID {
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b ExerciseStat) int {
		return cmp.Or(cmp.Compare(b.TimesCompleted, a.TimesCompleted), cmp.Compare(a.ExerciseID, b.ExerciseID))
	})
	return stats[:min(len(stats), exerciseStatsLimit)]
}

// milestones lists every threshold with whether it has been reached.
func milestones(p Progress) []Milestone {
	out := make([]Milestone, 0, len(streakMilestones)+len(workoutMilestones))
	for _, threshold := range streakMilestones {
		out = append(out, Milestone{
			Kind:        MilestoneStreak,
			Value:       threshold,
			Title:       fmt.Sprintf("%d-Day Streak!", threshold),
			Description: fmt.Sprintf("You've worked out %d days in a row!", threshold),
			Achieved:    p.CurrentStreak >= threshold || p.LongestStreak >= threshold,
		})
	}
	for _, threshold := range workoutMilestones {
		out = append(out, Milestone{
			Kind:        MilestoneWorkouts,
			Value:       threshold,
			Title:       fmt.Sprintf("%d Workouts Completed!", threshold),
			Description: fmt.Sprintf("You've completed %d workouts!", threshold),
			Achieved:    p.TotalWorkouts >= threshold,
		})
	}
	return out
}

func streakMessage(streak int) string {
	switch {
	case streak == 0:
		return "Start your journey!"
	case streak == 1:
		return "Great start! Keep going!"
	case streak < 7: //nolint:mnd // a week
		return fmt.Sprintf("%d days strong!", streak)
	case streak < 30: //nolint:mnd // a month
		return fmt.Sprintf("Amazing %d-day streak!", streak)
	case streak < 100: //nolint:mnd // a hundred days
		return fmt.Sprintf("Incredible %d days!", streak)
	default:
		return fmt.Sprintf("Legendary %d-day streak!", streak)
	}
}
