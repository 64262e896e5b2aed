package program

import (
	"time"
)

const (
	daysPerWeek   = 7
	secondsPerDay = 24 * 60 * 60
)

// CalendarDate normalizes t to midnight UTC of the calendar day t falls on in its own location.
//
// Callers are responsible for passing t in the user's local time zone. Normalizing after the fact cannot recover a
// calendar day that was lost by converting to another zone first.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from start to target. It is negative when target precedes
// start.
//
// Counting in Unix seconds keeps the result exact for any pair of dates. time.Duration saturates after about 292
// years.
func DaysBetween(start, target time.Time) int {
	return int((CalendarDate(target).Unix() - CalendarDate(start).Unix()) / secondsPerDay)
}

// floorDiv divides rounding towards negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// floorMod returns a non-negative remainder for positive b.
func floorMod(a, b int) int {
	return ((a % b) + b) % b
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

// Resolve locates target within a program that started on start. planID is passed through unchanged.
//
// Resolve is total: dates before start resolve to week 1 and dates past the end of the program clamp to the final
// week. The rotation day keeps cycling in both directions.
func (p *Plan) Resolve(target, start time.Time, planID string) Meta {
	offset := DaysBetween(start, target)
	week := clamp(floorDiv(offset, daysPerWeek)+1, 1, p.totalWeeks)
	day := p.rotation[floorMod(offset, len(p.rotation))]
	def := p.phaseForWeek(week)

	return Meta{
		PlanID:    planID,
		StartDate: CalendarDate(start),
		Week:      week,
		Phase:     def.Phase,
		PhaseWeek: week - def.StartWeek + 1,
		Day:       day,
	}
}

// phaseForWeek returns the phase containing week, falling back to the first phase.
func (p *Plan) phaseForWeek(week int) PhaseDefinition {
	for _, def := range p.phases {
		if week >= def.StartWeek && week <= def.EndWeek {
			return def
		}
	}
	return p.phases[0]
}
