package program

import (
	"fmt"
	"slices"
)

// Rule is a phase-and-day scoped progression applied to a freshly generated block list.
//
// Rules are applied in order after the template is copied. A rule whose target exercise is absent from the blocks
// does nothing; [Plan.Validate] reports such targets at load time instead.
type Rule struct {
	Name  string
	Phase Phase
	Days  []Day
	// Targets lists the exercise ids the rule reads or rewrites.
	Targets []string
	apply   func(blocks []Block, phaseWeek int)
}

func (r Rule) appliesTo(meta Meta) bool {
	return r.Phase == meta.Phase && slices.Contains(r.Days, meta.Day)
}

// tableIndex maps a 1-based phase week onto a table of n entries, repeating the last entry past the end.
func tableIndex(phaseWeek, n int) int {
	return clamp(phaseWeek-1, 0, n-1)
}

// TableValue returns the entry of table in effect during phaseWeek.
func TableValue[T any](table []T, phaseWeek int) T {
	return table[tableIndex(phaseWeek, len(table))]
}

// ExcludeUntil drops the exercises ids while the phase week is at most lastWeek. It holds back higher-risk movements
// until the user has had time to adapt to the phase.
func ExcludeUntil(name string, phase Phase, days []Day, lastWeek int, ids ...string) Rule {
	return Rule{
		Name:    name,
		Phase:   phase,
		Days:    days,
		Targets: ids,
		apply: func(blocks []Block, phaseWeek int) {
			if phaseWeek > lastWeek {
				return
			}
			for _, id := range ids {
				removeExercise(blocks, id)
			}
		},
	}
}

// MinutesTable sets the prescription of id to a duration looked up by phase week. format receives the minutes and
// renders the prescription description.
func MinutesTable(name string, phase Phase, days []Day, id string, minutes []int, format string) Rule {
	return Rule{
		Name:    name,
		Phase:   phase,
		Days:    days,
		Targets: []string{id},
		apply: func(blocks []Block, phaseWeek int) {
			e := findExercise(blocks, id)
			if e == nil {
				return
			}
			m := TableValue(minutes, phaseWeek)
			e.Prescription = Prescription{Minutes: m, Description: fmt.Sprintf(format, m)}
		},
	}
}

// DescriptionTable sets the prescription description of id from a table indexed by phase week and replaces its
// instructions. minutes is the fixed session duration.
func DescriptionTable(
	name string,
	phase Phase,
	days []Day,
	id string,
	minutes int,
	descriptions []string,
	instructions []string,
) Rule {
	return Rule{
		Name:    name,
		Phase:   phase,
		Days:    days,
		Targets: []string{id},
		apply: func(blocks []Block, phaseWeek int) {
			e := findExercise(blocks, id)
			if e == nil {
				return
			}
			e.Prescription = Prescription{Minutes: minutes, Description: TableValue(descriptions, phaseWeek)}
			if instructions != nil {
				e.Instructions = slices.Clone(instructions)
			}
		},
	}
}

// RewriteFrom rewrites the exercise id from phase week fromWeek onwards. It models progressive overload, such as a
// higher step, without authoring a second exercise.
func RewriteFrom(name string, phase Phase, days []Day, fromWeek int, id string, rewrite func(*Exercise)) Rule {
	return Rule{
		Name:    name,
		Phase:   phase,
		Days:    days,
		Targets: []string{id},
		apply: func(blocks []Block, phaseWeek int) {
			if phaseWeek < fromWeek {
				return
			}
			if e := findExercise(blocks, id); e != nil {
				rewrite(e)
			}
		},
	}
}
