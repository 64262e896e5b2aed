package program

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidPlan is returned when authored content breaks an invariant the generator relies on.
var ErrInvalidPlan = errors.New("invalid plan")

// Validate checks the content invariants that would otherwise only surface as silent fallbacks at runtime.
//
// All problems are reported together, joined into a single error wrapping [ErrInvalidPlan].
func (p *Plan) Validate() error {
	var errs []error
	report := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidPlan}, args...)...))
	}

	if p.id == "" {
		report("missing plan id")
	}
	if p.totalWeeks < 1 {
		report("total weeks %d must be positive", p.totalWeeks)
	}
	if len(p.rotation) == 0 {
		report("empty rotation")
	}
	if len(p.phases) == 0 {
		report("no phases")
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	errs = append(errs, p.validatePartition()...)

	for _, def := range p.phases {
		for _, day := range p.rotation {
			if _, ok := p.templates[def.Phase][day]; !ok {
				report("no template for %s/%s", def.Phase, day)
			}
		}
	}
	if _, ok := p.templates[p.fallback.Phase][p.fallback.Day]; !ok {
		report("fallback %s/%s has no template", p.fallback.Phase, p.fallback.Day)
	}

	for _, e := range p.guidance.Exercises {
		if e.Trackable() {
			report("guidance block %q contains trackable exercise %q", p.guidance.ID, e.ID)
		}
	}
	for phase, days := range p.templates {
		for day, blocks := range days {
			for _, b := range blocks {
				for _, e := range b.Exercises {
					if !e.Trackable() {
						report("%s/%s block %q contains guidance entry %q", phase, day, b.ID, e.ID)
					}
				}
			}
		}
	}

	for _, r := range p.rules {
		for _, day := range r.Days {
			blocks, ok := p.templates[r.Phase][day]
			if !ok {
				continue
			}
			for _, id := range r.Targets {
				if findExercise(blocks, id) == nil {
					report("rule %q targets %q missing from %s/%s", r.Name, id, r.Phase, day)
				}
			}
		}
	}

	return errors.Join(errs...)
}

// validatePartition checks that the phases cover weeks 1 through totalWeeks in order without gaps or overlaps.
func (p *Plan) validatePartition() []error {
	var errs []error
	next := 1
	seen := make(map[Phase]bool, len(p.phases))
	for _, def := range p.phases {
		if seen[def.Phase] {
			errs = append(errs, fmt.Errorf("%w: duplicate phase %s", ErrInvalidPlan, def.Phase))
		}
		seen[def.Phase] = true
		if def.StartWeek > def.EndWeek {
			errs = append(errs, fmt.Errorf("%w: phase %s ends before it starts", ErrInvalidPlan, def.Phase))
		}
		if def.StartWeek != next {
			errs = append(errs, fmt.Errorf("%w: phase %s starts at week %d, want %d",
				ErrInvalidPlan, def.Phase, def.StartWeek, next))
		}
		next = def.EndWeek + 1
	}
	if last := p.phases[len(p.phases)-1]; last.EndWeek != p.totalWeeks {
		errs = append(errs, fmt.Errorf("%w: phases end at week %d, want %d",
			ErrInvalidPlan, last.EndWeek, p.totalWeeks))
	}
	if slices.ContainsFunc(p.rotation, func(d Day) bool { return d == "" }) {
		errs = append(errs, fmt.Errorf("%w: blank rotation day", ErrInvalidPlan))
	}
	return errs
}
