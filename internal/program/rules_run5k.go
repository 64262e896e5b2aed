package program

// Phases of the reference program.
const (
	PhaseFoundation Phase = "P1"
	PhaseBuild      Phase = "P2"
	PhaseRunWalk    Phase = "P3"
	PhaseContinuous Phase = "P4"
	PhaseDurability Phase = "P5"
)

// Rotation days of the reference program.
const (
	DayA Day = "A"
	DayB Day = "B"
	DayC Day = "C"
)

// Progression tables of the reference program, indexed by phase week.
var (
	EasyRunMinutes     = []int{15, 18, 20, 22, 25, 30} //nolint:mnd // authored progression
	LongRunMinutes     = []int{20, 22, 25, 28, 30, 35} //nolint:mnd // authored progression
	LongRun5KMinutes   = []int{30, 32, 35, 35, 38, 40} //nolint:mnd // authored progression
	RunWalkProgression = []string{
		"1 min run / 2 min walk x 6-8 rounds (20-25 min total)",
		"1 min run / 1 min walk x 10 rounds (20 min total)",
		"2 min run / 1 min walk x 8 rounds (24 min total)",
		"3 min run / 1 min walk x 6 rounds (24 min total)",
	}
)

func referenceRules() []Rule {
	return []Rule{
		ExcludeUntil("knee-ladder-intro", PhaseFoundation, []Day{DayB}, 2,
			"p1-step-down-low", "p1-sl-squat-to-box-high"),
		RewriteFrom("knee-ladder-step-height", PhaseFoundation, []Day{DayB}, 3, "p1-step-up-low",
			func(e *Exercise) {
				e.Name = `Step-Up (Progressed 6-8")`
				e.Prescription = Prescription{Sets: 3, Reps: 10, Description: `3 x 10 per leg, 6-8" step (slow down)`} //nolint:mnd // authored progression
				e.Instructions = []string{`Use a 6-8" step.`, "Push through the heel.", "Lower slowly over three seconds."}
			}),
		DescriptionTable("run-walk", PhaseRunWalk, []Day{DayA}, "p3-runwalk", 25, //nolint:mnd // session minutes
			RunWalkProgression,
			[]string{
				"Warm up with a five minute walk.",
				"Run easy at a conversational pace.",
				"Progress only if the knee and back stay calm for 24-48 hours.",
				"After a flare, repeat last week or step back once.",
			}),
		MinutesTable("easy-run", PhaseContinuous, []Day{DayA}, "p4-easy-run", EasyRunMinutes,
			"%d min easy continuous run (walk breaks OK)"),
		MinutesTable("long-run", PhaseContinuous, []Day{DayC}, "p4-long-run", LongRunMinutes,
			"%d min easy long run (walk breaks OK)"),
		MinutesTable("long-run-5k", PhaseDurability, []Day{DayC}, "p5-long-run-5k", LongRun5KMinutes,
			"%d min easy long run (towards a comfortable 5K)"),
	}
}
