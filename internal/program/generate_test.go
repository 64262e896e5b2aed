package program_test

import (
	"bytes"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/stride/internal/program"
)

func exerciseIDs(blocks []program.Block) []string {
	var ids []string
	for _, b := range blocks {
		for _, e := range b.Exercises {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func findExercise(t *testing.T, blocks []program.Block, id string) program.Exercise {
	t.Helper()
	for _, b := range blocks {
		for _, e := range b.Exercises {
			if e.ID == id {
				return e
			}
		}
	}
	t.Fatalf("exercise %q not generated", id)
	return program.Exercise{}
}

func meta(phase program.Phase, day program.Day, phaseWeek int) program.Meta {
	return program.Meta{PlanID: program.ReferencePlanID, Phase: phase, Day: day, PhaseWeek: phaseWeek}
}

func TestPlan_Generate_guidanceFirst(t *testing.T) {
	p := referencePlan(t)
	for _, def := range p.Phases() {
		for _, day := range p.Rotation() {
			for week := 1; week <= def.Weeks(); week++ {
				blocks := p.Generate(meta(def.Phase, day, week))
				if len(blocks) < 2 {
					t.Fatalf("%s/%s week %d: got %d blocks, want at least 2", def.Phase, day, week, len(blocks))
				}
				if got, want := blocks[0].ID, "rules-global"; got != want {
					t.Errorf("%s/%s week %d: first block %q, want %q", def.Phase, day, week, got, want)
				}
				for _, b := range blocks[1:] {
					if b.ID == "rules-global" {
						t.Errorf("%s/%s week %d: guidance block repeated", def.Phase, day, week)
					}
				}
			}
		}
	}
}

func TestPlan_Generate_guidanceExcludedFromTracking(t *testing.T) {
	p := referencePlan(t)
	for _, def := range p.Phases() {
		for _, day := range p.Rotation() {
			blocks := p.Generate(meta(def.Phase, day, 1))
			tracked := program.TrackableIDs(blocks)
			if len(tracked) == 0 {
				t.Errorf("%s/%s: no trackable exercises", def.Phase, day)
			}
			for _, e := range blocks[0].Exercises {
				if e.Category != program.CategoryGuidance {
					t.Errorf("Guidance block entry %q has category %q", e.ID, e.Category)
				}
				if slices.Contains(tracked, e.ID) {
					t.Errorf("%s/%s: guidance entry %q counted as trackable", def.Phase, day, e.ID)
				}
				if p.Trackable(e.ID) {
					t.Errorf("Plan reports guidance entry %q as trackable", e.ID)
				}
			}
		}
	}
}

func TestPlan_Generate_noSharedState(t *testing.T) {
	p := referencePlan(t)
	m := meta(program.PhaseFoundation, program.DayB, 3)

	first := p.Generate(m)
	second := p.Generate(m)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Generate() not deterministic (-first +second):\n%s", diff)
	}

	first[0].Exercises[0].Instructions[0] = "mutated"
	first[1].Exercises[0].Name = "mutated"
	first[1].Exercises = first[1].Exercises[:0]
	first[2].Exercises[0].Prescription.Sets = 99

	third := p.Generate(m)
	if diff := cmp.Diff(second, third); diff != "" {
		t.Errorf("Mutating a generated list leaked into later calls (-want +got):\n%s", diff)
	}

	e, ok := p.Exercise("p1-step-up-low")
	if !ok {
		t.Fatal("p1-step-up-low not in plan")
	}
	if got, want := e.Name, `Step-Up (Low 4-6")`; got != want {
		t.Errorf("Authored exercise name %q, want %q", got, want)
	}
}

func TestPlan_Generate_kneeLadder(t *testing.T) {
	p := referencePlan(t)
	held := []string{"p1-step-down-low", "p1-sl-squat-to-box-high"}

	for week := 1; week <= 4; week++ {
		blocks := p.Generate(meta(program.PhaseFoundation, program.DayB, week))
		ids := exerciseIDs(blocks)
		stepUp := findExercise(t, blocks, "p1-step-up-low")

		for _, id := range held {
			if got, want := slices.Contains(ids, id), week > 2; got != want {
				t.Errorf("Week %d: %s present = %t, want %t", week, id, got, want)
			}
		}
		if week <= 2 {
			if got, want := stepUp.Prescription.Sets, 2; got != want {
				t.Errorf("Week %d: step-up sets %d, want %d", week, got, want)
			}
			continue
		}
		want := program.Prescription{Sets: 3, Reps: 10, Description: `3 x 10 per leg, 6-8" step (slow down)`}
		if diff := cmp.Diff(want, stepUp.Prescription); diff != "" {
			t.Errorf("Week %d: step-up prescription mismatch (-want +got):\n%s", week, diff)
		}
		if !strings.Contains(stepUp.Name, `6-8"`) {
			t.Errorf("Week %d: step-up name %q does not mention the new height", week, stepUp.Name)
		}
	}

	// The knee ladder only applies to day B.
	ids := exerciseIDs(p.Generate(meta(program.PhaseFoundation, program.DayA, 1)))
	if slices.Contains(ids, "p1-step-up-low") {
		t.Error("Day A unexpectedly contains the day B step-up")
	}
}

func TestPlan_Generate_runWalk(t *testing.T) {
	p := referencePlan(t)
	for week := 1; week <= 6; week++ {
		runWalk := findExercise(t, p.Generate(meta(program.PhaseRunWalk, program.DayA, week)), "p3-runwalk")
		want := program.Prescription{
			Minutes:     25,
			Description: program.TableValue(program.RunWalkProgression, week),
		}
		if diff := cmp.Diff(want, runWalk.Prescription); diff != "" {
			t.Errorf("Week %d: run-walk prescription mismatch (-want +got):\n%s", week, diff)
		}
		if len(runWalk.Instructions) != 4 {
			t.Errorf("Week %d: got %d run-walk instructions, want 4", week, len(runWalk.Instructions))
		}
	}
	last := findExercise(t, p.Generate(meta(program.PhaseRunWalk, program.DayA, 9)), "p3-runwalk")
	if got, want := last.Prescription.Description, program.RunWalkProgression[3]; got != want {
		t.Errorf("Past the table: got %q, want %q", got, want)
	}
}

func TestPlan_Generate_minutesTables(t *testing.T) {
	p := referencePlan(t)
	tests := []struct {
		name  string
		phase program.Phase
		day   program.Day
		id    string
		table []int
	}{
		{"Easy run", program.PhaseContinuous, program.DayA, "p4-easy-run", program.EasyRunMinutes},
		{"Long run", program.PhaseContinuous, program.DayC, "p4-long-run", program.LongRunMinutes},
		{"Long run to 5K", program.PhaseDurability, program.DayC, "p5-long-run-5k", program.LongRun5KMinutes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := 0
			for week := 1; week <= 10; week++ {
				e := findExercise(t, p.Generate(meta(tt.phase, tt.day, week)), tt.id)
				got := e.Prescription.Minutes
				if got < prev {
					t.Errorf("Week %d: minutes decreased from %d to %d", week, prev, got)
				}
				want := tt.table[min(week, len(tt.table))-1]
				if got != want {
					t.Errorf("Week %d: got %d minutes, want %d", week, got, want)
				}
				if !strings.HasPrefix(e.Prescription.Description, strconv.Itoa(want)+" min") {
					t.Errorf("Week %d: description %q does not lead with the minutes", week, e.Prescription.Description)
				}
				prev = got
			}
		})
	}
}

// TestPlan_Generate_easyRunScenario pins the easy run progression at its first week and past the end of its table.
func TestPlan_Generate_easyRunScenario(t *testing.T) {
	p := referencePlan(t)
	for _, tt := range []struct{ week, want int }{{1, 15}, {6, 30}, {8, 30}} {
		e := findExercise(t, p.Generate(meta(program.PhaseContinuous, program.DayA, tt.week)), "p4-easy-run")
		if e.Prescription.Minutes != tt.want {
			t.Errorf("Phase week %d: got %d minutes, want %d", tt.week, e.Prescription.Minutes, tt.want)
		}
	}
}

func TestPlan_Generate_fallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p, err := program.LoadReference(program.WithLogger(logger))
	if err != nil {
		t.Fatalf("load reference plan: %v", err)
	}

	got := p.Generate(meta("P9", "Z", 1))
	want := p.Generate(meta(program.PhaseFoundation, program.DayA, 1))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fallback mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "no template") {
		t.Errorf("Expected a fallback warning, got log %q", buf.String())
	}
}

func TestPlan_Generate_resolvedDate(t *testing.T) {
	p := referencePlan(t)
	m := p.Resolve(date(t, "2024-03-25"), date(t, "2024-01-01"), program.ReferencePlanID)
	blocks := p.Generate(m)
	if m.Phase != program.PhaseContinuous || m.Day != program.DayA {
		t.Fatalf("Got %s/%s, want P4/A", m.Phase, m.Day)
	}
	if got := findExercise(t, blocks, "p4-easy-run").Prescription.Minutes; got != 15 {
		t.Errorf("Got %d minutes, want 15", got)
	}
}
