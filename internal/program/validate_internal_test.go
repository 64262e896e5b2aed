package program

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

const minimalContent = `
id = "mini"
total_weeks = 2
rotation = ["A", "B"]
guidance_block = "rules"
fallback = { phase = "P1", day = "A" }

[[phases]]
phase = "P1"
start_week = 1
end_week = 2
title = "Only"
running = "none"

[schedule.P1]
A = ["walk"]
B = ["walk"]

[[blocks]]
id = "rules"
name = "Rules"
estimated_minutes = 1

[[blocks.exercises]]
id = "rule-1"
name = "Rule"
category = "Guidance"

[[blocks]]
id = "walk"
name = "Walk"
estimated_minutes = 10

[[blocks.exercises]]
id = "walk-1"
name = "Walk"
category = "Cardio"
prescription = { minutes = 10 }
`

func TestLoad_minimal(t *testing.T) {
	p, err := Load([]byte(minimalContent), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := len(p.Generate(p.Resolve(mustDate(t, "2024-01-02"), mustDate(t, "2024-01-01"), "mini"))); got != 2 {
		t.Errorf("Got %d blocks, want 2", got)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(string) string
		rules   []Rule
		wantErr string
	}{
		{
			name: "Gap between phases",
			edit: func(s string) string {
				return strings.Replace(s, "total_weeks = 2", "total_weeks = 3", 1)
			},
			wantErr: "phases end at week 2, want 3",
		},
		{
			name: "Missing template for a rotation day",
			edit: func(s string) string {
				return strings.Replace(s, `B = ["walk"]`, "", 1)
			},
			wantErr: "no template for P1/B",
		},
		{
			name: "Unknown block in schedule",
			edit: func(s string) string {
				return strings.Replace(s, `B = ["walk"]`, `B = ["run"]`, 1)
			},
			wantErr: `unknown block "run"`,
		},
		{
			name: "Guidance block listed in schedule",
			edit: func(s string) string {
				return strings.Replace(s, `B = ["walk"]`, `B = ["rules", "walk"]`, 1)
			},
			wantErr: "lists the guidance block explicitly",
		},
		{
			name: "Trackable entry in guidance block",
			edit: func(s string) string {
				return strings.Replace(s, `category = "Guidance"`, `category = "Mobility"`, 1)
			},
			wantErr: `contains trackable exercise "rule-1"`,
		},
		{
			name: "Guidance entry in a workout block",
			edit: func(s string) string {
				return strings.Replace(s, `category = "Cardio"`, `category = "Guidance"`, 1)
			},
			wantErr: `contains guidance entry "walk-1"`,
		},
		{
			name: "Unknown key",
			edit: func(s string) string {
				return strings.Replace(s, "total_weeks = 2", "total_weeks = 2\nweeks = 2", 1)
			},
			wantErr: "unknown keys",
		},
		{
			name: "Fallback without template",
			edit: func(s string) string {
				return strings.Replace(s, `day = "A" }`, `day = "C" }`, 1)
			},
			wantErr: "fallback P1/C has no template",
		},
		{
			name: "Rule target missing",
			edit: func(s string) string { return s },
			rules: []Rule{
				MinutesTable("typo", "P1", []Day{"A"}, "wlak-1", []int{10, 20}, "%d min"),
			},
			wantErr: `rule "typo" targets "wlak-1" missing from P1/A`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.edit(minimalContent)), tt.rules)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("Load() error %v does not wrap ErrInvalidPlan", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestReferenceRules_targetsExist(t *testing.T) {
	p := MustLoadReference()
	for _, r := range p.rules {
		for _, day := range r.Days {
			for _, id := range r.Targets {
				if findExercise(p.templates[r.Phase][day], id) == nil {
					t.Errorf("Rule %q target %q missing from %s/%s", r.Name, id, r.Phase, day)
				}
			}
		}
	}
}

func TestTableIndex(t *testing.T) {
	tests := []struct{ phaseWeek, n, want int }{
		{1, 6, 0},
		{6, 6, 5},
		{8, 6, 5},
		{0, 6, 0},
		{-3, 4, 0},
		{3, 1, 0},
	}
	for _, tt := range tests {
		if got := tableIndex(tt.phaseWeek, tt.n); got != tt.want {
			t.Errorf("tableIndex(%d, %d) = %d, want %d", tt.phaseWeek, tt.n, got, tt.want)
		}
	}
}

func TestFloorDivMod(t *testing.T) {
	tests := []struct{ a, b, div, mod int }{
		{7, 7, 1, 0},
		{6, 7, 0, 6},
		{-1, 7, -1, 6},
		{-7, 7, -1, 0},
		{-8, 7, -2, 6},
		{-31, 3, -11, 2},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.div {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.div)
		}
		if got := floorMod(tt.a, tt.b); got != tt.mod {
			t.Errorf("floorMod(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.mod)
		}
	}
}
