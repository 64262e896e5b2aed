// Package program maps calendar dates onto a phase-based training program and materializes the exercise blocks
// prescribed for a given day.
//
// A [Plan] is loaded once from authored content, validated, and is immutable afterwards. Both [Plan.Resolve] and
// [Plan.Generate] are pure functions of their inputs and the plan, so a single plan can be shared by any number of
// goroutines without locking.
package program

import (
	"time"
)

// Phase identifies a contiguous range of program weeks with a distinct training focus.
type Phase string

// Day is one symbol of the rotation alphabet. Rotation days cycle independently of phases.
type Day string

// RunningMode tags how running is prescribed during a phase.
type RunningMode string

// Running modes.
const (
	RunningNone       RunningMode = "none"
	RunningRunWalk    RunningMode = "run-walk"
	RunningContinuous RunningMode = "continuous"
	RunningDurability RunningMode = "durability"
)

// Category classifies an exercise.
type Category string

// CategoryGuidance marks advisory entries that are displayed but never tracked for completion.
const CategoryGuidance Category = "Guidance"

// MediaType tells the presentation layer how to show the exercise media.
type MediaType string

// Media types.
const (
	MediaSVG   MediaType = "svg"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Meta locates a calendar date within a program. It is recomputed on every query and never stored.
type Meta struct {
	PlanID    string
	StartDate time.Time
	// Week is the absolute program week, 1-based and clamped to the program length.
	Week  int
	Phase Phase
	// PhaseWeek is the 1-based week within Phase.
	PhaseWeek int
	Day       Day
}

// PhaseDefinition is the authored description of a phase.
type PhaseDefinition struct {
	Phase     Phase       `toml:"phase" json:"phase"`
	StartWeek int         `toml:"start_week" json:"start_week"`
	EndWeek   int         `toml:"end_week" json:"end_week"`
	Title     string      `toml:"title" json:"title"`
	Focus     []string    `toml:"focus" json:"focus"`
	Running   RunningMode `toml:"running" json:"running"`
	// Gate lists advisory criteria for moving on. They are displayed, never enforced.
	Gate []string `toml:"gate" json:"gate"`
}

// Weeks returns the number of weeks the phase spans.
func (d PhaseDefinition) Weeks() int {
	return d.EndWeek - d.StartWeek + 1
}

// Prescription quantifies an exercise. Any combination of the structured fields may be set. A non-empty Description
// takes precedence over the structured fields when displayed.
type Prescription struct {
	Sets        int    `toml:"sets" json:"sets,omitempty"`
	Reps        int    `toml:"reps" json:"reps,omitempty"`
	HoldSeconds int    `toml:"hold_seconds" json:"hold_seconds,omitempty"`
	Minutes     int    `toml:"minutes" json:"minutes,omitempty"`
	Description string `toml:"description" json:"description,omitempty"`
}

// Media references a demonstration video, image or diagram. It is opaque to the program engine.
type Media struct {
	Type       MediaType `toml:"type" json:"type"`
	Src        string    `toml:"src" json:"src,omitempty"`
	VideoURL   string    `toml:"video_url" json:"video_url,omitempty"`
	SearchTerm string    `toml:"search_term" json:"search_term,omitempty"`
	Alt        string    `toml:"alt" json:"alt"`
}

// Exercise is a single prescribed movement. ID is unique within a plan and is the stable key for completion tracking.
type Exercise struct {
	ID             string       `toml:"id" json:"id"`
	Name           string       `toml:"name" json:"name"`
	Description    string       `toml:"description" json:"description"`
	Category       Category     `toml:"category" json:"category"`
	Prescription   Prescription `toml:"prescription" json:"prescription"`
	Instructions   []string     `toml:"instructions" json:"instructions"`
	CommonMistakes []string     `toml:"common_mistakes" json:"common_mistakes"`
	StopConditions []string     `toml:"stop_conditions" json:"stop_conditions"`
	Media          Media        `toml:"media" json:"media"`
}

// Trackable reports whether completion of the exercise counts towards progress.
func (e Exercise) Trackable() bool {
	return e.Category != CategoryGuidance
}

// Block is a named, time-estimated group of exercises performed together.
type Block struct {
	ID               string     `toml:"id" json:"id"`
	Name             string     `toml:"name" json:"name"`
	Description      string     `toml:"description" json:"description,omitempty"`
	EstimatedMinutes int        `toml:"estimated_minutes" json:"estimated_minutes"`
	Exercises        []Exercise `toml:"exercises" json:"exercises"`
}

// TrackableIDs returns the ids of all exercises across blocks that count towards completion progress, in order.
func TrackableIDs(blocks []Block) []string {
	var ids []string
	for _, b := range blocks {
		for _, e := range b.Exercises {
			if e.Trackable() {
				ids = append(ids, e.ID)
			}
		}
	}
	return ids
}

// findExercise returns a pointer into blocks for the exercise with id, or nil.
func findExercise(blocks []Block, id string) *Exercise {
	for i := range blocks {
		for j := range blocks[i].Exercises {
			if blocks[i].Exercises[j].ID == id {
				return &blocks[i].Exercises[j]
			}
		}
	}
	return nil
}

// removeExercise drops every exercise with id from blocks in place.
func removeExercise(blocks []Block, id string) {
	for i := range blocks {
		kept := blocks[i].Exercises[:0]
		for _, e := range blocks[i].Exercises {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		blocks[i].Exercises = kept
	}
}
