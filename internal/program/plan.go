package program

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/BurntSushi/toml"
)

// ReferencePlanID identifies the authored 24-week return-to-running program.
const ReferencePlanID = "run5k-24w-v1"

//go:embed content/run5k-24w-v1.toml
var referenceContent []byte

// Plan is a validated, immutable training program.
type Plan struct {
	id         string
	totalWeeks int
	rotation   []Day
	phases     []PhaseDefinition
	guidance   Block
	templates  map[Phase]map[Day][]Block
	exercises  map[string]Exercise
	rules      []Rule
	fallback   slot
	logger     *slog.Logger
}

type slot struct {
	Phase Phase `toml:"phase"`
	Day   Day   `toml:"day"`
}

// content mirrors the authored TOML document.
type content struct {
	ID            string                         `toml:"id"`
	TotalWeeks    int                            `toml:"total_weeks"`
	Rotation      []Day                          `toml:"rotation"`
	GuidanceBlock string                         `toml:"guidance_block"`
	Fallback      slot                           `toml:"fallback"`
	Phases        []PhaseDefinition              `toml:"phases"`
	Blocks        []Block                        `toml:"blocks"`
	Schedule      map[string]map[string][]string `toml:"schedule"`
}

// Option configures a Plan during Load.
type Option func(*Plan)

// WithLogger makes the plan report authoring gaps, such as a missing template, to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plan) {
		p.logger = logger
	}
}

// Load decodes TOML content, links the schedule to its blocks, attaches rules, and validates the result.
func Load(data []byte, rules []Rule, opts ...Option) (*Plan, error) {
	var c content
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidPlan, undecoded)
	}

	p := &Plan{
		id:         c.ID,
		totalWeeks: c.TotalWeeks,
		rotation:   c.Rotation,
		phases:     c.Phases,
		templates:  make(map[Phase]map[Day][]Block),
		exercises:  make(map[string]Exercise),
		rules:      slices.Clone(rules),
		fallback:   c.Fallback,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err = p.link(c); err != nil {
		return nil, err
	}
	if err = p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// link resolves block references in the schedule and indexes exercises by id.
func (p *Plan) link(c content) error {
	blocks := make(map[string]Block, len(c.Blocks))
	for _, b := range c.Blocks {
		if _, dup := blocks[b.ID]; dup {
			return fmt.Errorf("%w: duplicate block %q", ErrInvalidPlan, b.ID)
		}
		blocks[b.ID] = b
		for _, e := range b.Exercises {
			if _, dup := p.exercises[e.ID]; dup {
				return fmt.Errorf("%w: duplicate exercise %q", ErrInvalidPlan, e.ID)
			}
			p.exercises[e.ID] = e
		}
	}

	guidance, ok := blocks[c.GuidanceBlock]
	if !ok {
		return fmt.Errorf("%w: guidance block %q not defined", ErrInvalidPlan, c.GuidanceBlock)
	}
	p.guidance = guidance

	for phase, days := range c.Schedule {
		p.templates[Phase(phase)] = make(map[Day][]Block, len(days))
		for day, ids := range days {
			template := make([]Block, 0, len(ids))
			for _, id := range ids {
				b, found := blocks[id]
				if !found {
					return fmt.Errorf("%w: %s/%s references unknown block %q", ErrInvalidPlan, phase, day, id)
				}
				if id == c.GuidanceBlock {
					return fmt.Errorf("%w: %s/%s lists the guidance block explicitly", ErrInvalidPlan, phase, day)
				}
				template = append(template, b)
			}
			p.templates[Phase(phase)][Day(day)] = template
		}
	}
	return nil
}

// LoadReference loads the embedded reference program.
func LoadReference(opts ...Option) (*Plan, error) {
	p, err := Load(referenceContent, referenceRules(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ReferencePlanID, err)
	}
	return p, nil
}

// MustLoadReference is like LoadReference but panics on invalid content. Use it at startup so that authoring
// mistakes fail loudly.
func MustLoadReference(opts ...Option) *Plan {
	p, err := LoadReference(opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// ID returns the authored content version.
func (p *Plan) ID() string {
	return p.id
}

// TotalWeeks returns the program length in weeks.
func (p *Plan) TotalWeeks() int {
	return p.totalWeeks
}

// Rotation returns the rotation alphabet in cycling order.
func (p *Plan) Rotation() []Day {
	return slices.Clone(p.rotation)
}

// Phases returns the phase definitions in program order.
func (p *Plan) Phases() []PhaseDefinition {
	out := make([]PhaseDefinition, len(p.phases))
	for i, d := range p.phases {
		out[i] = d.clone()
	}
	return out
}

// PhaseDefinition returns the definition for phase.
func (p *Plan) PhaseDefinition(phase Phase) (PhaseDefinition, bool) {
	for _, d := range p.phases {
		if d.Phase == phase {
			return d.clone(), true
		}
	}
	return PhaseDefinition{}, false
}

// Exercise returns the authored definition of the exercise with id, before any progression is applied.
func (p *Plan) Exercise(id string) (Exercise, bool) {
	e, ok := p.exercises[id]
	if !ok {
		return Exercise{}, false
	}
	return e.clone(), true
}

// Trackable reports whether id names an exercise whose completion counts towards progress.
func (p *Plan) Trackable(id string) bool {
	e, ok := p.exercises[id]
	return ok && e.Trackable()
}
