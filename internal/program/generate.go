package program

import (
	"context"
	"log/slog"
)

// Generate materializes the blocks prescribed for meta.
//
// The result always starts with the guidance block and is freshly allocated on every call, so the caller owns it and
// may mutate it freely. A phase and day without a template falls back to the plan's default template and logs a
// warning instead of failing, since this feeds the workout a user is about to perform.
func (p *Plan) Generate(meta Meta) []Block {
	template, ok := p.templates[meta.Phase][meta.Day]
	if !ok {
		p.logger.LogAttrs(context.Background(), slog.LevelWarn, "no template, using fallback",
			slog.String("phase", string(meta.Phase)),
			slog.String("day", string(meta.Day)),
			slog.String("fallback_phase", string(p.fallback.Phase)),
			slog.String("fallback_day", string(p.fallback.Day)))
		template = p.templates[p.fallback.Phase][p.fallback.Day]
	}

	blocks := make([]Block, 0, len(template)+1)
	blocks = append(blocks, p.guidance.clone())
	blocks = append(blocks, cloneBlocks(template)...)

	for _, r := range p.rules {
		if r.appliesTo(meta) {
			r.apply(blocks, meta.PhaseWeek)
		}
	}
	return blocks
}
