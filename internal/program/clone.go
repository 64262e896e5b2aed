package program

import "slices"

// clone returns a copy of e that shares no memory with it.
func (e Exercise) clone() Exercise {
	e.Instructions = slices.Clone(e.Instructions)
	e.CommonMistakes = slices.Clone(e.CommonMistakes)
	e.StopConditions = slices.Clone(e.StopConditions)
	return e
}

// clone returns a copy of b that shares no memory with it.
func (b Block) clone() Block {
	exercises := make([]Exercise, len(b.Exercises))
	for i, e := range b.Exercises {
		exercises[i] = e.clone()
	}
	b.Exercises = exercises
	return b
}

func cloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.clone()
	}
	return out
}

func (d PhaseDefinition) clone() PhaseDefinition {
	d.Focus = slices.Clone(d.Focus)
	d.Gate = slices.Clone(d.Gate)
	return d
}
