package preset

import "example.com/session/internal/sequence"

// DefaultPattern is the fallback used when a breathing activity references
// no resolvable pattern.
var DefaultPattern = sequence.BreathingPattern{Inhale: 4, Hold1: 4, Exhale: 4, Hold2: 4, Cycles: 4}

var breathingPatterns = map[string]sequence.BreathingPattern{
	"box-breathing":       {Inhale: 4, Hold1: 4, Exhale: 4, Hold2: 4, Cycles: 4},
	"four-seven-eight":    {Inhale: 4, Hold1: 7, Exhale: 8, Cycles: 4},
	"coherent":            {Inhale: 5, Exhale: 5, Cycles: 6},
	"physiological-sigh":  {Inhale: 2, Hold1: 1, Exhale: 6, Cycles: 3},
	"extended-exhale":     {Inhale: 4, Exhale: 6, Cycles: 5},
	"triangle-energising": {Inhale: 4, Hold1: 4, Exhale: 4, Cycles: 5},
}

var groundingTechniques = map[string][]string{
	"five-senses": {
		"Name five things you can see.",
		"Name four things you can touch.",
		"Name three things you can hear.",
		"Name two things you can smell.",
		"Name one thing you can taste.",
	},
	"body-anchor": {
		"Press your feet into the floor.",
		"Notice the weight of your body on the seat.",
		"Unclench your jaw and drop your shoulders.",
	},
	"body-scan": {
		"Bring attention to your toes and feet.",
		"Move slowly up through your legs and hips.",
		"Soften your belly, chest, and shoulders.",
		"Relax your jaw, eyes, and forehead.",
	},
	"cold-anchor": {
		"Hold something cold in your hand.",
		"Describe the sensation to yourself in detail.",
	},
}

// PatternByID resolves a breathing pattern from the built-in table.
func PatternByID(id string) (sequence.BreathingPattern, bool) {
	p, ok := breathingPatterns[id]
	return p, ok
}

// TechniqueByID resolves a grounding technique's step list from the
// built-in table.
func TechniqueByID(id string) ([]string, bool) {
	steps, ok := groundingTechniques[id]
	if !ok {
		return nil, false
	}
	out := make([]string, len(steps))
	copy(out, steps)
	return out, true
}
