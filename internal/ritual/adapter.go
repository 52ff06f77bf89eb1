// Package ritual converts external content definitions — SOS preset
// phases, program-day activities, and user-authored steps — into the
// uniform playable shape the sequence controller consumes.
package ritual

import (
	"strings"

	"github.com/google/uuid"

	"example.com/session/internal/preset"
	"example.com/session/internal/sequence"
)

// ActivityDef is the wire shape clients and content sources use to
// describe one step of a ritual.
type ActivityDef struct {
	ID          string                     `json:"id,omitempty"`
	Kind        string                     `json:"kind"`
	Title       string                     `json:"title"`
	Description string                     `json:"description,omitempty"`
	DurationSec int                        `json:"duration_sec"`
	Tone        string                     `json:"tone,omitempty"`
	PatternID   string                     `json:"pattern_id,omitempty"`
	Pattern     *sequence.BreathingPattern `json:"pattern,omitempty"`
	TechniqueID string                     `json:"technique_id,omitempty"`
	Steps       []string                   `json:"steps,omitempty"`
	Prompt      string                     `json:"prompt,omitempty"`
}

// PatternResolver looks a breathing pattern up by id.
type PatternResolver func(id string) (sequence.BreathingPattern, bool)

// TechniqueResolver looks a grounding technique's steps up by id.
type TechniqueResolver func(id string) ([]string, bool)

// Adapter maps content definitions to activities. Missing reference data
// never fails a conversion; it degrades to defaults, since the content is
// guidance rather than control logic.
type Adapter struct {
	patterns   PatternResolver
	techniques TechniqueResolver
}

// NewAdapter builds an adapter with the given resolvers. Nil resolvers
// resolve nothing, which leaves only the embedded and default fallbacks.
func NewAdapter(patterns PatternResolver, techniques TechniqueResolver) *Adapter {
	return &Adapter{patterns: patterns, techniques: techniques}
}

// NewCatalogAdapter wires the adapter to the built-in content tables.
func NewCatalogAdapter() *Adapter {
	return NewAdapter(preset.PatternByID, preset.TechniqueByID)
}

// Activity converts one definition. Breathing activities resolve their
// pattern reference, then the embedded pattern, then the fixed default.
// Grounding activities resolve their technique reference, then the
// provided steps, then a single step holding the description.
func (a *Adapter) Activity(def ActivityDef) sequence.Activity {
	activity := sequence.Activity{
		ID:          strings.TrimSpace(def.ID),
		Type:        kindToType(def.Kind),
		Name:        def.Title,
		Description: def.Description,
		DurationSec: def.DurationSec,
		Tone:        def.Tone,
		Prompt:      def.Prompt,
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.DurationSec < 0 {
		activity.DurationSec = 0
	}

	switch activity.Type {
	case sequence.ActivityBreathing:
		pattern := a.resolvePattern(def)
		activity.Breathing = &pattern
	case sequence.ActivityGrounding:
		activity.Steps = a.resolveSteps(def)
	}
	return activity
}

// Build converts a definition list into a validated sequence.
func (a *Adapter) Build(sequenceID string, defs []ActivityDef) (*sequence.Sequence, error) {
	activities := make([]sequence.Activity, 0, len(defs))
	for _, def := range defs {
		activities = append(activities, a.Activity(def))
	}
	return sequence.New(sequenceID, activities)
}

// FromPreset converts a preset's phases into a sequence keyed by the
// preset id.
func (a *Adapter) FromPreset(p preset.Preset) (*sequence.Sequence, error) {
	defs := make([]ActivityDef, 0, len(p.Phases))
	for _, phase := range p.Phases {
		defs = append(defs, ActivityDef{
			ID:          phase.ID,
			Kind:        string(phase.Type),
			Title:       phase.Title,
			Description: phase.Instruction,
			DurationSec: phase.DurationSec,
			Tone:        firstNonEmpty(phase.Tone, p.Tone),
			PatternID:   phase.PatternID,
			Pattern:     phase.Pattern,
			TechniqueID: phase.TechniqueID,
			Steps:       phase.Steps,
			Prompt:      phase.Prompt,
		})
	}

	activities := make([]sequence.Activity, 0, len(defs))
	for i, def := range defs {
		activity := a.Activity(def)
		activity.Role = p.Phases[i].Role
		activities = append(activities, activity)
	}
	return sequence.New(p.ID, activities)
}

func (a *Adapter) resolvePattern(def ActivityDef) sequence.BreathingPattern {
	if def.PatternID != "" && a.patterns != nil {
		if pattern, ok := a.patterns(def.PatternID); ok {
			return pattern
		}
	}
	if def.Pattern != nil {
		return *def.Pattern
	}
	return preset.DefaultPattern
}

func (a *Adapter) resolveSteps(def ActivityDef) []string {
	if def.TechniqueID != "" && a.techniques != nil {
		if steps, ok := a.techniques(def.TechniqueID); ok {
			return steps
		}
	}
	if len(def.Steps) > 0 {
		out := make([]string, len(def.Steps))
		copy(out, def.Steps)
		return out
	}
	return []string{def.Description}
}

func kindToType(kind string) sequence.ActivityType {
	switch sequence.ActivityType(strings.ToLower(strings.TrimSpace(kind))) {
	case sequence.ActivityBreathing:
		return sequence.ActivityBreathing
	case sequence.ActivityGrounding:
		return sequence.ActivityGrounding
	case sequence.ActivityReset:
		return sequence.ActivityReset
	case sequence.ActivityFocus:
		return sequence.ActivityFocus
	case sequence.ActivityJournal:
		return sequence.ActivityJournal
	default:
		return sequence.ActivityOther
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
