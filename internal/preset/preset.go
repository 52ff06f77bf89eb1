// Package preset ships the Restorae content catalogs: SOS presets,
// breathing patterns, and grounding techniques. Built-in content is always
// available; operators may overlay additional presets from a YAML
// directory.
package preset

import (
	"sort"
	"strings"
	"sync"

	"example.com/session/internal/sequence"
)

// Phase is one ordered step of a preset. A preset is complete only after
// all of its phases finish.
type Phase struct {
	ID          string                     `yaml:"id"`
	Type        sequence.ActivityType      `yaml:"type"`
	Role        sequence.PhaseRole         `yaml:"role"`
	Title       string                     `yaml:"title"`
	Instruction string                     `yaml:"instruction,omitempty"`
	DurationSec int                        `yaml:"duration_sec"`
	Tone        string                     `yaml:"tone,omitempty"`
	PatternID   string                     `yaml:"pattern_id,omitempty"`
	Pattern     *sequence.BreathingPattern `yaml:"pattern,omitempty"`
	TechniqueID string                     `yaml:"technique_id,omitempty"`
	Steps       []string                   `yaml:"steps,omitempty"`
	Prompt      string                     `yaml:"prompt,omitempty"`
}

// Preset is a pre-authored, fixed sequence of phases.
type Preset struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Tone        string  `yaml:"tone,omitempty"`
	Phases      []Phase `yaml:"phases"`
	Source      string  `yaml:"-"` // file path or "builtin"
}

// TotalDurationSec sums the phase durations.
func (p Preset) TotalDurationSec() int {
	total := 0
	for _, phase := range p.Phases {
		total += phase.DurationSec
	}
	return total
}

// Catalog indexes presets by id.
type Catalog struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// NewCatalog returns a catalog seeded with the built-in presets.
func NewCatalog() *Catalog {
	c := &Catalog{presets: make(map[string]Preset)}
	for _, p := range builtinPresets() {
		c.presets[p.ID] = p
	}
	return c
}

// Get returns the preset with the given id.
func (c *Catalog) Get(id string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.presets[strings.TrimSpace(id)]
	return p, ok
}

// List returns all presets sorted by name.
func (c *Catalog) List() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Preset, 0, len(c.presets))
	for _, p := range c.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) put(p Preset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presets[p.ID] = p
}
