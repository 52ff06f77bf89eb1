package ritual

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/session/internal/preset"
	"example.com/session/internal/sequence"
)

func TestActivityBreathingResolvesPatternByID(t *testing.T) {
	adapter := NewCatalogAdapter()

	activity := adapter.Activity(ActivityDef{
		ID:          "p1",
		Kind:        "breathing",
		Title:       "Box breathing",
		DurationSec: 60,
		PatternID:   "box-breathing",
	})

	require.Equal(t, sequence.ActivityBreathing, activity.Type)
	require.NotNil(t, activity.Breathing)
	require.Equal(t, 4, activity.Breathing.Inhale)
	require.Equal(t, 4, activity.Breathing.Cycles)
}

func TestActivityBreathingFallsBackToEmbeddedPattern(t *testing.T) {
	adapter := NewAdapter(nil, nil)

	embedded := &sequence.BreathingPattern{Inhale: 6, Exhale: 6, Cycles: 3}
	activity := adapter.Activity(ActivityDef{
		ID:          "p1",
		Kind:        "breathing",
		Title:       "Slow breath",
		DurationSec: 60,
		PatternID:   "box-breathing", // unresolvable without a resolver
		Pattern:     embedded,
	})

	require.NotNil(t, activity.Breathing)
	require.Equal(t, 6, activity.Breathing.Inhale)
}

func TestActivityBreathingFallsBackToDefaultPattern(t *testing.T) {
	adapter := NewAdapter(nil, nil)

	activity := adapter.Activity(ActivityDef{
		ID:          "p1",
		Kind:        "breathing",
		Title:       "Breathe",
		DurationSec: 60,
		PatternID:   "box-breathing",
	})

	require.NotNil(t, activity.Breathing)
	require.Equal(t, preset.DefaultPattern, *activity.Breathing)
}

func TestActivityGroundingResolvesTechniqueByID(t *testing.T) {
	adapter := NewCatalogAdapter()

	activity := adapter.Activity(ActivityDef{
		ID:          "g1",
		Kind:        "grounding",
		Title:       "Five senses",
		DurationSec: 45,
		TechniqueID: "five-senses",
	})

	require.Equal(t, sequence.ActivityGrounding, activity.Type)
	require.Len(t, activity.Steps, 5)
}

func TestActivityGroundingFallsBackToSteps(t *testing.T) {
	adapter := NewAdapter(nil, nil)

	steps := []string{"Look around.", "Name what you see."}
	activity := adapter.Activity(ActivityDef{
		ID:          "g1",
		Kind:        "grounding",
		Title:       "Look around",
		DurationSec: 45,
		TechniqueID: "five-senses",
		Steps:       steps,
	})

	require.Equal(t, steps, activity.Steps)

	// The adapter owns its copy of the steps.
	steps[0] = "mutated"
	require.NotEqual(t, "mutated", activity.Steps[0])
}

func TestActivityGroundingFallsBackToDescription(t *testing.T) {
	adapter := NewAdapter(nil, nil)

	activity := adapter.Activity(ActivityDef{
		ID:          "g1",
		Kind:        "grounding",
		Title:       "Anchor",
		Description: "Feel your feet on the floor.",
		DurationSec: 45,
	})

	require.Equal(t, []string{"Feel your feet on the floor."}, activity.Steps)
}

func TestActivityGeneratesIDAndClampsDuration(t *testing.T) {
	adapter := NewAdapter(nil, nil)

	activity := adapter.Activity(ActivityDef{
		Kind:        "journal",
		Title:       "Write it down",
		DurationSec: -30,
	})

	require.NotEmpty(t, activity.ID)
	require.Equal(t, 0, activity.DurationSec)
	require.Equal(t, sequence.ActivityJournal, activity.Type)
}

func TestActivityUnknownKindMapsToOther(t *testing.T) {
	adapter := NewAdapter(nil, nil)
	activity := adapter.Activity(ActivityDef{ID: "x", Kind: "mystery", Title: "X", DurationSec: 10})
	require.Equal(t, sequence.ActivityOther, activity.Type)
}

func TestBuildProducesValidatedSequence(t *testing.T) {
	adapter := NewCatalogAdapter()

	seq, err := adapter.Build("ritual-1", []ActivityDef{
		{ID: "a", Kind: "breathing", Title: "Breathe", DurationSec: 60, PatternID: "coherent"},
		{ID: "b", Kind: "journal", Title: "Reflect", DurationSec: 120},
	})
	require.NoError(t, err)
	require.Equal(t, "ritual-1", seq.ID())
	require.Equal(t, 2, seq.Len())
	require.Equal(t, 180, seq.TotalDurationSec())
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	adapter := NewCatalogAdapter()

	_, err := adapter.Build("ritual-1", []ActivityDef{
		{ID: "a", Kind: "breathing", Title: "One", DurationSec: 60},
		{ID: "a", Kind: "breathing", Title: "Two", DurationSec: 60},
	})
	require.ErrorIs(t, err, sequence.ErrInvalidSequence)
}

func TestFromPresetCarriesRolesAndTone(t *testing.T) {
	adapter := NewCatalogAdapter()
	catalog := preset.NewCatalog()

	p, ok := catalog.Get("panic-attack")
	require.True(t, ok)

	seq, err := adapter.FromPreset(p)
	require.NoError(t, err)
	require.Equal(t, p.ID, seq.ID())
	require.Equal(t, len(p.Phases), seq.Len())

	first := seq.At(0)
	require.Equal(t, sequence.RoleInterrupt, first.Role)
	require.NotNil(t, first.Breathing)
	require.NotEmpty(t, first.Tone)
}
