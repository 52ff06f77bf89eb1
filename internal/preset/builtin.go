package preset

import "example.com/session/internal/sequence"

// builtinPresets returns the SOS protocols bundled with the service. Each
// preset walks interrupt -> ground -> reassure -> next-step.
func builtinPresets() []Preset {
	return []Preset{
		{
			ID:          "panic-attack",
			Name:        "Panic Attack",
			Description: "Interrupt the spiral, ground the body, and come back to steady breath.",
			Tone:        "calm",
			Source:      "builtin",
			Phases: []Phase{
				{
					ID:          "panic-interrupt",
					Type:        sequence.ActivityBreathing,
					Role:        sequence.RoleInterrupt,
					Title:       "Long exhales",
					Instruction: "Breathe out longer than you breathe in. Nothing else matters right now.",
					DurationSec: 30,
					PatternID:   "physiological-sigh",
				},
				{
					ID:          "panic-ground",
					Type:        sequence.ActivityGrounding,
					Role:        sequence.RoleGround,
					Title:       "Name what is around you",
					Instruction: "Work through your senses, slowly.",
					DurationSec: 45,
					TechniqueID: "five-senses",
				},
				{
					ID:          "panic-reassure",
					Type:        sequence.ActivityBreathing,
					Role:        sequence.RoleReassure,
					Title:       "Box breathing",
					Instruction: "This is a wave. It peaks and it passes.",
					DurationSec: 30,
					PatternID:   "box-breathing",
				},
				{
					ID:          "panic-next-step",
					Type:        sequence.ActivityJournal,
					Role:        sequence.RoleNextStep,
					Title:       "One small thing",
					Instruction: "Write down one small thing you will do next.",
					DurationSec: 60,
					Prompt:      "What is one small, kind thing you can do for yourself in the next hour?",
				},
			},
		},
		{
			ID:          "overwhelm",
			Name:        "Overwhelm",
			Description: "Put everything down for three minutes and reset.",
			Tone:        "soft",
			Source:      "builtin",
			Phases: []Phase{
				{
					ID:          "overwhelm-interrupt",
					Type:        sequence.ActivityReset,
					Role:        sequence.RoleInterrupt,
					Title:       "Put it all down",
					Instruction: "Close your eyes or soften your gaze. Let your shoulders drop.",
					DurationSec: 20,
				},
				{
					ID:          "overwhelm-ground",
					Type:        sequence.ActivityGrounding,
					Role:        sequence.RoleGround,
					Title:       "Feet on the floor",
					Instruction: "Press your feet into the ground and notice the contact.",
					DurationSec: 40,
					TechniqueID: "body-anchor",
				},
				{
					ID:          "overwhelm-reassure",
					Type:        sequence.ActivityBreathing,
					Role:        sequence.RoleReassure,
					Title:       "Slow coherent breath",
					Instruction: "In for five, out for five. You do not have to solve anything yet.",
					DurationSec: 60,
					PatternID:   "coherent",
				},
				{
					ID:          "overwhelm-next-step",
					Type:        sequence.ActivityFocus,
					Role:        sequence.RoleNextStep,
					Title:       "Pick one thing",
					Instruction: "Choose the single next task. Just one.",
					DurationSec: 30,
				},
			},
		},
		{
			ID:          "cant-sleep",
			Name:        "Can't Sleep",
			Description: "Downshift an overactive mind before bed.",
			Tone:        "night",
			Source:      "builtin",
			Phases: []Phase{
				{
					ID:          "sleep-interrupt",
					Type:        sequence.ActivityBreathing,
					Role:        sequence.RoleInterrupt,
					Title:       "4-7-8 breath",
					Instruction: "Let each exhale empty you out a little more.",
					DurationSec: 76,
					PatternID:   "four-seven-eight",
				},
				{
					ID:          "sleep-ground",
					Type:        sequence.ActivityGrounding,
					Role:        sequence.RoleGround,
					Title:       "Body scan",
					Instruction: "Move your attention from your toes to the top of your head.",
					DurationSec: 120,
					TechniqueID: "body-scan",
				},
				{
					ID:          "sleep-reassure",
					Type:        sequence.ActivityJournal,
					Role:        sequence.RoleReassure,
					Title:       "Park your thoughts",
					Instruction: "Anything still looping can wait on paper until morning.",
					DurationSec: 90,
					Prompt:      "What can wait until tomorrow?",
				},
				{
					ID:          "sleep-next-step",
					Type:        sequence.ActivityReset,
					Role:        sequence.RoleNextStep,
					Title:       "Lights down",
					Instruction: "Screen away, lights down, eyes closed.",
					DurationSec: 20,
				},
			},
		},
	}
}
