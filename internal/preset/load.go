package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a single preset from disk.
func LoadFile(path string) (*Preset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preset path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset %s: %w", path, err)
	}

	p, err := parsePreset(data)
	if err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", path, err)
	}
	p.Source = path
	return p, nil
}

// LoadDir overlays every .yaml/.yml preset found in dir onto the catalog.
// A missing directory is not an error; a malformed file is.
func (c *Catalog) LoadDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read preset dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		c.put(*p)
	}
	return nil
}

func parsePreset(data []byte) (*Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return nil, fmt.Errorf("preset id is required")
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("preset name is required")
	}
	if len(p.Phases) == 0 {
		return nil, fmt.Errorf("preset phases are required")
	}

	seen := make(map[string]struct{}, len(p.Phases))
	for i := range p.Phases {
		phase := &p.Phases[i]
		phase.ID = strings.TrimSpace(phase.ID)
		if phase.ID == "" {
			return nil, fmt.Errorf("phase %d has no id", i)
		}
		if _, dup := seen[phase.ID]; dup {
			return nil, fmt.Errorf("duplicate phase id %q", phase.ID)
		}
		seen[phase.ID] = struct{}{}
		if phase.DurationSec < 0 {
			return nil, fmt.Errorf("phase %q has negative duration", phase.ID)
		}
	}
	return &p, nil
}
