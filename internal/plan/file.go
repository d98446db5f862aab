package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filename returns the canonical file name for a plan export.
func (p *Plan) Filename() string {
	return p.ID + ".json"
}

// ReadPlanFile reads and validates a plan file.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func ReadPlanFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}

	var p Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}

	normalize(&p)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan in %s: %w", path, err)
	}
	return &p, nil
}

// WritePlanFile writes p as pretty JSON into dir and returns the file path.
func WritePlanFile(dir string, p *Plan) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("invalid plan: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plan directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan %s: %w", p.ID, err)
	}

	path := filepath.Join(dir, p.Filename())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write plan file %s: %w", path, err)
	}
	return path, nil
}

// MarshalYAML renders p as a YAML document.
func MarshalYAML(p *Plan) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan %s as yaml: %w", p.ID, err)
	}
	return data, nil
}

// normalize fills in the parent links and empty set sequences that a
// hand-written file may omit.
func normalize(p *Plan) {
	for i := range p.Days {
		d := &p.Days[i]
		if d.PlanID == "" {
			d.PlanID = p.ID
		}
		for j := range d.Exercises {
			if d.Exercises[j].Sets == nil {
				d.Exercises[j].Sets = []Set{}
			}
		}
	}
}
