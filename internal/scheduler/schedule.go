// Package scheduler runs sync kinds on cron schedules read from a YAML file.
package scheduler

import (
	"bytes"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"opsconsole/internal/syncs"
)

// KindAll schedules every kind in order.
const KindAll = "all"

// DefaultFile is the schedule file looked up under the project directory.
const DefaultFile = "schedules.yaml"

// Schedule runs one kind on a cron spec.
//
//	schedules:
//	  - name: nightly-invoices
//	    cron: "0 2 * * *"
//	    kind: invoices
type Schedule struct {
	Name     string `yaml:"name"`
	Cron     string `yaml:"cron"`
	Kind     string `yaml:"kind"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

type file struct {
	Schedules []Schedule `yaml:"schedules"`
}

// Validate checks the kind and the cron spec.
func (s Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Kind != KindAll && !syncs.IsKind(s.Kind) {
		return fmt.Errorf("schedule %s: %w: %s", s.Name, syncs.ErrUnknownKind, s.Kind)
	}
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("schedule %s: invalid cron %q: %w", s.Name, s.Cron, err)
	}
	return nil
}

// LoadFile reads schedules from a YAML file. Unknown fields are rejected;
// invalid entries are left for Add to report.
func LoadFile(path string) ([]Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a schedule document.
func Parse(data []byte) ([]Schedule, error) {
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse schedules: %w", err)
	}

	seen := map[string]bool{}
	for _, s := range f.Schedules {
		if s.Name != "" && seen[s.Name] {
			return nil, fmt.Errorf("duplicate schedule name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return f.Schedules, nil
}
