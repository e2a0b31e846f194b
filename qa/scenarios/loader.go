// Package scenarios replays hand-written assignment scenarios against the
// engine and the assignment manager.
package scenarios

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/pkg/snapshot"
)

// DispatchDef overrides engine settings for one scenario. Unset fields keep
// the defaults.
type DispatchDef struct {
	DistanceWeight     *float64 `yaml:"distance_weight"`
	DefaultReliability *float64 `yaml:"default_reliability"`
	CourierCapacity    *int     `yaml:"courier_capacity"`
	IndexThreshold     *int     `yaml:"index_threshold"`
}

// Apply returns cfg with the overrides set.
func (d DispatchDef) Apply(cfg dispatch.Config) dispatch.Config {
	if d.DistanceWeight != nil {
		cfg.DistanceWeight = *d.DistanceWeight
	}
	if d.DefaultReliability != nil {
		cfg.DefaultReliability = *d.DefaultReliability
	}
	if d.CourierCapacity != nil {
		cfg.CourierCapacity = *d.CourierCapacity
	}
	if d.IndexThreshold != nil {
		cfg.IndexThreshold = *d.IndexThreshold
	}
	return cfg
}

// Expected lists the outcome keyed by order id.
type Expected struct {
	Assignments map[string]string  `yaml:"assignments"`
	Skipped     map[string]string  `yaml:"skipped"`
	Scores      map[string]float64 `yaml:"scores,omitempty"`
}

type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Dispatch    DispatchDef       `yaml:"dispatch,omitempty"`
	Snapshot    snapshot.Document `yaml:"snapshot"`
	Expected    Expected          `yaml:"expected"`
}

// Load reads a scenario file. Unknown keys are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	return &sc, nil
}
