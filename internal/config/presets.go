package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/steersim/internal/dynamo"
)

func preset(sc dynamo.Scenario, mutate func(p *dynamo.Params)) *Config {
	p := dynamo.DefaultParams()
	p.Scenario = sc
	if mutate != nil {
		mutate(&p)
	}
	return FromParams(p)
}

var Presets = map[string]*Config{
	"initial":     preset(dynamo.ScenarioInitialOffset, nil),
	"disturbance": preset(dynamo.ScenarioDisturbance, nil),
	"tracking":    preset(dynamo.ScenarioTracking, nil),
	"aggressive": preset(dynamo.ScenarioInitialOffset, func(p *dynamo.Params) {
		p.Gains = dynamo.Gains{Kp: 80, Ki: 10, Kd: 10}
	}),
	"soft": preset(dynamo.ScenarioInitialOffset, func(p *dynamo.Params) {
		p.Gains = dynamo.Gains{Kp: 20, Ki: 2.5, Kd: 2.5}
	}),
	"long": preset(dynamo.ScenarioDisturbance, func(p *dynamo.Params) {
		p.Duration = 20
	}),
}

var presetDescriptions = map[string]string{
	"initial":     "10 deg initial deflection, zero reference",
	"disturbance": "2.86 deg deflection kick at t=2s",
	"tracking":    "5 deg reference step at t=2s",
	"aggressive":  "initial offset with doubled gains",
	"soft":        "initial offset with halved gains",
	"long":        "disturbance rejection over 20s",
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

// LookupPreset is GetPreset returning ErrUnknownPreset for missing names.
func LookupPreset(name string) (*Config, error) {
	cfg := GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownPreset, name, ListPresets())
	}
	return cfg, nil
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one-line summary of a preset.
func Describe(name string) string {
	return presetDescriptions[name]
}
