// rack_config.go - YAML rack file: startup instrument and parameter setup

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RackConfig describes the instruments to register once the engine reports
// ready, plus their initial parameter values. Example:
//
//	master_volume: 0.8
//	instruments:
//	  - id: 0
//	    type: synth
//	    polyphony: 8
//	    params:
//	      - {id: 1, value: 0.5}
//	  - id: 3
//	    type: drum
type RackConfig struct {
	MasterVolume *float64         `yaml:"master_volume"`
	Instruments  []RackInstrument `yaml:"instruments"`
}

type RackInstrument struct {
	ID        uint32      `yaml:"id"`
	Type      string      `yaml:"type"`
	Polyphony uint32      `yaml:"polyphony"`
	Params    []RackParam `yaml:"params"`
}

type RackParam struct {
	ID    uint32  `yaml:"id"`
	Value float64 `yaml:"value"`
}

var rackTypes = map[string]InstrumentType{
	"synth":   INSTRUMENT_SYNTH,
	"drum":    INSTRUMENT_DRUM,
	"fx":      INSTRUMENT_FX,
	"sampler": INSTRUMENT_SAMPLER,
}

// LoadRackFile parses and validates a rack file.
func LoadRackFile(path string) (*RackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRack(data)
}

// ParseRack parses rack YAML and rejects unknown instrument types and
// duplicate ids before anything reaches the dispatcher.
func ParseRack(data []byte) (*RackConfig, error) {
	var cfg RackConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rack: %w", err)
	}
	seen := make(map[uint32]bool)
	for i, inst := range cfg.Instruments {
		if _, ok := rackTypes[inst.Type]; !ok {
			return nil, fmt.Errorf("rack instrument %d: unknown type %q", inst.ID, inst.Type)
		}
		if seen[inst.ID] {
			return nil, fmt.Errorf("rack instrument %d: duplicate id", inst.ID)
		}
		seen[inst.ID] = true
		if inst.Polyphony == 0 {
			cfg.Instruments[i].Polyphony = 1
		}
	}
	return &cfg, nil
}

// Apply feeds the rack through the normal dispatcher path: registrations
// first, then parameter values, then master volume.
func (cfg *RackConfig) Apply(b *Bridge) {
	for _, inst := range cfg.Instruments {
		b.RegisterInstrument(inst.ID, rackTypes[inst.Type], inst.Polyphony)
		for _, p := range inst.Params {
			b.SetParameter(inst.ID, p.ID, p.Value)
		}
	}
	if cfg.MasterVolume != nil {
		b.SetMasterVolume(*cfg.MasterVolume)
	}
}
