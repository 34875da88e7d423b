// bridge_registry.go - Instrument registry mirrored into the DSP engine

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"sort"
	"sync"
)

// InstrumentRecord describes one registered instrument. Records are never
// removed; lifetime is the lifetime of the process.
type InstrumentRecord struct {
	ID        uint32
	Type      InstrumentType
	Polyphony uint32
	Enabled   bool
}

// InstrumentRegistry is the control-thread-owned table of registered
// instruments. The render thread never reads it directly; registrations are
// mirrored into the engine through the message ring, and the full table is
// replayed into a freshly loaded engine before that engine becomes visible
// to the render loop.
type InstrumentRegistry struct {
	mu      sync.Mutex
	records map[uint32]InstrumentRecord
}

func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{
		records: make(map[uint32]InstrumentRecord),
	}
}

// Register stores or overwrites the record for rec.ID. Re-registering an id
// is idempotent by id, matching the engine's slot-overwrite semantics.
func (reg *InstrumentRegistry) Register(rec InstrumentRecord) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec.Enabled = true
	reg.records[rec.ID] = rec
}

// Get returns the record for id, if present.
func (reg *InstrumentRegistry) Get(id uint32) (InstrumentRecord, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec, ok := reg.records[id]
	return rec, ok
}

// Count returns the number of registered instruments.
func (reg *InstrumentRegistry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.records)
}

// Snapshot returns a copy of all records sorted by id, for deterministic
// replay into a newly loaded engine.
func (reg *InstrumentRegistry) Snapshot() []InstrumentRecord {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]InstrumentRecord, 0, len(reg.records))
	for _, rec := range reg.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
