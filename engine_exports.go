// engine_exports.go - Export name resolution for NEXUS-X WASM engine builds

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Engine entry points by capability. Emscripten builds export either the
// plain C name or an underscore-prefixed variant depending on toolchain
// flags, so each capability carries an ordered candidate list: the plain
// name first, the prefixed fallback second.
const (
	// initialize(sampleRate: f32)
	EXPORT_INITIALIZE = "initialize"
	// getInputBuffer() -> i32 byte offset of the stereo input region
	EXPORT_GET_INPUT_BUFFER = "getInputBuffer"
	// getOutputBuffer() -> i32 byte offset of the stereo output region
	EXPORT_GET_OUTPUT_BUFFER = "getOutputBuffer"
	// process(numSamples: u32)
	EXPORT_PROCESS = "process"
	// registerInstrument(id: u32, type: u32, polyphony: u32)
	EXPORT_REGISTER_INSTRUMENT = "registerInstrument"
	// setParameter(instrumentId: u32, paramId: u32, value: f32)
	EXPORT_SET_PARAMETER = "setParameter"
	// noteOn(instrumentId: u32, note: u32, velocity: f32)
	EXPORT_NOTE_ON = "noteOn"
	// noteOff(instrumentId: u32, note: u32)
	EXPORT_NOTE_OFF = "noteOff"
	// resetInstrument(instrumentId: u32)
	EXPORT_RESET_INSTRUMENT = "resetInstrument"

	// Optional exports
	// setMasterVolume(volume: f32)
	EXPORT_SET_MASTER_VOLUME = "setMasterVolume"
	// getStatus() -> u32 registered instrument count
	EXPORT_GET_STATUS = "getStatus"
	// destroy()
	EXPORT_DESTROY = "destroy"
	// __wasm_call_ctors() - reactor-model constructor hook
	EXPORT_CALL_CTORS = "__wasm_call_ctors"
)

// exportSource is the narrow slice of api.Module the resolver needs.
type exportSource interface {
	ExportedFunction(name string) api.Function
}

// resolveExport walks the candidate names in priority order and returns the
// first resolved function. A nil return means no candidate was exported.
func resolveExport(mod exportSource, names ...string) api.Function {
	for _, name := range names {
		if fn := mod.ExportedFunction(name); fn != nil {
			return fn
		}
	}
	return nil
}

// resolveRequiredExport is resolveExport for mandatory capabilities; absence
// of every candidate is a load failure.
func resolveRequiredExport(mod exportSource, names ...string) (api.Function, error) {
	if fn := resolveExport(mod, names...); fn != nil {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: no export named %q", errMissingExport, names[0])
}

// candidates returns the ordered symbol names for a capability.
func candidates(name string) []string {
	return []string{name, "_" + name}
}
