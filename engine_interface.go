// engine_interface.go - Calling contract between the render loop and a loaded DSP engine

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

// EngineState tracks the binding lifecycle.
type EngineState int32

const (
	ENGINE_UNBOUND EngineState = iota
	ENGINE_LOADING
	ENGINE_READY
	ENGINE_FAILED
)

func (s EngineState) String() string {
	switch s {
	case ENGINE_UNBOUND:
		return "unbound"
	case ENGINE_LOADING:
		return "loading"
	case ENGINE_READY:
		return "ready"
	case ENGINE_FAILED:
		return "failed"
	}
	return "unknown"
}

// DspEngine is the resolved calling contract of a loaded engine. The render
// thread is the only caller once a binding is live; the loader calls into it
// exactly once, before publication, to replay the instrument registry.
//
// WriteInput and ReadOutput re-validate the engine's memory view on every
// call: the engine may grow its linear memory between blocks, which moves
// the backing buffer. A false return means the view or the cached offsets
// no longer cover a full block and the caller must treat the block as a
// runtime failure.
type DspEngine interface {
	WriteInput(src []float32, channels, frames int) bool
	Process(frames int) error
	ReadOutput(dst []float32, channels, frames int) bool

	RegisterInstrument(id uint32, typ InstrumentType, polyphony uint32) error
	SetParameter(id, paramID uint32, value float32) error
	NoteOn(id, note uint32, velocity float32) error
	NoteOff(id, note uint32) error
	ResetInstrument(id uint32) error
	SetMasterVolume(volume float32) error

	// InstrumentCount reports the engine-side instrument table size, when
	// the engine exports a status entry point.
	InstrumentCount() (uint32, bool)

	Close() error
}
