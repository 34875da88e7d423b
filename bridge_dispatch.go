// bridge_dispatch.go - Control message validation, clamping and routing

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import "math"

const (
	PARAM_VALUE_LIMIT = 1000000.0 // Safety clamp for parameter values
	NOTE_MAX          = 127
	POLYPHONY_MAX     = 64 // Voices per instrument
)

// Dispatch validates one control message and routes it. Malformed or
// unrecognized messages are logged and dropped; nothing on this path ever
// panics across the thread boundary. Engine-touching messages are clamped
// here, on the control path, then enqueued for the render thread to apply
// at the top of its next block. Engine loads run on their own goroutine.
//
// Safe to call from multiple control-side goroutines; callers are
// serialized onto the single-producer ring.
func (b *Bridge) Dispatch(msg ControlMessage) {
	switch msg.Kind {
	case MSG_LOAD_WASM:
		if len(msg.ModuleBlob) == 0 {
			b.log.Warnw("dropping load-wasm message with empty module blob")
			return
		}
		blob := make([]byte, len(msg.ModuleBlob))
		copy(blob, msg.ModuleBlob)
		go b.loadEngine(blob)
		return

	case MSG_REGISTER_INSTRUMENT:
		if msg.Data1 > uint32(INSTRUMENT_SAMPLER) {
			b.log.Warnw("dropping register-instrument with unknown type",
				"instrument", msg.InstrumentID, "type", msg.Data1)
			return
		}
		polyphony := clampPolyphony(msg.Data2)
		b.registry.Register(InstrumentRecord{
			ID:        msg.InstrumentID,
			Type:      InstrumentType(msg.Data1),
			Polyphony: polyphony,
		})
		msg.Data2 = float32(polyphony)
		b.enqueue(msg)
		return

	case MSG_PARAM_CHANGE:
		if !isFinite(msg.Data2) {
			b.log.Warnw("dropping param-change with non-finite value",
				"instrument", msg.InstrumentID, "param", msg.Data1)
			return
		}
		msg.Data2 = clampParam(msg.Data2)
		b.enqueue(msg)
		return

	case MSG_NOTE_ON:
		if msg.Data1 > NOTE_MAX {
			msg.Data1 = NOTE_MAX
		}
		msg.Data2 = clampVelocity(msg.Data2)
		b.enqueue(msg)
		return

	case MSG_NOTE_OFF, MSG_RESET:
		if msg.Data1 > NOTE_MAX {
			msg.Data1 = NOTE_MAX
		}
		msg.Data2 = 0
		b.enqueue(msg)
		return

	case MSG_SET_MASTER_VOLUME:
		if !isFinite(msg.Data2) {
			b.log.Warnw("dropping set-master-volume with non-finite value")
			return
		}
		msg.Data2 = clampVelocity(msg.Data2) // Same 0..1 range as velocity
		b.enqueue(msg)
		return
	}

	b.log.Warnw("dropping message with unrecognized kind", "kind", uint32(msg.Kind))
}

func (b *Bridge) enqueue(msg ControlMessage) {
	msg.ModuleBlob = nil
	b.dispatchMu.Lock()
	ok := b.ring.Push(msg)
	b.dispatchMu.Unlock()
	if !ok {
		b.log.Warnw("message ring full, dropping",
			"kind", msg.Kind.String(), "dropped", b.ring.Dropped())
	}
}

// Convenience control API mirroring the engine's exported surface. These
// run on the control-message delivery path: no allocation, bounded time.

// SetParameter clamps value to the safety range and forwards it. Non-finite
// values never reach the engine.
func (b *Bridge) SetParameter(instrumentID, paramID uint32, value float64) {
	b.Dispatch(ControlMessage{
		Kind:         MSG_PARAM_CHANGE,
		InstrumentID: instrumentID,
		Data1:        paramID,
		Data2:        float32(value),
	})
}

// NoteOn clamps note to an integer in [0,127] and velocity to [0,1].
func (b *Bridge) NoteOn(instrumentID uint32, note, velocity float64) {
	b.Dispatch(ControlMessage{
		Kind:         MSG_NOTE_ON,
		InstrumentID: instrumentID,
		Data1:        clampNote(note),
		Data2:        float32(velocity),
	})
}

// NoteOff clamps note the same way NoteOn does.
func (b *Bridge) NoteOff(instrumentID uint32, note float64) {
	b.Dispatch(ControlMessage{
		Kind:         MSG_NOTE_OFF,
		InstrumentID: instrumentID,
		Data1:        clampNote(note),
	})
}

// RegisterInstrument records the instrument and mirrors it into the engine.
func (b *Bridge) RegisterInstrument(id uint32, typ InstrumentType, polyphony uint32) {
	b.Dispatch(ControlMessage{
		Kind:         MSG_REGISTER_INSTRUMENT,
		InstrumentID: id,
		Data1:        uint32(typ),
		Data2:        float32(polyphony),
	})
}

// Reset forwards an instrument reset.
func (b *Bridge) Reset(instrumentID uint32) {
	b.Dispatch(ControlMessage{Kind: MSG_RESET, InstrumentID: instrumentID})
}

// SetMasterVolume clamps volume to [0,1] and forwards it.
func (b *Bridge) SetMasterVolume(volume float64) {
	b.Dispatch(ControlMessage{Kind: MSG_SET_MASTER_VOLUME, Data2: float32(volume)})
}

// LoadEngine starts an asynchronous engine load from a module blob.
func (b *Bridge) LoadEngine(blob []byte) {
	b.Dispatch(ControlMessage{Kind: MSG_LOAD_WASM, ModuleBlob: blob})
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampParam(v float32) float32 {
	if v > PARAM_VALUE_LIMIT {
		return PARAM_VALUE_LIMIT
	}
	if v < -PARAM_VALUE_LIMIT {
		return -PARAM_VALUE_LIMIT
	}
	return v
}

func clampVelocity(v float32) float32 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampPolyphony maps a raw float32 voice count to [1, POLYPHONY_MAX].
// Converting a negative, NaN or out-of-range float straight to uint32 is
// implementation-defined, so the float is bounded first.
func clampPolyphony(v float32) uint32 {
	if !(v >= 1) { // Below one, or NaN
		return 1
	}
	if v > POLYPHONY_MAX {
		return POLYPHONY_MAX
	}
	return uint32(v)
}

func clampNote(note float64) uint32 {
	if math.IsNaN(note) || note < 0 {
		return 0
	}
	if note > NOTE_MAX {
		return NOTE_MAX
	}
	return uint32(note)
}
