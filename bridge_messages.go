// bridge_messages.go - Control message and notification definitions for the NEXUS bridge

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

// MessageKind discriminates control messages and outbound notifications.
// Values are wire-compatible with the NEXUS-X engine's MessageType enum.
type MessageKind uint32

const (
	// Control thread -> bridge
	MSG_PARAM_CHANGE        MessageKind = 0
	MSG_NOTE_ON             MessageKind = 1
	MSG_NOTE_OFF            MessageKind = 2
	MSG_RESET               MessageKind = 3
	MSG_REGISTER_INSTRUMENT MessageKind = 4
	MSG_LOAD_WASM           MessageKind = 5
	MSG_SET_MASTER_VOLUME   MessageKind = 6

	// Bridge -> control thread
	NOTIFY_METER_UPDATE     MessageKind = 100
	NOTIFY_PEAK_DETECTED    MessageKind = 101
	NOTIFY_INSTRUMENT_READY MessageKind = 102
	NOTIFY_WASM_READY       MessageKind = 103
)

// InstrumentType values match the engine's instrument table.
type InstrumentType uint32

const (
	INSTRUMENT_SYNTH   InstrumentType = 0
	INSTRUMENT_DRUM    InstrumentType = 1
	INSTRUMENT_FX      InstrumentType = 2
	INSTRUMENT_SAMPLER InstrumentType = 3
)

// ControlMessage is the tagged record carried from the control thread to the
// bridge. Data1/Data2 are overloaded the same way the engine overloads them:
// paramId/note/type in Data1, value/velocity/polyphony in Data2. ModuleBlob
// is only set for MSG_LOAD_WASM.
type ControlMessage struct {
	Kind         MessageKind
	InstrumentID uint32
	Data1        uint32
	Data2        float32
	ModuleBlob   []byte
}

// Notification is a snapshot record emitted from the bridge back to the
// control thread. It is copied into the notification channel, never shared.
type Notification struct {
	Kind         MessageKind
	InstrumentID uint32
	PeakLeft     float32
	PeakRight    float32
}

func (k MessageKind) String() string {
	switch k {
	case MSG_PARAM_CHANGE:
		return "param-change"
	case MSG_NOTE_ON:
		return "note-on"
	case MSG_NOTE_OFF:
		return "note-off"
	case MSG_RESET:
		return "reset"
	case MSG_REGISTER_INSTRUMENT:
		return "register-instrument"
	case MSG_LOAD_WASM:
		return "load-wasm"
	case MSG_SET_MASTER_VOLUME:
		return "set-master-volume"
	case NOTIFY_METER_UPDATE:
		return "meter-update"
	case NOTIFY_PEAK_DETECTED:
		return "peak-detected"
	case NOTIFY_INSTRUMENT_READY:
		return "instrument-ready"
	case NOTIFY_WASM_READY:
		return "wasm-ready"
	}
	return "unknown"
}

func (t InstrumentType) String() string {
	switch t {
	case INSTRUMENT_SYNTH:
		return "synth"
	case INSTRUMENT_DRUM:
		return "drum"
	case INSTRUMENT_FX:
		return "fx"
	case INSTRUMENT_SAMPLER:
		return "sampler"
	}
	return "unknown"
}
