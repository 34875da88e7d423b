// audio_interface.go - Audio output backend abstraction

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

// AudioOutput is the host render callback mechanism. The backend owns the
// render thread lifecycle: the bridge only ever answers RenderBlock calls.
type AudioOutput interface {
	// SetupPlayer attaches the bridge whose RenderBlock feeds the device.
	SetupPlayer(bridge *Bridge)
	// Start begins pulling blocks on the render thread.
	Start()
	// Stop pauses output.
	Stop()
	// Close releases the device.
	Close()
	// IsStarted reports whether output is running.
	IsStarted() bool
}

// NewAudioOutput returns the backend selected at build time: oto by
// default, a silent stub under the headless tag.
func NewAudioOutput(sampleRate int) (AudioOutput, error) {
	return NewOtoPlayer(sampleRate)
}
