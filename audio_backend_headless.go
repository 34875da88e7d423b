//go:build headless

// audio_backend_headless.go - Silent audio backend for tests and CI

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

type OtoPlayer struct {
	started bool
	bridge  *Bridge
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	return &OtoPlayer{}, nil
}

func (op *OtoPlayer) SetupPlayer(bridge *Bridge) {
	op.bridge = bridge
}

// RenderOnce drives one block by hand; headless hosts have no device clock.
func (op *OtoPlayer) RenderOnce(in, out []float32) {
	if op.bridge != nil {
		op.bridge.RenderBlock(in, out, 2)
	}
}

func (op *OtoPlayer) Start() {
	op.started = true
}

func (op *OtoPlayer) Stop() {
	op.started = false
}

func (op *OtoPlayer) Close() {
	op.started = false
}

func (op *OtoPlayer) IsStarted() bool {
	return op.started
}
