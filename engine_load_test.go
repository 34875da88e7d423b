// engine_load_test.go - Binding lifecycle tests: load, replace, fail, replay

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadEngine_ReadyEmittedOncePerLoad(t *testing.T) {
	b := newTestBridge(t)
	first := &stubEngine{}
	second := &stubEngine{}
	engines := []*stubEngine{first, second}
	loads := 0
	b.newEngine = func([]byte, float32, int) (DspEngine, error) {
		eng := engines[loads]
		loads++
		return eng, nil
	}

	b.LoadEngine([]byte{0x00})
	waitNotify(t, b, NOTIFY_WASM_READY)
	if got := b.State(); got != ENGINE_READY {
		t.Fatalf("state = %s, want ready", got)
	}

	b.LoadEngine([]byte{0x00})
	waitNotify(t, b, NOTIFY_WASM_READY)

	// The second load replaces the binding rather than duplicating it.
	slot := b.engine.Load()
	if slot == nil || slot.dsp != DspEngine(second) {
		t.Fatal("render loop does not observe the second binding")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !first.isClosed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !first.isClosed() {
		t.Error("replaced binding never closed")
	}
	if second.isClosed() {
		t.Error("live binding closed")
	}

	if extra := drainNotifications(b); len(extra) != 0 {
		for _, n := range extra {
			if n.Kind == NOTIFY_WASM_READY {
				t.Error("duplicate wasm-ready notification")
			}
		}
	}
}

func TestLoadEngine_FailureFallsBackToSilence(t *testing.T) {
	b := newTestBridge(t)
	b.newEngine = func([]byte, float32, int) (DspEngine, error) {
		return nil, errors.New("bad module")
	}

	b.LoadEngine([]byte{0x00})
	deadline := time.Now().Add(2 * time.Second)
	for b.State() != ENGINE_FAILED && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := b.State(); got != ENGINE_FAILED {
		t.Fatalf("state = %s, want failed", got)
	}

	for _, n := range drainNotifications(b) {
		if n.Kind == NOTIFY_WASM_READY {
			t.Error("wasm-ready emitted for a failed load")
		}
	}

	_, out := renderBlocks(b, 1)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("sample %d = %g, want silence after failed load", i, s)
		}
	}
}

func TestLoadEngine_ReplaysRegistryIntoNewEngine(t *testing.T) {
	b := newTestBridge(t)

	// Registered before any engine exists; acknowledged but unmirrored.
	b.RegisterInstrument(2, INSTRUMENT_FX, 1)
	b.RegisterInstrument(7, INSTRUMENT_SYNTH, 8)
	renderBlocks(b, 1)

	eng := &stubEngine{}
	b.newEngine = func([]byte, float32, int) (DspEngine, error) { return eng, nil }
	b.LoadEngine([]byte{0x00})
	waitNotify(t, b, NOTIFY_WASM_READY)

	calls := eng.callsNamed("registerInstrument")
	if len(calls) != 2 {
		t.Fatalf("replayed %d registrations, want 2", len(calls))
	}
	// Snapshot replays in id order.
	if calls[0].id != 2 || calls[1].id != 7 {
		t.Errorf("replay order (%d, %d), want (2, 7)", calls[0].id, calls[1].id)
	}

	// Replay must not re-acknowledge instruments.
	for _, n := range drainNotifications(b) {
		if n.Kind == NOTIFY_INSTRUMENT_READY {
			t.Error("registry replay re-emitted instrument-ready")
		}
	}
}

func TestLoadEngine_SupersededLoadDiscarded(t *testing.T) {
	b := newTestBridge(t)
	slow := &stubEngine{}
	fast := &stubEngine{}
	release := make(chan struct{})
	var loads atomic.Int32
	b.newEngine = func([]byte, float32, int) (DspEngine, error) {
		if loads.Add(1) == 1 {
			<-release // First load stalls in instantiation
			return slow, nil
		}
		return fast, nil
	}

	b.LoadEngine([]byte{0x00})
	time.Sleep(10 * time.Millisecond)
	b.LoadEngine([]byte{0x00})
	waitNotify(t, b, NOTIFY_WASM_READY)
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for !slow.isClosed() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if !slow.isClosed() {
		t.Fatal("superseded load not discarded")
	}
	slot := b.engine.Load()
	if slot == nil || slot.dsp != DspEngine(fast) {
		t.Fatal("stale binding published over the newer one")
	}
	for _, n := range drainNotifications(b) {
		if n.Kind == NOTIFY_WASM_READY {
			t.Error("superseded load emitted wasm-ready")
		}
	}
}

func TestClose_InFlightLoadNeverPublishes(t *testing.T) {
	b := NewBridge(nil, SAMPLE_RATE, BLOCK_SIZE)
	eng := &stubEngine{}
	started := make(chan struct{})
	release := make(chan struct{})
	b.newEngine = func([]byte, float32, int) (DspEngine, error) {
		close(started)
		<-release // Stall instantiation until the bridge is torn down
		return eng, nil
	}

	b.LoadEngine([]byte{0x00})
	<-started
	b.Close()
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for !eng.isClosed() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if !eng.isClosed() {
		t.Fatal("binding from a post-close load was never discarded")
	}
	if slot := b.engine.Load(); slot != nil {
		t.Error("closed bridge still publishes a binding")
	}
	if got := b.State(); got != ENGINE_UNBOUND {
		t.Errorf("state = %s after close, want unbound", got)
	}
	for _, n := range drainNotifications(b) {
		if n.Kind == NOTIFY_WASM_READY {
			t.Error("closed bridge emitted wasm-ready")
		}
	}
}

func TestDispatch_EmptyBlobNeverLoads(t *testing.T) {
	b := newTestBridge(t)
	b.newEngine = func([]byte, float32, int) (DspEngine, error) {
		t.Error("loader invoked for empty blob")
		return &stubEngine{}, nil
	}
	b.Dispatch(ControlMessage{Kind: MSG_LOAD_WASM})
	time.Sleep(20 * time.Millisecond)
	if got := b.State(); got != ENGINE_UNBOUND {
		t.Errorf("state = %s, want unbound", got)
	}
}
