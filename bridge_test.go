// bridge_test.go - Shared test fixtures: stub engine and bridge helpers

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"sync"
	"testing"
	"time"
)

// engineCall records one forwarded call into the stub engine.
type engineCall struct {
	name  string
	id    uint32
	arg   uint32
	value float32
}

// stubEngine implements DspEngine and records every call. Guarded by a
// mutex so race tests can hammer it from both threads.
type stubEngine struct {
	mu         sync.Mutex
	calls      []engineCall
	output     []float32 // Copied to the host on ReadOutput
	processErr error
	writeFail  bool
	readFail   bool
	processed  int
	closed     bool
}

func (s *stubEngine) record(c engineCall) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *stubEngine) callsNamed(name string) []engineCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []engineCall
	for _, c := range s.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (s *stubEngine) WriteInput(src []float32, channels, frames int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.writeFail
}

func (s *stubEngine) Process(frames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	return s.processErr
}

func (s *stubEngine) ReadOutput(dst []float32, channels, frames int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readFail {
		return false
	}
	for i := range dst {
		if i < len(s.output) {
			dst[i] = s.output[i]
		} else {
			dst[i] = 0
		}
	}
	return true
}

func (s *stubEngine) RegisterInstrument(id uint32, typ InstrumentType, polyphony uint32) error {
	s.record(engineCall{name: "registerInstrument", id: id, arg: uint32(typ), value: float32(polyphony)})
	return nil
}

func (s *stubEngine) SetParameter(id, paramID uint32, value float32) error {
	s.record(engineCall{name: "setParameter", id: id, arg: paramID, value: value})
	return nil
}

func (s *stubEngine) NoteOn(id, note uint32, velocity float32) error {
	s.record(engineCall{name: "noteOn", id: id, arg: note, value: velocity})
	return nil
}

func (s *stubEngine) NoteOff(id, note uint32) error {
	s.record(engineCall{name: "noteOff", id: id, arg: note})
	return nil
}

func (s *stubEngine) ResetInstrument(id uint32) error {
	s.record(engineCall{name: "resetInstrument", id: id})
	return nil
}

func (s *stubEngine) SetMasterVolume(volume float32) error {
	s.record(engineCall{name: "setMasterVolume", value: volume})
	return nil
}

func (s *stubEngine) InstrumentCount() (uint32, bool) {
	return 0, false
}

func (s *stubEngine) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stubEngine) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	b := NewBridge(nil, SAMPLE_RATE, BLOCK_SIZE)
	t.Cleanup(b.Close)
	return b
}

// attachStub publishes a stub engine as the live binding, bypassing the
// async load path.
func attachStub(b *Bridge, eng *stubEngine) {
	b.engine.Store(&engineSlot{dsp: eng})
	b.setState(ENGINE_READY)
}

func renderBlocks(b *Bridge, n int) (in, out []float32) {
	in = make([]float32, b.BlockSize()*2)
	out = make([]float32, b.BlockSize()*2)
	for i := 0; i < n; i++ {
		b.RenderBlock(in, out, 2)
	}
	return in, out
}

// waitNotify drains notifications until one of the wanted kind arrives.
func waitNotify(t *testing.T, b *Bridge, kind MessageKind) Notification {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-b.Notifications():
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s notification", kind)
		}
	}
}

// drainNotifications collects everything currently queued.
func drainNotifications(b *Bridge) []Notification {
	var out []Notification
	for {
		select {
		case n := <-b.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}
