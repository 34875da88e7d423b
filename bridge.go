// bridge.go - Render-thread bridge context: engine binding lifecycle and notifications

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	BLOCK_SIZE  = 128   // Frames per render block (WebAudio render quantum)
	SAMPLE_RATE = 44100 // Default host sample rate

	NOTIFY_CAPACITY = 64 // Buffered notifications before the transport drops
	FAULT_LIMIT     = 3  // Consecutive process faults before the binding fails
)

// engineSlot wraps the live engine so the binding reference can be swapped
// atomically. The render loop observes either the old fully-formed binding
// or the new one, never a partial construction.
type engineSlot struct {
	dsp DspEngine
}

// Bridge owns everything the render callback touches. It is constructed on
// the control thread at engine-start and torn down at engine-stop; there is
// no package-level state.
type Bridge struct {
	log        *zap.SugaredLogger
	sampleRate float32
	blockSize  int

	dispatchMu sync.Mutex // Serializes producers onto the SPSC ring
	ring       messageRing
	registry   *InstrumentRegistry

	engine   atomic.Pointer[engineSlot]
	state    atomic.Int32
	loadMu   sync.Mutex    // Serializes binding publication against Close
	loadSeq  atomic.Uint32 // Generation counter; stale async loads are discarded
	blockSeq atomic.Uint64 // Advances once per render block

	meter       *MeterAccumulator
	notify      chan Notification
	faultStreak int // Render-thread owned

	retireCh chan *engineSlot
	quit     chan struct{}
	wg       sync.WaitGroup

	// newEngine builds a binding from a module blob. Swappable in tests.
	newEngine func(blob []byte, sampleRate float32, blockSize int) (DspEngine, error)
}

func NewBridge(log *zap.Logger, sampleRate float32, blockSize int) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	if sampleRate <= 0 {
		sampleRate = SAMPLE_RATE
	}
	if blockSize <= 0 {
		blockSize = BLOCK_SIZE
	}
	b := &Bridge{
		log:        log.Sugar(),
		sampleRate: sampleRate,
		blockSize:  blockSize,
		registry:   NewInstrumentRegistry(),
		meter:      NewMeterAccumulator(METER_INTERVAL),
		notify:     make(chan Notification, NOTIFY_CAPACITY),
		retireCh:   make(chan *engineSlot, 4),
		quit:       make(chan struct{}),
		newEngine:  newWasmEngine,
	}
	b.wg.Add(1)
	go b.retireLoop()
	return b
}

// Notifications is the bridge -> control telemetry channel. Fire-and-forget:
// the render thread never blocks on it, so a slow consumer sees dropped
// reports rather than audio glitches.
func (b *Bridge) Notifications() <-chan Notification {
	return b.notify
}

// State reports the current engine binding state.
func (b *Bridge) State() EngineState {
	return EngineState(b.state.Load())
}

// Registry exposes the control-thread instrument table.
func (b *Bridge) Registry() *InstrumentRegistry {
	return b.registry
}

// BlockSize returns the fixed render quantum in frames.
func (b *Bridge) BlockSize() int {
	return b.blockSize
}

// Close tears the bridge down: pending loads are invalidated, the live
// binding and any retired ones are released. Not render-safe; call after
// the audio output has stopped. An in-flight load that finishes after
// Close observes the closed quit channel under loadMu and discards its
// binding instead of publishing it.
func (b *Bridge) Close() {
	b.loadMu.Lock()
	b.loadSeq.Add(1)
	close(b.quit)
	b.loadMu.Unlock()
	old := b.engine.Swap(nil)
	b.state.Store(int32(ENGINE_UNBOUND))
	b.wg.Wait()
	if old != nil {
		_ = old.dsp.Close()
	}
}

// closed reports whether Close has run. Callers that must not act on a
// closed bridge check it under loadMu.
func (b *Bridge) closed() bool {
	select {
	case <-b.quit:
		return true
	default:
		return false
	}
}

func (b *Bridge) setState(s EngineState) {
	b.state.Store(int32(s))
}

// notifyControl delivers a notification without blocking. Lossy by design.
func (b *Bridge) notifyControl(n Notification) {
	select {
	case b.notify <- n:
	default:
	}
}

// loadEngine runs on a control-side goroutine: module instantiation is far
// too slow for the render path. The registry is replayed into the new
// binding before publication, so the render thread never observes an engine
// missing instruments it has already acknowledged.
func (b *Bridge) loadEngine(blob []byte) {
	seq := b.loadSeq.Add(1)
	b.setState(ENGINE_LOADING)
	b.log.Infow("engine load started", "bytes", len(blob))

	eng, err := b.newEngine(blob, b.sampleRate, b.blockSize)
	if err != nil {
		b.log.Errorw("engine load failed", "error", err)
		var old *engineSlot
		b.loadMu.Lock()
		if b.loadSeq.Load() == seq && !b.closed() {
			b.setState(ENGINE_FAILED)
			old = b.engine.Swap(nil)
		}
		b.loadMu.Unlock()
		if old != nil {
			b.retire(old)
		}
		return
	}

	for _, rec := range b.registry.Snapshot() {
		if err := eng.RegisterInstrument(rec.ID, rec.Type, rec.Polyphony); err != nil {
			b.log.Warnw("instrument replay failed",
				"instrument", rec.ID, "error", err)
		}
	}
	if count, ok := eng.InstrumentCount(); ok {
		b.log.Infow("engine instrument table replayed", "count", count)
	}

	// Publication and Close hold the same lock, so a load can never slip
	// its binding in after teardown has swapped the slot away.
	b.loadMu.Lock()
	if b.loadSeq.Load() != seq || b.closed() {
		// A newer load or Close superseded this one while we were
		// instantiating.
		b.loadMu.Unlock()
		_ = eng.Close()
		return
	}
	old := b.engine.Swap(&engineSlot{dsp: eng})
	b.setState(ENGINE_READY)
	b.loadMu.Unlock()
	b.notifyControl(Notification{Kind: NOTIFY_WASM_READY})
	b.log.Infow("engine ready", "sampleRate", b.sampleRate, "blockSize", b.blockSize)
	if old != nil {
		b.retire(old)
	}
}

// retire hands a replaced binding to the closer goroutine. May block; only
// called from control-side goroutines.
func (b *Bridge) retire(old *engineSlot) {
	select {
	case b.retireCh <- old:
	case <-b.quit:
		_ = old.dsp.Close()
	}
}

// retireFromRender is the render-thread variant: never blocks. If the retire
// channel is full the slot leaks until Close; with a 4-deep channel that
// takes four failed reloads inside one block boundary.
func (b *Bridge) retireFromRender(old *engineSlot) {
	select {
	case b.retireCh <- old:
	default:
	}
}

// retireLoop closes replaced bindings once the render loop has passed a
// block boundary, so no in-flight block can still be calling into them.
func (b *Bridge) retireLoop() {
	defer b.wg.Done()
	for {
		select {
		case slot := <-b.retireCh:
			b.waitBlockBoundary()
			_ = slot.dsp.Close()
		case <-b.quit:
			for {
				select {
				case slot := <-b.retireCh:
					_ = slot.dsp.Close()
				default:
					return
				}
			}
		}
	}
}

// waitBlockBoundary waits until the render loop starts another block, with a
// timeout covering the case where no render loop is running at all.
func (b *Bridge) waitBlockBoundary() {
	seq := b.blockSeq.Load()
	deadline := time.Now().Add(500 * time.Millisecond)
	for b.blockSeq.Load() == seq && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}
