//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

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
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

const AUDIO_CHANNELS = 2 // Stereo interleaved throughout

type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	bridge  atomic.Pointer[Bridge] // Atomic for lock-free Read()
	inBuf   []float32              // Pre-allocated block input (silence; playback only)
	outBuf  []float32              // Pre-allocated block output
	outPos  int                    // Read position into outBuf, in samples
	outLen  int                    // Valid samples in outBuf
	started bool
	mutex   sync.Mutex // Only for setup/control operations
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: AUDIO_CHANNELS,
		Format:       oto.FormatFloat32LE,
		BufferSize:   10 * time.Millisecond,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{
		ctx:     ctx,
		started: false,
	}, nil
}

func (op *OtoPlayer) SetupPlayer(bridge *Bridge) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.bridge.Store(bridge)
	op.inBuf = make([]float32, bridge.BlockSize()*AUDIO_CHANNELS)
	op.outBuf = make([]float32, bridge.BlockSize()*AUDIO_CHANNELS)
	op.player = op.ctx.NewPlayer(op)
}

// Read is the render callback: oto pulls bytes, the bridge renders fixed
// 128-frame blocks. Block remainders carry over in outBuf between calls so
// the bridge never sees a partial block. No locks, no allocation.
func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	bridge := op.bridge.Load()
	if bridge == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	samples := len(p) / 4
	written := 0
	for written < samples {
		if op.outPos == op.outLen {
			bridge.RenderBlock(op.inBuf, op.outBuf, AUDIO_CHANNELS)
			op.outPos = 0
			op.outLen = len(op.outBuf)
		}
		chunk := samples - written
		if avail := op.outLen - op.outPos; chunk > avail {
			chunk = avail
		}
		src := (*[1 << 30]byte)(unsafe.Pointer(&op.outBuf[op.outPos]))[: chunk*4 : chunk*4]
		copy(p[written*4:], src)
		written += chunk
		op.outPos += chunk
	}
	return samples * 4, nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Pause()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
