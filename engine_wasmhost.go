// engine_wasm.go - wazero-hosted binding to the NEXUS-X WASM DSP engine

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/emscripten"
	wasi "github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Load failure taxonomy. All of these leave the binding unconstructed; the
// render loop keeps producing silence.
var (
	errMissingExport   = errors.New("engine missing mandatory export")
	errNoMemory        = errors.New("engine exports no linear memory")
	errBadBufferOffset = errors.New("engine buffer offset outside linear memory")
)

const (
	SAMPLE_BYTES = 4 // float32

	// Upper bound on engine linear memory: 64MiB. The module's own declared
	// maximum still applies below this; capacity is committed up front so
	// in-range growth never reallocates mid-session.
	ENGINE_MEMORY_PAGES = 1024
)

// WasmEngine is the resolved binding to one instantiated engine module:
// typed entry points plus the cached input/output sample offsets. Offsets
// are element offsets into the engine's float32 sample space; the byte view
// they index is re-acquired from the module on every buffer exchange.
//
// Calls are single-threaded by construction: the loader touches the binding
// only before publication, after which the render thread is the sole caller
// until the binding is retired past a block boundary.
type WasmEngine struct {
	ctx     context.Context
	runtime wazero.Runtime
	module  api.Module
	mem     api.Memory

	initialize         api.Function
	getInputBuffer     api.Function
	getOutputBuffer    api.Function
	process            api.Function
	registerInstrument api.Function
	setParameter       api.Function
	noteOn             api.Function
	noteOff            api.Function
	resetInstrument    api.Function

	// Optional exports; nil when the engine build does not carry them
	setMasterVolume api.Function
	getStatus       api.Function
	destroy         api.Function

	inputOff  uint32 // float32 element offset of the input region
	outputOff uint32 // float32 element offset of the output region
	blockSize int

	callStack [4]uint64 // Pre-allocated CallWithStack scratch for the hot path
}

// newWasmEngine instantiates an engine module blob and resolves its calling
// contract: entry points (plain name, then underscore-prefixed fallback),
// initialization at the host sample rate, and the buffer offsets. Any error
// discards the partial construction.
func newWasmEngine(blob []byte, sampleRate float32, blockSize int) (DspEngine, error) {
	ctx := context.Background()
	cfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(ENGINE_MEMORY_PAGES).
		WithMemoryCapacityFromMax(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	eng, err := instantiateEngine(ctx, runtime, blob, sampleRate, blockSize)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}
	return eng, nil
}

func instantiateEngine(ctx context.Context, runtime wazero.Runtime, blob []byte, sampleRate float32, blockSize int) (*WasmEngine, error) {
	compiled, err := runtime.CompileModule(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("compile engine module: %w", err)
	}

	// Emscripten builds import from env and sometimes WASI; satisfy both.
	wasi.MustInstantiate(ctx, runtime)
	if _, err := emscripten.InstantiateForModule(ctx, runtime, compiled); err != nil {
		return nil, fmt.Errorf("instantiate emscripten host module: %w", err)
	}

	// The engine is a reactor module: suppress _start and run constructors
	// explicitly below.
	module, err := runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("nexus-dsp").WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("instantiate engine module: %w", err)
	}

	eng := &WasmEngine{
		ctx:       ctx,
		runtime:   runtime,
		module:    module,
		blockSize: blockSize,
	}
	if eng.mem = module.Memory(); eng.mem == nil {
		return nil, errNoMemory
	}

	if ctors := resolveExport(module, EXPORT_CALL_CTORS); ctors != nil {
		if _, err := ctors.Call(ctx); err != nil {
			return nil, fmt.Errorf("engine constructors: %w", err)
		}
	}

	type binding struct {
		fn   *api.Function
		name string
	}
	for _, bind := range []binding{
		{&eng.initialize, EXPORT_INITIALIZE},
		{&eng.getInputBuffer, EXPORT_GET_INPUT_BUFFER},
		{&eng.getOutputBuffer, EXPORT_GET_OUTPUT_BUFFER},
		{&eng.process, EXPORT_PROCESS},
		{&eng.registerInstrument, EXPORT_REGISTER_INSTRUMENT},
		{&eng.setParameter, EXPORT_SET_PARAMETER},
		{&eng.noteOn, EXPORT_NOTE_ON},
		{&eng.noteOff, EXPORT_NOTE_OFF},
		{&eng.resetInstrument, EXPORT_RESET_INSTRUMENT},
	} {
		if *bind.fn, err = resolveRequiredExport(module, candidates(bind.name)...); err != nil {
			return nil, err
		}
	}
	eng.setMasterVolume = resolveExport(module, candidates(EXPORT_SET_MASTER_VOLUME)...)
	eng.getStatus = resolveExport(module, candidates(EXPORT_GET_STATUS)...)
	eng.destroy = resolveExport(module, candidates(EXPORT_DESTROY)...)

	if _, err := eng.initialize.Call(ctx, uint64(api.EncodeF32(sampleRate))); err != nil {
		return nil, fmt.Errorf("engine initialize(%g): %w", sampleRate, err)
	}

	if eng.inputOff, err = eng.resolveBufferOffset(eng.getInputBuffer, EXPORT_GET_INPUT_BUFFER); err != nil {
		return nil, err
	}
	if eng.outputOff, err = eng.resolveBufferOffset(eng.getOutputBuffer, EXPORT_GET_OUTPUT_BUFFER); err != nil {
		return nil, err
	}
	return eng, nil
}

// resolveBufferOffset calls a buffer getter once, converts the returned
// byte offset to a float32 element offset, and bounds-checks it against the
// current memory size. A corrupt module reporting offsets outside its own
// memory is a load failure, not something to recover from.
func (eng *WasmEngine) resolveBufferOffset(fn api.Function, name string) (uint32, error) {
	results, err := fn.Call(eng.ctx)
	if err != nil {
		return 0, fmt.Errorf("engine %s: %w", name, err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("%w: %s returned no value", errBadBufferOffset, name)
	}
	byteOff := uint32(results[0])
	if byteOff%SAMPLE_BYTES != 0 {
		return 0, fmt.Errorf("%w: %s returned misaligned offset %d", errBadBufferOffset, name, byteOff)
	}
	regionBytes := uint32(eng.blockSize) * 2 * SAMPLE_BYTES
	if byteOff+regionBytes > eng.mem.Size() || byteOff+regionBytes < byteOff {
		return 0, fmt.Errorf("%w: %s offset %d + region %d exceeds memory size %d",
			errBadBufferOffset, name, byteOff, regionBytes, eng.mem.Size())
	}
	return byteOff / SAMPLE_BYTES, nil
}

// region re-acquires the byte view for one stereo block at the given
// element offset. Must be called every block: linear memory growth moves
// the backing buffer and invalidates prior views.
func (eng *WasmEngine) region(elemOff uint32, frames int) ([]byte, bool) {
	return eng.mem.Read(elemOff*SAMPLE_BYTES, uint32(frames)*2*SAMPLE_BYTES)
}

// WriteInput copies the host input block into the engine's input region,
// stereo-interleaved. A mono host feeds the same sample to both sides.
func (eng *WasmEngine) WriteInput(src []float32, channels, frames int) bool {
	buf, ok := eng.region(eng.inputOff, frames)
	if !ok {
		return false
	}
	if channels == 1 {
		for i := 0; i < frames; i++ {
			bits := math.Float32bits(src[i])
			binary.LittleEndian.PutUint32(buf[i*8:], bits)
			binary.LittleEndian.PutUint32(buf[i*8+4:], bits)
		}
	} else {
		for i := 0; i < frames*2; i++ {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(src[i]))
		}
	}
	return true
}

// ReadOutput copies the engine's output region back to the host block. A
// mono host receives the engine's left channel.
func (eng *WasmEngine) ReadOutput(dst []float32, channels, frames int) bool {
	buf, ok := eng.region(eng.outputOff, frames)
	if !ok {
		return false
	}
	if channels == 1 {
		for i := 0; i < frames; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8:]))
		}
	} else {
		for i := 0; i < frames*2; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
	}
	return true
}

// Process renders one block inside the engine. Pre-allocated stack call so
// the render path stays allocation-free.
func (eng *WasmEngine) Process(frames int) error {
	eng.callStack[0] = uint64(uint32(frames))
	return eng.process.CallWithStack(eng.ctx, eng.callStack[:1])
}

func (eng *WasmEngine) RegisterInstrument(id uint32, typ InstrumentType, polyphony uint32) error {
	eng.callStack[0] = uint64(id)
	eng.callStack[1] = uint64(uint32(typ))
	eng.callStack[2] = uint64(polyphony)
	return eng.registerInstrument.CallWithStack(eng.ctx, eng.callStack[:3])
}

func (eng *WasmEngine) SetParameter(id, paramID uint32, value float32) error {
	eng.callStack[0] = uint64(id)
	eng.callStack[1] = uint64(paramID)
	eng.callStack[2] = uint64(api.EncodeF32(value))
	return eng.setParameter.CallWithStack(eng.ctx, eng.callStack[:3])
}

func (eng *WasmEngine) NoteOn(id, note uint32, velocity float32) error {
	eng.callStack[0] = uint64(id)
	eng.callStack[1] = uint64(note)
	eng.callStack[2] = uint64(api.EncodeF32(velocity))
	return eng.noteOn.CallWithStack(eng.ctx, eng.callStack[:3])
}

func (eng *WasmEngine) NoteOff(id, note uint32) error {
	eng.callStack[0] = uint64(id)
	eng.callStack[1] = uint64(note)
	return eng.noteOff.CallWithStack(eng.ctx, eng.callStack[:2])
}

func (eng *WasmEngine) ResetInstrument(id uint32) error {
	eng.callStack[0] = uint64(id)
	return eng.resetInstrument.CallWithStack(eng.ctx, eng.callStack[:1])
}

func (eng *WasmEngine) SetMasterVolume(volume float32) error {
	if eng.setMasterVolume == nil {
		return nil
	}
	eng.callStack[0] = uint64(api.EncodeF32(volume))
	return eng.setMasterVolume.CallWithStack(eng.ctx, eng.callStack[:1])
}

func (eng *WasmEngine) InstrumentCount() (uint32, bool) {
	if eng.getStatus == nil {
		return 0, false
	}
	results, err := eng.getStatus.Call(eng.ctx)
	if err != nil || len(results) == 0 {
		return 0, false
	}
	return uint32(results[0]), true
}

// Close tears down the module instance and its runtime. Called only after
// the binding is unreachable from the render loop.
func (eng *WasmEngine) Close() error {
	if eng.destroy != nil {
		_, _ = eng.destroy.Call(eng.ctx)
	}
	return eng.runtime.Close(eng.ctx)
}
