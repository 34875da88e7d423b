// bridge_render.go - Per-block render loop: drain, exchange buffers, meter

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

// RenderBlock runs once per fixed-size audio block on the render thread.
// in and out are interleaved float32 sample buffers holding channels*frames
// samples, where frames is the bridge block size and channels is 1 or 2.
//
// Order per block: advance the block sequence, drain the message ring, then
// either exchange buffers with the engine or zero-fill, then meter. The
// return value is always true; lifecycle belongs to the host callback.
//
// The hot path never allocates, never blocks and never logs, except a
// single log line on the transition to the failed state.
func (b *Bridge) RenderBlock(in, out []float32, channels int) bool {
	frames := b.blockSize
	b.blockSeq.Add(1)

	slot := b.engine.Load()
	b.drain(slot)

	rendered := false
	if slot != nil {
		if b.processBlock(slot.dsp, in, out, channels, frames) {
			b.faultStreak = 0
			rendered = true
		} else {
			b.faultStreak++
			if b.faultStreak >= FAULT_LIMIT {
				b.failFromRender(slot)
			}
		}
	}
	if !rendered {
		zeroFill(out, channels*frames)
	}

	b.meter.Accumulate(out, channels, frames)
	if b.meter.Due() {
		peakLeft, peakRight := b.meter.Report()
		b.notifyControl(Notification{
			Kind:      NOTIFY_METER_UPDATE,
			PeakLeft:  peakLeft,
			PeakRight: peakRight,
		})
		if peakLeft >= PEAK_THRESHOLD || peakRight >= PEAK_THRESHOLD {
			b.notifyControl(Notification{Kind: NOTIFY_PEAK_DETECTED})
		}
	}
	return true
}

// processBlock performs one buffer exchange with the engine. The memory
// view is re-acquired inside WriteInput and ReadOutput on every call
// because the engine may have grown its linear memory since the last
// block; a stale view is a runtime failure, not undefined behavior.
func (b *Bridge) processBlock(dsp DspEngine, in, out []float32, channels, frames int) bool {
	if !dsp.WriteInput(in, channels, frames) {
		return false
	}
	if err := dsp.Process(frames); err != nil {
		return false
	}
	return dsp.ReadOutput(out, channels, frames)
}

// drain applies the messages that were already queued when the block began.
// Handlers are O(1) and silently no-op against a missing engine, except
// registration acknowledgements, which are owed to the control thread
// whether or not an engine is bound.
func (b *Bridge) drain(slot *engineSlot) {
	for i := 0; i < RING_CAPACITY; i++ {
		msg, ok := b.ring.Pop()
		if !ok {
			return
		}
		b.apply(slot, msg)
	}
}

func (b *Bridge) apply(slot *engineSlot, msg ControlMessage) {
	var dsp DspEngine
	if slot != nil {
		dsp = slot.dsp
	}

	switch msg.Kind {
	case MSG_PARAM_CHANGE:
		if dsp != nil {
			_ = dsp.SetParameter(msg.InstrumentID, msg.Data1, msg.Data2)
		}
	case MSG_NOTE_ON:
		if dsp != nil {
			_ = dsp.NoteOn(msg.InstrumentID, msg.Data1, msg.Data2)
		}
	case MSG_NOTE_OFF:
		if dsp != nil {
			_ = dsp.NoteOff(msg.InstrumentID, msg.Data1)
		}
	case MSG_RESET:
		if dsp != nil {
			_ = dsp.ResetInstrument(msg.InstrumentID)
		}
	case MSG_SET_MASTER_VOLUME:
		if dsp != nil {
			_ = dsp.SetMasterVolume(msg.Data2)
		}
	case MSG_REGISTER_INSTRUMENT:
		if dsp != nil {
			_ = dsp.RegisterInstrument(msg.InstrumentID,
				InstrumentType(msg.Data1), uint32(msg.Data2))
		}
		b.notifyControl(Notification{
			Kind:         NOTIFY_INSTRUMENT_READY,
			InstrumentID: msg.InstrumentID,
		})
	}
}

// failFromRender transitions the binding to failed after persistent process
// faults. The slot is handed off for deferred close; subsequent blocks fall
// back to silence.
func (b *Bridge) failFromRender(slot *engineSlot) {
	if b.engine.CompareAndSwap(slot, nil) {
		b.setState(ENGINE_FAILED)
		b.retireFromRender(slot)
		b.log.Errorw("engine disabled after repeated process faults",
			"faults", b.faultStreak)
	}
	b.faultStreak = 0
}

func zeroFill(out []float32, n int) {
	for i := 0; i < n; i++ {
		out[i] = 0
	}
}
