// bridge_meter.go - Peak level metering on the render thread

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

const (
	METER_INTERVAL = 4096 // Frames between meter reports
	PEAK_THRESHOLD = 1.0  // Report peak-detected at or above this level
)

// MeterAccumulator tracks the running per-channel peak of rendered output.
// It is owned exclusively by the render thread; reports leave as snapshot
// copies. Peaks and the frame counter reset to zero immediately after each
// report.
type MeterAccumulator struct {
	peakLeft  float32
	peakRight float32
	frames    int
	interval  int
}

func NewMeterAccumulator(interval int) *MeterAccumulator {
	if interval <= 0 {
		interval = METER_INTERVAL
	}
	return &MeterAccumulator{interval: interval}
}

// Accumulate folds one rendered block into the running peaks. out is
// interleaved with the given channel count; mono input meters both sides
// from the single channel.
func (m *MeterAccumulator) Accumulate(out []float32, channels, frames int) {
	if channels == 1 {
		for i := 0; i < frames; i++ {
			s := out[i]
			if s < 0 {
				s = -s
			}
			if s > m.peakLeft {
				m.peakLeft = s
			}
		}
		m.peakRight = m.peakLeft
	} else {
		for i := 0; i < frames; i++ {
			l := out[i*2]
			if l < 0 {
				l = -l
			}
			if l > m.peakLeft {
				m.peakLeft = l
			}
			r := out[i*2+1]
			if r < 0 {
				r = -r
			}
			if r > m.peakRight {
				m.peakRight = r
			}
		}
	}
	m.frames += frames
}

// Due reports whether the accumulation interval has elapsed.
func (m *MeterAccumulator) Due() bool {
	return m.frames >= m.interval
}

// Report snapshots the current peaks and resets the accumulator.
func (m *MeterAccumulator) Report() (peakLeft, peakRight float32) {
	peakLeft, peakRight = m.peakLeft, m.peakRight
	m.peakLeft = 0
	m.peakRight = 0
	m.frames = 0
	return peakLeft, peakRight
}
