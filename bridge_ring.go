// bridge_ring.go - Bounded SPSC ring carrying control messages to the render thread

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import "sync/atomic"

const RING_CAPACITY = 256 // Must be a power of two

// messageRing is a bounded single-producer/single-consumer ring buffer.
// The dispatcher (control thread) pushes, the render thread pops at the top
// of each block. Positions are free-running; the mask is only applied when
// indexing, so the emptiness check readPos==writePos stays valid across
// wraparound. Slots hold messages by value so neither side allocates.
type messageRing struct {
	buffer   [RING_CAPACITY]ControlMessage
	writePos atomic.Uint32
	readPos  atomic.Uint32
	dropped  atomic.Uint64
}

// Push enqueues a message without blocking. Returns false and counts a drop
// when the ring is full. Single producer only.
func (r *messageRing) Push(msg ControlMessage) bool {
	write := r.writePos.Load()
	read := r.readPos.Load()
	if write-read >= RING_CAPACITY {
		r.dropped.Add(1)
		return false
	}
	r.buffer[write&(RING_CAPACITY-1)] = msg
	r.writePos.Store(write + 1)
	return true
}

// Pop dequeues the oldest message. Returns false when the ring is empty.
// Single consumer only.
func (r *messageRing) Pop() (ControlMessage, bool) {
	read := r.readPos.Load()
	if read == r.writePos.Load() {
		return ControlMessage{}, false
	}
	msg := r.buffer[read&(RING_CAPACITY-1)]
	// Release the blob reference before the slot is recycled
	r.buffer[read&(RING_CAPACITY-1)].ModuleBlob = nil
	r.readPos.Store(read + 1)
	return msg, true
}

// Len reports the number of queued messages. Approximate under concurrency.
func (r *messageRing) Len() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// Dropped reports how many messages were discarded because the ring was full.
func (r *messageRing) Dropped() uint64 {
	return r.dropped.Load()
}
