// Package publisher implements the single-producer/single-consumer ring
// buffer of 64-byte decision records: power-of-two capacity, two
// monotonically increasing indices synchronized only via acquire/release
// atomics, and drop-on-full back-pressure. Grounded on the pack's
// disruptor-style ring (cache-line padding, atomic cursor fields) and its
// simple atomic index-masking ring, corrected from overwrite-on-full to
// drop-on-full per spec.md §4.8.
package publisher

import (
	"fmt"
	"sync/atomic"

	"tickengine/pkg/wire"
)

// cacheLinePad prevents false sharing between the producer and consumer
// cursors, which live on different cache lines in the real hardware design.
type cacheLinePad [64 - 8]byte

// Ring is a fixed-capacity SPSC queue of encoded decision records.
type Ring struct {
	capacity uint32
	mask     uint32
	slots    [][wire.RecordSize]byte

	producer uint32
	_        cacheLinePad
	consumer uint32
	_        cacheLinePad

	almostFullThreshold uint32

	drops uint64
}

// NewRing builds a Ring with the given power-of-two capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("publisher: ring capacity %d is not a power of two", capacity)
	}
	r := &Ring{
		capacity: uint32(capacity),
		mask:     uint32(capacity - 1),
		slots:    make([][wire.RecordSize]byte, capacity),
	}
	r.almostFullThreshold = r.capacity
	if r.capacity > 64 {
		r.almostFullThreshold = r.capacity - 64
	}
	return r, nil
}

// SetAlmostFullThreshold overrides the default almost-full watermark.
func (r *Ring) SetAlmostFullThreshold(n uint32) { r.almostFullThreshold = n }

// Publish writes rec into the next slot. If the ring is full, the record is
// dropped and the drop counter is incremented; publish never blocks and
// never overwrites an unconsumed slot.
func (r *Ring) Publish(rec *wire.DecisionRecord) {
	consumer := atomic.LoadUint32(&r.consumer)
	producer := r.producer // owned exclusively by the producer thread

	if producer-consumer == r.capacity {
		r.drops++
		return
	}

	slot := &r.slots[producer&r.mask]
	wire.Encode(rec, slot[:])

	atomic.StoreUint32(&r.producer, producer+1)
}

// TryNext returns the next unconsumed record without advancing the consumer
// index. ok is false if the ring is empty.
func (r *Ring) TryNext() (wire.DecisionRecord, bool) {
	producer := atomic.LoadUint32(&r.producer)
	consumer := r.consumer // owned exclusively by the consumer thread

	if producer == consumer {
		return wire.DecisionRecord{}, false
	}
	slot := &r.slots[consumer&r.mask]
	return wire.Decode(slot[:]), true
}

// Commit advances the consumer index by n, releasing n slots back to the
// producer.
func (r *Ring) Commit(n uint32) {
	atomic.StoreUint32(&r.consumer, r.consumer+n)
}

// Occupancy returns producer-consumer, the number of records currently in
// the ring.
func (r *Ring) Occupancy() uint32 {
	producer := atomic.LoadUint32(&r.producer)
	consumer := atomic.LoadUint32(&r.consumer)
	return producer - consumer
}

// AlmostFull reports whether occupancy has reached the configured
// watermark. It does not affect publish behavior.
func (r *Ring) AlmostFull() bool {
	return r.Occupancy() >= r.almostFullThreshold
}

// Drops returns the number of records dropped for a full ring.
func (r *Ring) Drops() uint64 { return r.drops }

// Capacity returns the ring's fixed capacity.
func (r *Ring) Capacity() int { return int(r.capacity) }
