// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bus implements the packet bus: a fixed-capacity broadcast ring
// that delivers every published AppPacket to N subscribers without ever
// blocking the producer. Channels either block the sender or drop globally
// rather than per subscriber, so this is built directly on sync/atomic.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/oryxhq/oryx/internal/wire"
)

// DefaultCapacity is the bus ring size in records.
const DefaultCapacity = 10_000

// Bus is a single-writer, multi-reader ring. Publish never blocks: it
// always advances head and overwrites the oldest slot once the ring wraps.
// Subscribers detect having fallen behind by comparing their own tail to
// head and catch up by jumping, never by blocking the writer.
type Bus struct {
	capacity uint64
	slots    []wire.AppPacket
	mutex    []sync.RWMutex // per-slot, guards a slot during its overwrite
	head     atomic.Uint64  // next slot index to write (monotonic)

	subMutex sync.Mutex
	subs     map[*Subscriber]struct{}
}

// New creates a Bus with room for capacity records. Any positive size
// works; a power of two is not required.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{
		capacity: uint64(capacity),
		slots:    make([]wire.AppPacket, capacity),
		mutex:    make([]sync.RWMutex, capacity),
		subs:     make(map[*Subscriber]struct{}),
	}
	return b
}

// Publish writes pkt into the next ring slot and advances head. It never
// waits on a subscriber.
func (b *Bus) Publish(pkt wire.AppPacket) {
	idx := b.head.Load()
	slot := idx % b.capacity
	b.mutex[slot].Lock()
	b.slots[slot] = pkt
	b.mutex[slot].Unlock()
	b.head.Add(1)
}

// Subscribe registers a new subscriber whose tail starts at the current
// head, so it only ever sees packets published after it joined.
func (b *Bus) Subscribe() *Subscriber {
	s := &Subscriber{bus: b}
	s.tail.Store(b.head.Load())

	b.subMutex.Lock()
	b.subs[s] = struct{}{}
	b.subMutex.Unlock()
	return s
}

// Unsubscribe removes s from the bus. Safe to call more than once.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.subMutex.Lock()
	delete(b.subs, s)
	b.subMutex.Unlock()
}

// SubscriberCount reports the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.subMutex.Lock()
	defer b.subMutex.Unlock()
	return len(b.subs)
}

// Subscriber is one reader's view into the bus. Each Subscriber has its own
// tail index; Next advances it and reports a lag signal if the writer has
// overwritten unread slots since the last call.
type Subscriber struct {
	bus  *Bus
	tail atomic.Uint64
}

// Next returns the next unread packet. ok is false only when the reader is
// caught up to head (nothing new yet) — callers should back off or select
// on a wakeup channel rather than spin. lagged is the number of records
// skipped because the writer outran this subscriber past bus capacity.
func (s *Subscriber) Next() (pkt wire.AppPacket, lagged uint64, ok bool) {
	head := s.bus.head.Load()
	tail := s.tail.Load()

	if tail >= head {
		return wire.AppPacket{}, 0, false
	}

	if head-tail > s.bus.capacity {
		lagged = (head - tail) - s.bus.capacity
		tail = head - s.bus.capacity
	}

	slot := tail % s.bus.capacity
	s.bus.mutex[slot].RLock()
	pkt = s.bus.slots[slot]
	s.bus.mutex[slot].RUnlock()

	s.tail.Store(tail + 1)
	return pkt, lagged, true
}

// Pending reports how many unread records (bounded by capacity) remain for
// this subscriber.
func (s *Subscriber) Pending() uint64 {
	head := s.bus.head.Load()
	tail := s.tail.Load()
	if head <= tail {
		return 0
	}
	if head-tail > s.bus.capacity {
		return s.bus.capacity
	}
	return head - tail
}
