// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryxhq/oryx/internal/wire"
)

func packet(pid uint32) wire.AppPacket {
	return wire.AppPacket{PID: pid}
}

func TestBus_PublishSubscribe_FIFO(t *testing.T) {
	b := New(8)
	sub := b.Subscribe()

	b.Publish(packet(1))
	b.Publish(packet(2))
	b.Publish(packet(3))

	p1, lag, ok := sub.Next()
	require.True(t, ok)
	assert.Zero(t, lag)
	assert.Equal(t, uint32(1), p1.PID)

	p2, _, ok := sub.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), p2.PID)

	p3, _, ok := sub.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(3), p3.PID)

	_, _, ok = sub.Next()
	assert.False(t, ok, "no more records available")
}

func TestBus_NeverBlocksProducer(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	_ = sub // slow subscriber that never reads

	for i := 0; i < 1000; i++ {
		b.Publish(packet(uint32(i)))
	}
	// Publish returning at all (vs. deadlocking) is the property under test.
}

func TestBus_LagSignal(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(packet(uint32(i)))
	}

	pkt, lagged, ok := sub.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(6), lagged, "10 published into a 4-slot ring before any read: 6 lost")
	assert.Equal(t, uint32(6), pkt.PID, "tail jumps to head-capacity, landing on the oldest surviving record")
}

func TestBus_NewSubscriberOnlySeesFuturePublishes(t *testing.T) {
	b := New(8)
	b.Publish(packet(1))

	sub := b.Subscribe()
	_, _, ok := sub.Next()
	assert.False(t, ok)

	b.Publish(packet(2))
	pkt, _, ok := sub.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), pkt.PID)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(8)
	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())
}
