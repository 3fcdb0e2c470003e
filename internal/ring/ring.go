// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ring drains the classifier's per-CPU perf rings and republishes
// each record as a wire.AppPacket, wall-clock stamped at dequeue time.
package ring

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/perf"

	"github.com/oryxhq/oryx/internal/logging"
	"github.com/oryxhq/oryx/internal/wire"
)

// DefaultRingSize is the per-CPU perf buffer size in bytes, a power of two.
const DefaultRingSize = 256 * 1024

// PollTimeout bounds how long one Reader.Read call blocks, keeping shutdown
// responsive.
const PollTimeout = 250 * time.Millisecond

// Consumer polls every per-CPU ring in round-robin and hands each decoded
// record to a Publisher (internal/bus.Bus in production).
type Consumer struct {
	reader    *perf.Reader
	publisher Publisher
	logger    *logging.Logger

	lost   uint64
	onLost func(uint64)
}

// Publisher receives packets dequeued from the ring. Implemented by
// internal/bus.Bus; kept as an interface here so ring tests don't need a
// real bus.
type Publisher interface {
	Publish(wire.AppPacket)
}

// NewConsumer opens a perf reader over the classifier's DATA map. ringSize
// is the per-CPU buffer size in bytes; pass 0 for DefaultRingSize.
func NewConsumer(dataMap *ebpf.Map, publisher Publisher, logger *logging.Logger, ringSize int) (*Consumer, error) {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	rd, err := perf.NewReader(dataMap, ringSize)
	if err != nil {
		return nil, fmt.Errorf("open perf reader on DATA map: %w", err)
	}
	return &Consumer{reader: rd, publisher: publisher, logger: logger}, nil
}

// Run drains the ring until ctx is cancelled. It always drains to empty
// before returning so an interface detach never discards a partially
// flushed capture batch.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		deadline := time.Now().Add(PollTimeout)
		if ctx.Err() != nil {
			deadline = time.Now() // cancelled: only take what is already queued
		}
		c.reader.SetDeadline(deadline)
		record, err := c.reader.Read()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if ctx.Err() != nil {
					return nil // cancelled and drained to empty
				}
				continue // poll timeout; re-check ctx on next loop iteration
			}
			if errors.Is(err, perf.ErrClosed) {
				return nil
			}
			c.logger.Debug("ring read error", "error", err)
			continue
		}

		if record.LostSamples > 0 {
			c.lost += record.LostSamples
			if c.onLost != nil {
				c.onLost(record.LostSamples)
			}
			c.logger.Debug("ring reservation exhausted", "lost", record.LostSamples)
			continue
		}

		pkt, err := decode(record.RawSample)
		if err != nil {
			// Protocol-class error: benign, never surfaced.
			c.logger.Debug("malformed ring record", "error", err)
			continue
		}
		pkt.TimestampSec = uint64(time.Now().Unix())
		c.publisher.Publish(pkt)
	}
}

// LostSamples reports captures dropped by ring reservation failure in the
// kernel, surfaced through internal/diagnostics as RuntimeRingReserveExhausted.
func (c *Consumer) LostSamples() uint64 { return c.lost }

// SetLostHook registers fn to be called from Run with each lost-sample batch
// size, before Run starts. The diagnostics meter hangs off this.
func (c *Consumer) SetLostHook(fn func(uint64)) { c.onLost = fn }

// decode reinterprets a raw perf sample as a wire.AppPacket. The kernel
// writes the struct byte-for-byte; a short read means a truncated record
// that the kernel itself would never emit deliberately, so it is treated
// as a protocol-class error rather than retried.
func decode(raw []byte) (wire.AppPacket, error) {
	var pkt wire.AppPacket
	size := int(wireSize(pkt))
	if len(raw) < size {
		return wire.AppPacket{}, fmt.Errorf("short ring record: got %d bytes, want %d", len(raw), size)
	}
	if err := binaryRead(raw[:size], &pkt); err != nil {
		return wire.AppPacket{}, err
	}
	return pkt, nil
}

func wireSize(pkt wire.AppPacket) uintptr {
	return uintptr(binary.Size(pkt))
}

func binaryRead(raw []byte, pkt *wire.AppPacket) error {
	return binary.Read(bytes.NewReader(raw), binary.LittleEndian, pkt)
}
