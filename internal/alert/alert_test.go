// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryxhq/oryx/internal/wire"
)

func synPacket(src [4]byte) wire.AppPacket {
	var pkt wire.AppPacket
	pkt.Dir = wire.DirectionIngress
	pkt.SetIPv4(wire.IPv4Payload{
		Src:       src,
		Protocol:  6,
		Transport: wire.NewTCPTransport(wire.TCPHeader{Flags: wire.TCPFlagSYN}),
	})
	return pkt
}

func ackPacket(src [4]byte) wire.AppPacket {
	var pkt wire.AppPacket
	pkt.Dir = wire.DirectionIngress
	pkt.SetIPv4(wire.IPv4Payload{
		Src:       src,
		Protocol:  6,
		Transport: wire.NewTCPTransport(wire.TCPHeader{Flags: wire.TCPFlagACK}),
	})
	return pkt
}

func TestDetector_RaisesAboveThreshold(t *testing.T) {
	cfg := Config{WindowSize: 10, Threshold: 0.8, QuietPeriod: time.Second}
	d := New(cfg)

	for i := 0; i < 9; i++ {
		d.observe(synPacket([4]byte{10, 0, 0, 1}))
	}
	d.observe(ackPacket([4]byte{10, 0, 0, 2}))

	now := time.Now()
	d.sweep(now)

	active := d.Active()
	require.NotNil(t, active)
	assert.Greater(t, active.ObservedRatio, cfg.Threshold)
}

func TestDetector_StaysBelowThresholdNeverFires(t *testing.T) {
	cfg := Config{WindowSize: 10, Threshold: 0.8, QuietPeriod: time.Second}
	d := New(cfg)

	d.observe(synPacket([4]byte{10, 0, 0, 1}))
	for i := 0; i < 9; i++ {
		d.observe(ackPacket([4]byte{10, 0, 0, 2}))
	}

	d.sweep(time.Now())
	assert.Nil(t, d.Active())
}

func TestDetector_ClearsAfterQuietPeriod(t *testing.T) {
	cfg := Config{WindowSize: 10, Threshold: 0.8, QuietPeriod: 100 * time.Millisecond}
	d := New(cfg)

	for i := 0; i < 10; i++ {
		d.observe(synPacket([4]byte{10, 0, 0, 1}))
	}
	now := time.Now()
	d.sweep(now)
	require.NotNil(t, d.Active())

	// Traffic quiets down; the window fills with ACKs, dragging the ratio
	// below Threshold, but the alert only clears once QuietPeriod elapses.
	for i := 0; i < 10; i++ {
		d.observe(ackPacket([4]byte{10, 0, 0, 2}))
	}
	stillClearing := now.Add(50 * time.Millisecond)
	d.sweep(stillClearing)
	assert.NotNil(t, d.Active(), "quiet period has not elapsed yet")

	afterQuiet := now.Add(200 * time.Millisecond)
	d.sweep(afterQuiet)
	assert.Nil(t, d.Active())

	history := d.History()
	require.Len(t, history, 2) // raise + clear
}

func TestDetector_TopOffendersIsDisplayOnlyAndDoesNotGateDetection(t *testing.T) {
	cfg := Config{WindowSize: 10, Threshold: 0.8, QuietPeriod: time.Second, OffenderMinCount: 1}
	d := New(cfg)

	// A single low-volume source stays well under the global ratio
	// threshold; it must show up in the display breakdown without ever
	// raising an alert on its own.
	for i := 0; i < 2; i++ {
		d.observe(synPacket([4]byte{10, 0, 0, 9}))
	}
	for i := 0; i < 8; i++ {
		d.observe(ackPacket([4]byte{10, 0, 0, 2}))
	}

	d.sweep(time.Now())
	assert.Nil(t, d.Active())

	offenders := d.TopOffenders()
	require.Len(t, offenders, 1)
	assert.Equal(t, "10.0.0.9", offenders[0].Source)
	assert.EqualValues(t, 2, offenders[0].Count)
}

func TestDetector_TopOffendersResetsEachSampleCycle(t *testing.T) {
	cfg := Config{WindowSize: 10, Threshold: 0.8, QuietPeriod: time.Second, OffenderMinCount: 1}
	d := New(cfg)

	d.observe(synPacket([4]byte{10, 0, 0, 1}))
	d.sweep(time.Now())
	require.Len(t, d.TopOffenders(), 1)

	for i := 0; i < 5; i++ {
		d.observe(ackPacket([4]byte{10, 0, 0, 2}))
	}
	d.sweep(time.Now())
	assert.Empty(t, d.TopOffenders())
}
