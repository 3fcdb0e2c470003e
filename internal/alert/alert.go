// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package alert implements the SYN-flood detector: a global sliding window
// over the most recent ingress packets that raises and auto-clears a
// SynFlood alert once the SYN ratio crosses a threshold (by default a
// 100,000-packet window sampled every five seconds, alerting past a 95%
// SYN ratio). The per-source counts kept here are a display-only
// top-offenders breakdown, not an alternate detection mode. Raised and
// cleared alerts go out on an event channel and into a bounded history
// ring; rendering them is the notification bar's concern, not this
// package's.
package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oryxhq/oryx/internal/bus"
	"github.com/oryxhq/oryx/internal/wire"
)

// Config tunes the detector.
type Config struct {
	WindowSize       int           // packets tracked in the global sliding window (N)
	Threshold        float64       // SYN ratio over WindowSize that raises the alert (0..1)
	SampleInterval   time.Duration // how often the window's ratio is (re-)evaluated
	QuietPeriod      time.Duration // ratio must stay below Threshold this long before clearing
	OffenderMinCount uint64        // per-source SYN count floor for the display breakdown
}

// DefaultConfig is a 100,000-packet window sampled every five seconds,
// alerting past a 95% SYN ratio.
func DefaultConfig() Config {
	return Config{
		WindowSize:       100_000,
		Threshold:        0.95,
		SampleInterval:   5 * time.Second,
		QuietPeriod:      15 * time.Second,
		OffenderMinCount: 10_000,
	}
}

// Alert is one SynFlood occurrence.
type Alert struct {
	ObservedRatio    float64
	Since            time.Time
	ClearingDeadline time.Time
}

// SourceCount is one row of the per-source SYN breakdown, display only —
// it never feeds back into whether an Alert is raised or cleared.
type SourceCount struct {
	Source string
	Count  uint64
}

// Detector owns its sliding window and per-source display counts.
type Detector struct {
	cfg Config

	mutex       sync.RWMutex
	window      []bool // ring of "was this ingress packet a SYN" outcomes
	head        int
	filled      int
	synInWindow int

	sourceCounts  map[string]uint64 // rebuilt fresh every SampleInterval
	lastOffenders []SourceCount

	active *Alert

	maxHistory int
	history    []Alert

	events chan Alert
}

// New creates a Detector with the given configuration.
func New(cfg Config) *Detector {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	return &Detector{
		cfg:          cfg,
		window:       make([]bool, cfg.WindowSize),
		sourceCounts: make(map[string]uint64),
		maxHistory:   1000,
		events:       make(chan Alert, 64),
	}
}

// Events delivers raised and cleared alerts to subscribers (e.g. the TUI
// notification bar). Cleared alerts are sent with ClearingDeadline already
// in the past.
func (d *Detector) Events() <-chan Alert { return d.events }

// Run subscribes to bus and folds every ingress packet into the sliding
// window, re-evaluating the SYN ratio once per SampleInterval, until ctx is
// cancelled.
func (d *Detector) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ticker := time.NewTicker(d.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for {
				pkt, _, ok := sub.Next()
				if !ok {
					break
				}
				d.observe(pkt)
			}
			d.sweep(now)
		}
	}
}

func isSYN(pkt wire.AppPacket) bool {
	t := pkt.Transport()
	if t == nil || t.Kind != wire.TransportTCP {
		return false
	}
	flags := t.TCP().Flags
	return flags&wire.TCPFlagSYN != 0 && flags&wire.TCPFlagACK == 0
}

// observe folds one ingress packet into the global window and, for SYNs,
// the current cycle's per-source display breakdown. Egress packets are
// ignored; flooding is an ingress phenomenon here.
func (d *Detector) observe(pkt wire.AppPacket) {
	if pkt.Dir != wire.DirectionIngress {
		return
	}
	syn := isSYN(pkt)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.recordLocked(syn)
	if syn {
		if src := pkt.SrcIP(); src != nil {
			d.sourceCounts[src.String()]++
		}
	}
}

func (d *Detector) recordLocked(syn bool) {
	if d.filled < len(d.window) {
		d.window[d.head] = syn
		if syn {
			d.synInWindow++
		}
		d.filled++
	} else {
		if evicted := d.window[d.head]; evicted != syn {
			if syn {
				d.synInWindow++
			} else {
				d.synInWindow--
			}
		}
		d.window[d.head] = syn
	}
	d.head = (d.head + 1) % len(d.window)
}

// sweep re-evaluates the window's SYN ratio and rebuilds the per-source
// display breakdown, then resets it, so the table always reflects the
// cycle just finished.
func (d *Detector) sweep(now time.Time) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var ratio float64
	if d.filled > 0 {
		ratio = float64(d.synInWindow) / float64(d.filled)
	}
	d.evaluateLocked(ratio, now)

	d.lastOffenders = topOffenders(d.sourceCounts, d.cfg.OffenderMinCount)
	d.sourceCounts = make(map[string]uint64)
}

// evaluateLocked must be called with d.mutex held.
func (d *Detector) evaluateLocked(ratio float64, now time.Time) {
	if ratio > d.cfg.Threshold {
		if d.active == nil {
			a := Alert{ObservedRatio: ratio, Since: now}
			d.active = &a
			d.record(a)
			d.emit(a)
		} else {
			d.active.ObservedRatio = ratio
			d.active.ClearingDeadline = time.Time{} // still flooding: cancel any pending clear
		}
		return
	}

	if d.active != nil {
		if d.active.ClearingDeadline.IsZero() {
			d.active.ClearingDeadline = now.Add(d.cfg.QuietPeriod)
		}
		if !now.Before(d.active.ClearingDeadline) {
			cleared := *d.active
			d.active = nil
			d.record(cleared)
			d.emit(cleared)
		}
	}
}

func (d *Detector) record(a Alert) {
	d.history = append(d.history, a)
	if len(d.history) > d.maxHistory {
		d.history = d.history[1:]
	}
}

func (d *Detector) emit(a Alert) {
	select {
	case d.events <- a:
	default:
		// A stalled notification-bar subscriber must never back-pressure
		// the detector; drop rather than block.
	}
}

// Active reports the currently-raised alert, or nil if the window is quiet.
func (d *Detector) Active() *Alert {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if d.active == nil {
		return nil
	}
	a := *d.active
	return &a
}

// History returns a copy of the alert history ring, most recent last.
func (d *Detector) History() []Alert {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	out := make([]Alert, len(d.history))
	copy(out, d.history)
	return out
}

// TopOffenders returns the per-source SYN counts from the most recently
// completed sample cycle, above Config.OffenderMinCount, highest first —
// a display-only table. It never feeds back into Active.
func (d *Detector) TopOffenders() []SourceCount {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	out := make([]SourceCount, len(d.lastOffenders))
	copy(out, d.lastOffenders)
	return out
}

func topOffenders(counts map[string]uint64, minCount uint64) []SourceCount {
	out := make([]SourceCount, 0, len(counts))
	for src, n := range counts {
		if n < minCount {
			continue
		}
		out = append(out, SourceCount{Source: src, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
