// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package stats implements the Statistics Aggregator: rolling counters per
// protocol, top-10 tables for source/destination/visited-host, fed by a
// single bus subscriber goroutine. Aggregator.Run is the only writer apart
// from Reset; everything else reads through a read-mostly lock.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oryxhq/oryx/internal/bus"
	"github.com/oryxhq/oryx/internal/resolve"
	"github.com/oryxhq/oryx/internal/wire"
)

const topN = 10

// ProtocolCounters holds packet/byte totals for one protocol layer.
type ProtocolCounters struct {
	Packets uint64
	Bytes   uint64
}

func (c *ProtocolCounters) add(n uint64) {
	if c.Packets != ^uint64(0) {
		c.Packets++
	}
	if c.Bytes > ^uint64(0)-n {
		c.Bytes = ^uint64(0)
	} else {
		c.Bytes += n
	}
}

// Entry is one row of a top-N table.
type Entry struct {
	Key      string
	Count    uint64
	LastSeen time.Time
}

// Snapshot is a point-in-time, read-only copy returned by Aggregator.Snapshot.
type Snapshot struct {
	Link        map[string]ProtocolCounters
	Network     map[string]ProtocolCounters
	Transport   map[string]ProtocolCounters
	TopSources  []Entry
	TopDests    []Entry
	TopHosts    []Entry
	TotalPacket uint64
}

// Aggregator owns all statistics state. The goroutine running Run mutates it,
// and Reset clears it from the caller's goroutine under the same lock;
// Snapshot is the read-mostly accessor every other task uses.
type Aggregator struct {
	mutex sync.RWMutex

	link      map[string]*ProtocolCounters
	network   map[string]*ProtocolCounters
	transport map[string]*ProtocolCounters

	sources map[string]*countEntry
	dests   map[string]*countEntry
	hosts   map[string]*countEntry

	resolver *resolve.Resolver
	total    uint64
}

type countEntry struct {
	count    uint64
	lastSeen time.Time
}

// New creates an empty Aggregator. resolver may be nil, in which case
// visited-host entries always show the literal destination address.
func New(resolver *resolve.Resolver) *Aggregator {
	return &Aggregator{
		link:      make(map[string]*ProtocolCounters),
		network:   make(map[string]*ProtocolCounters),
		transport: make(map[string]*ProtocolCounters),
		sources:   make(map[string]*countEntry),
		dests:     make(map[string]*countEntry),
		hosts:     make(map[string]*countEntry),
		resolver:  resolver,
	}
}

// Run subscribes to bus and processes packets until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				pkt, _, ok := sub.Next()
				if !ok {
					break
				}
				a.observe(pkt)
			}
		}
	}
}

func (a *Aggregator) observe(pkt wire.AppPacket) {
	a.mutex.Lock()

	a.total++

	linkName := linkKind(pkt.Net.Kind)
	a.bump(a.link, linkName, pkt.Length)

	if proto := transportKind(pkt.Transport()); proto != "" {
		a.bump(a.transport, proto, pkt.Length)
	}
	if pkt.Net.Kind == wire.NetworkIPv4 || pkt.Net.Kind == wire.NetworkIPv6 {
		a.bump(a.network, linkName, pkt.Length)
	}

	src, dst := pkt.SrcIP(), pkt.DstIP()
	now := time.Now()
	if src != nil {
		bumpTop(a.sources, src.String(), now)
	}
	if dst != nil {
		bumpTop(a.dests, dst.String(), now)
		a.mutex.Unlock()
		a.observeHost(dst.String(), now)
		return
	}
	a.mutex.Unlock()
}

func (a *Aggregator) observeHost(dst string, now time.Time) {
	host := dst
	if a.resolver != nil {
		if name, ok := a.resolver.Lookup(dst); ok {
			host = name
		}
	}
	a.mutex.Lock()
	bumpTop(a.hosts, host, now)
	a.mutex.Unlock()
}

func (a *Aggregator) bump(m map[string]*ProtocolCounters, key string, length uint32) {
	c, ok := m[key]
	if !ok {
		c = &ProtocolCounters{}
		m[key] = c
	}
	c.add(uint64(length))
}

func bumpTop(m map[string]*countEntry, key string, now time.Time) {
	e, ok := m[key]
	if !ok {
		e = &countEntry{}
		m[key] = e
	}
	e.count++
	e.lastSeen = now
}

// Snapshot returns a deep copy of the current state, safe to retain and
// read after return without further locking.
func (a *Aggregator) Snapshot() Snapshot {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	s := Snapshot{
		Link:        copyProtoMap(a.link),
		Network:     copyProtoMap(a.network),
		Transport:   copyProtoMap(a.transport),
		TopSources:  topEntries(a.sources),
		TopDests:    topEntries(a.dests),
		TopHosts:    topEntries(a.hosts),
		TotalPacket: a.total,
	}
	return s
}

// Reset zeroes every counter and table (Ctrl-R).
func (a *Aggregator) Reset() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.link = make(map[string]*ProtocolCounters)
	a.network = make(map[string]*ProtocolCounters)
	a.transport = make(map[string]*ProtocolCounters)
	a.sources = make(map[string]*countEntry)
	a.dests = make(map[string]*countEntry)
	a.hosts = make(map[string]*countEntry)
	a.total = 0
}

func copyProtoMap(m map[string]*ProtocolCounters) map[string]ProtocolCounters {
	out := make(map[string]ProtocolCounters, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}

// topEntries trims a count-keyed map to its top-10 by count, ties broken by
// most-recent occurrence.
func topEntries(m map[string]*countEntry) []Entry {
	entries := make([]Entry, 0, len(m))
	for k, e := range m {
		entries = append(entries, Entry{Key: k, Count: e.count, LastSeen: e.lastSeen})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}

func linkKind(k wire.NetworkKind) string {
	switch k {
	case wire.NetworkIPv4:
		return "ipv4"
	case wire.NetworkIPv6:
		return "ipv6"
	case wire.NetworkARP:
		return "arp"
	default:
		return "unknown"
	}
}

func transportKind(t *wire.Transport) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case wire.TransportTCP:
		return "tcp"
	case wire.TransportUDP:
		return "udp"
	case wire.TransportICMP:
		return "icmp"
	case wire.TransportICMPv6:
		return "icmpv6"
	case wire.TransportSCTP:
		return "sctp"
	default:
		return "unknown"
	}
}
