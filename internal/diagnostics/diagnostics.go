// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package diagnostics counts Runtime-class errors and exposes
// them both as Prometheus counters and as a snapshot for the UI
// notification bar.
package diagnostics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	oryxerrors "github.com/oryxhq/oryx/internal/errors"
)

// Meter counts Runtime-kind errors by name and registers them as a Prometheus CounterVec.
type Meter struct {
	counters *prometheus.CounterVec

	mutex  sync.RWMutex
	tally  map[string]uint64
	recent []Notification
}

// Notification is one entry in the UI notification bar's feed.
type Notification struct {
	Name  string
	Count uint64
}

const maxRecent = 50

// NewMeter creates a Meter and registers its metric with reg. Pass
// prometheus.DefaultRegisterer for production use, or a fresh
// prometheus.NewRegistry() in tests to avoid global-registry collisions.
func NewMeter(reg prometheus.Registerer) *Meter {
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oryx",
		Subsystem: "diagnostics",
		Name:      "runtime_errors_total",
		Help:      "Count of non-fatal runtime errors by kind.",
	}, []string{"name"})

	if reg != nil {
		reg.MustRegister(counters)
	}

	return &Meter{
		counters: counters,
		tally:    make(map[string]uint64),
	}
}

// Count increments the named runtime counter (one of the
// internal/errors.Runtime* constants) and appends a notification-bar entry.
func (m *Meter) Count(name string) {
	m.counters.WithLabelValues(name).Inc()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tally[name]++
	m.recent = append(m.recent, Notification{Name: name, Count: m.tally[name]})
	if len(m.recent) > maxRecent {
		m.recent = m.recent[1:]
	}
}

// CountError records err if it is a Runtime-kind internal/errors.Error,
// using its message as the counter name; no-op for any other kind, since
// Protocol errors are never surfaced and User errors go back to the
// command originator instead.
func (m *Meter) CountError(err error) {
	if oryxerrors.GetKind(err) != oryxerrors.KindRuntime {
		return
	}
	m.Count(err.Error())
}

// Snapshot returns the current per-name tallies and the most recent
// notification entries, most recent last.
func (m *Meter) Snapshot() (tally map[string]uint64, recent []Notification) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	tally = make(map[string]uint64, len(m.tally))
	for k, v := range m.tally {
		tally[k] = v
	}
	recent = make([]Notification, len(m.recent))
	copy(recent, m.recent)
	return tally, recent
}
