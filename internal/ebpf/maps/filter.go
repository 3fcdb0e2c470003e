// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package maps wraps the classifier's shared BPF maps (FILTERS,
// BLOCKLIST_IPV4, BLOCKLIST_IPV6) with typed Update/Lookup/Delete
// operations over internal/wire's fixed-size records.
package maps

import (
	"fmt"
	"sync"

	"github.com/cilium/ebpf"

	"github.com/oryxhq/oryx/internal/wire"
)

// FilterMap wraps the single-entry FILTERS array.
type FilterMap struct {
	m     *ebpf.Map
	mutex sync.Mutex
}

// NewFilterMap wraps an already-loaded FILTERS map.
func NewFilterMap(m *ebpf.Map) *FilterMap {
	return &FilterMap{m: m}
}

// Get reads the current FilterState out of slot 0.
func (f *FilterMap) Get() (wire.FilterState, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	var state wire.FilterState
	if err := f.m.Lookup(uint32(0), &state); err != nil {
		return wire.FilterState{}, fmt.Errorf("lookup FILTERS[0]: %w", err)
	}
	return state, nil
}

// Set writes a new FilterState into slot 0.
func (f *FilterMap) Set(state wire.FilterState) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if err := f.m.Update(uint32(0), state, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("update FILTERS[0]: %w", err)
	}
	return nil
}
