// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package diagnostics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	oryxerrors "github.com/oryxhq/oryx/internal/errors"
)

func TestMeter_Count_AccumulatesTallyAndRecent(t *testing.T) {
	m := NewMeter(prometheus.NewRegistry())

	m.Count(oryxerrors.RuntimeBusLagged)
	m.Count(oryxerrors.RuntimeBusLagged)
	m.Count(oryxerrors.RuntimeDNSTimeout)

	tally, recent := m.Snapshot()
	assert.Equal(t, uint64(2), tally[oryxerrors.RuntimeBusLagged])
	assert.Equal(t, uint64(1), tally[oryxerrors.RuntimeDNSTimeout])
	assert.Len(t, recent, 3)
	assert.Equal(t, oryxerrors.RuntimeDNSTimeout, recent[2].Name)
}

func TestMeter_CountError_IgnoresNonRuntimeKinds(t *testing.T) {
	m := NewMeter(prometheus.NewRegistry())

	m.CountError(oryxerrors.ErrInvalidRule) // KindUser
	m.CountError(oryxerrors.ReconcileFailed(assertErr("boom")))

	tally, _ := m.Snapshot()
	assert.Len(t, tally, 1)
}

func TestMeter_Snapshot_TrimsRecentToMax(t *testing.T) {
	m := NewMeter(prometheus.NewRegistry())
	for i := 0; i < maxRecent+10; i++ {
		m.Count(oryxerrors.RuntimeFilesystemIO)
	}
	_, recent := m.Snapshot()
	assert.Len(t, recent, maxRecent)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
