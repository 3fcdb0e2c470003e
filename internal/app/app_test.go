// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryxhq/oryx/internal/cli"
	"github.com/oryxhq/oryx/internal/logging"
	"github.com/oryxhq/oryx/internal/wire"
)

func TestNew_WiresComponentsWithoutAttaching(t *testing.T) {
	settings := cli.Settings{Interface: "lo", Direction: "both"}
	a, err := New(settings, logging.New(logging.Config{Level: "off"}))
	require.NoError(t, err)

	assert.NotNil(t, a.Bus)
	assert.NotNil(t, a.Filter)
	assert.NotNil(t, a.StatsAgg)
	assert.NotNil(t, a.Alert)
	assert.NotNil(t, a.Firewall)
	assert.NotNil(t, a.Exporter)
	assert.Empty(t, a.Filter.Interface())
}

func TestApp_PacketsBoundsToCap(t *testing.T) {
	a := &App{}
	for i := 0; i < recentPacketCap+20; i++ {
		a.appendRecent(wire.AppPacket{TimestampSec: uint64(i)})
	}
	assert.Len(t, a.Packets(0), recentPacketCap)
	assert.Len(t, a.Packets(5), 5)
}
