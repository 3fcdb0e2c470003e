// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	s, err := Parse([]string{"--interface", "eth0"})
	require.NoError(t, err)
	assert.Equal(t, "eth0", s.Interface)
	assert.Equal(t, []string{"tcp", "udp", "icmp", "sctp"}, s.Transport)
	assert.Equal(t, []string{"ipv4", "ipv6", "arp"}, s.Network)
	assert.Equal(t, "both", s.Direction)
	assert.False(t, s.Export)
}

func TestParse_RequiresInterface(t *testing.T) {
	_, err := Parse([]string{})
	assert.Error(t, err)
}

func TestParse_RejectsInvalidDirection(t *testing.T) {
	_, err := Parse([]string{"--interface", "eth0", "--direction", "sideways"})
	assert.Error(t, err)
}

func TestParse_NarrowsProtocolsAndDirection(t *testing.T) {
	s, err := Parse([]string{
		"--interface", "wlan0",
		"--transport", "tcp, udp",
		"--network", "ipv4",
		"--direction", "INGRESS",
		"--export",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tcp", "udp"}, s.Transport)
	assert.Equal(t, []string{"ipv4"}, s.Network)
	assert.Equal(t, "ingress", s.Direction)
	assert.True(t, s.Export)
}
