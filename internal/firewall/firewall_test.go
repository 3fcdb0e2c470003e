// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oryxerrors "github.com/oryxhq/oryx/internal/errors"
	"github.com/oryxhq/oryx/internal/logging"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firewall.json")
	c, err := New(path, nil, nil, logging.Nop())
	require.NoError(t, err)
	return c
}

func TestController_AddRejectsZeroAddress(t *testing.T) {
	c := newTestController(t)
	_, err := c.Add(Rule{IP: "0.0.0.0", Enabled: true, Direction: DirBoth})
	assert.ErrorIs(t, err, oryxerrors.ErrInvalidRule)
}

func TestController_AddRejectsDuplicateTuple(t *testing.T) {
	c := newTestController(t)
	rule := Rule{IP: "10.0.0.1", Port: 9, Protocol: "tcp", Direction: DirIngress, Enabled: true}

	_, err := c.Add(rule)
	require.NoError(t, err)

	_, err = c.Add(rule)
	assert.ErrorIs(t, err, oryxerrors.ErrAlreadyExists)
}

func TestController_ToggleKeepsIDAndSlot(t *testing.T) {
	c := newTestController(t)
	id, err := c.Add(Rule{IP: "10.0.0.1", Enabled: true, Direction: DirBoth})
	require.NoError(t, err)

	enabled, err := c.Toggle(id)
	require.NoError(t, err)
	assert.False(t, enabled)

	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, id, rules[0].ID)
	assert.False(t, rules[0].Enabled)
}

func TestController_DeleteUnknownIDFails(t *testing.T) {
	c := newTestController(t)
	err := c.Delete("does-not-exist")
	assert.ErrorIs(t, err, oryxerrors.ErrNotFound)
}

func TestController_SaveLoadRoundTrip(t *testing.T) {
	c := newTestController(t)
	id1, err := c.Add(Rule{IP: "10.0.0.1", Port: 9, Protocol: "tcp", Direction: DirIngress, Enabled: true})
	require.NoError(t, err)
	id2, err := c.Add(Rule{IP: "10.0.0.2", Enabled: false, Direction: DirBoth})
	require.NoError(t, err)

	path, err := c.Save()
	require.NoError(t, err)

	reloaded, err := New(path, nil, nil, logging.Nop())
	require.NoError(t, err)
	skipped, err := reloaded.Load(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)

	rules := reloaded.Rules()
	require.Len(t, rules, 2)
	ids := map[string]bool{rules[0].ID: true, rules[1].ID: true}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])

	// Load never trusts a persisted enabled flag: this process has no way
	// to know whether the programs it refers to are even attached yet.
	assert.False(t, rules[0].Enabled)
	assert.False(t, rules[1].Enabled)
}

func TestController_EditRejectsEnabledRule(t *testing.T) {
	c := newTestController(t)
	id, err := c.Add(Rule{IP: "10.0.0.1", Enabled: true, Direction: DirBoth})
	require.NoError(t, err)

	err = c.Edit(id, Rule{IP: "10.0.0.2", Direction: DirBoth})
	assert.ErrorIs(t, err, oryxerrors.ErrRuleEnabled)
}

func TestController_EditAllowsDisabledRule(t *testing.T) {
	c := newTestController(t)
	id, err := c.Add(Rule{IP: "10.0.0.1", Enabled: false, Direction: DirBoth})
	require.NoError(t, err)

	require.NoError(t, c.Edit(id, Rule{IP: "10.0.0.2", Direction: DirBoth}))
	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "10.0.0.2", rules[0].IP)
}

func TestController_SetMapsKeepsRuleSet(t *testing.T) {
	c := newTestController(t)
	id, err := c.Add(Rule{IP: "10.0.0.1", Enabled: true, Direction: DirBoth})
	require.NoError(t, err)

	// Rebinding to a new interface's maps must not lose in-session rules.
	require.NoError(t, c.SetMaps(nil, nil))
	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, id, rules[0].ID)
	assert.True(t, rules[0].Enabled)
}

func TestController_LoadSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firewall.json")
	c, err := New(path, nil, nil, logging.Nop())
	require.NoError(t, err)

	raw := `[{"id":"a","ip":"10.0.0.1","enabled":true,"direction":"both"},{"id":"b","ip":"not-an-ip","enabled":true}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	skipped, err := c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, c.Rules(), 1)
}
