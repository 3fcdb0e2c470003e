// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall implements the Firewall Controller: user-space
// authority for drop rules, JSON persistence, and reconciliation into the
// IPv4/IPv6 block maps. Every mutation recomputes the desired map image
// from the enabled rules and applies the diff, rolling the in-memory rule
// set back if the maps reject it.
package firewall

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	ebpfmaps "github.com/oryxhq/oryx/internal/ebpf/maps"
	oryxerrors "github.com/oryxhq/oryx/internal/errors"
	"github.com/oryxhq/oryx/internal/logging"
	"github.com/oryxhq/oryx/internal/wire"
)

// Direction is the traffic direction a Rule applies to.
type Direction string

const (
	DirIngress Direction = "ingress"
	DirEgress  Direction = "egress"
	DirBoth    Direction = "both"
)

// Rule is a persisted BlockRule.
type Rule struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Port      uint16    `json:"port,omitempty"`
	Protocol  string    `json:"protocol,omitempty"` // "tcp"/"udp"/"icmp"/"sctp"/"" for all
	Enabled   bool      `json:"enabled"`
	Direction Direction `json:"direction"`
}

func protoNumber(proto string) uint8 {
	switch proto {
	case "tcp":
		return 6
	case "udp":
		return 17
	case "icmp":
		return 1
	case "icmpv6":
		return 58
	case "sctp":
		return 132
	default:
		return 0
	}
}

// DefaultPath is ~/oryx/firewall.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "oryx", "firewall.json"), nil
}

// Controller owns the in-memory rule set and reconciles it into the shared
// block maps. All mutating operations are serialized by mutex.
type Controller struct {
	mutex sync.Mutex

	path  string
	rules []Rule

	v4 *ebpfmaps.BlockMap
	v6 *ebpfmaps.BlockMap

	logger *logging.Logger
}

// New creates a Controller bound to the classifier's block maps. path is
// the persistence file; pass "" for DefaultPath().
func New(path string, v4, v6 *ebpfmaps.BlockMap, logger *logging.Logger) (*Controller, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Controller{path: path, v4: v4, v6: v6, logger: logger}, nil
}

// SetMaps rebinds the controller to a newly attached interface's block maps
// and reconciles the current rule set into them. Called on every interface
// attach; the rule set itself survives the swap.
func (c *Controller) SetMaps(v4, v6 *ebpfmaps.BlockMap) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.v4 = v4
	c.v6 = v6
	if err := c.reconcileLocked(); err != nil {
		return oryxerrors.ReconcileFailed(err)
	}
	return nil
}

// Add appends a new rule and reconciles. Duplicate (ip, port, protocol,
// direction) tuples are rejected with AlreadyExists; the zero address is
// rejected as meaningless.
func (c *Controller) Add(r Rule) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if isZeroAddress(r.IP) {
		return "", oryxerrors.ErrInvalidRule
	}
	for _, existing := range c.rules {
		if sameTuple(existing, r) {
			return "", oryxerrors.ErrAlreadyExists
		}
	}

	r.ID = uuid.NewString()
	prevRules := c.cloneRules()
	c.rules = append(c.rules, r)

	if err := c.reconcileLocked(); err != nil {
		c.rules = prevRules
		return "", oryxerrors.ReconcileFailed(err)
	}
	return r.ID, nil
}

// Edit replaces the rule identified by id, preserving its ID; rule IDs are
// stable across edits and toggles. An enabled rule must be
// toggled off before it can be edited: it is already reconciled into the
// block maps, and editing it out from under that state in place would
// leave the maps reflecting neither the old nor the new rule.
func (c *Controller) Edit(id string, r Rule) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return oryxerrors.ErrNotFound
	}
	if c.rules[idx].Enabled {
		return oryxerrors.ErrRuleEnabled
	}
	if isZeroAddress(r.IP) {
		return oryxerrors.ErrInvalidRule
	}

	prevRules := c.cloneRules()
	r.ID = id
	c.rules[idx] = r

	if err := c.reconcileLocked(); err != nil {
		c.rules = prevRules
		return oryxerrors.ReconcileFailed(err)
	}
	return nil
}

// Delete removes a rule by ID and reconciles.
func (c *Controller) Delete(id string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return oryxerrors.ErrNotFound
	}

	prevRules := c.cloneRules()
	c.rules = append(c.rules[:idx], c.rules[idx+1:]...)

	if err := c.reconcileLocked(); err != nil {
		c.rules = prevRules
		return oryxerrors.ReconcileFailed(err)
	}
	return nil
}

// Toggle flips Enabled for id and reconciles, returning the new state. The
// rule's ID and slot survive.
func (c *Controller) Toggle(id string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return false, oryxerrors.ErrNotFound
	}

	prevRules := c.cloneRules()
	c.rules[idx].Enabled = !c.rules[idx].Enabled

	if err := c.reconcileLocked(); err != nil {
		c.rules = prevRules
		return false, oryxerrors.ReconcileFailed(err)
	}
	return c.rules[idx].Enabled, nil
}

// Rules returns a copy of every persisted rule, enabled or not.
func (c *Controller) Rules() []Rule {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cloneRules()
}

// Save persists the current rule set as a JSON array.
func (c *Controller) Save() (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.path, c.saveLocked()
}

func (c *Controller) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create firewall config dir: %w", err)
	}
	data, err := json.MarshalIndent(c.rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal firewall rules: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	return nil
}

// Load reads path (or c.path if empty), validates each entry, and skips
// malformed ones, returning the count of skipped entries as a warning.
// Every
// loaded rule comes back with Enabled forced to false: at startup this
// process has no way to know whether the ingress/egress programs that the
// persisted flag refers to are even attached, let alone still carrying the
// same block-map state, so a rule is only trusted once reconciled back in
// deliberately.
func (c *Controller) Load(path string) (skipped int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if path == "" {
		path = c.path
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.rules = nil
		return 0, nil
	}
	if err != nil {
		return 0, oryxerrors.RulesParseFailed(err)
	}

	var raw []Rule
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, oryxerrors.RulesParseFailed(err)
	}

	valid := make([]Rule, 0, len(raw))
	for _, r := range raw {
		if isZeroAddress(r.IP) || net.ParseIP(r.IP) == nil {
			skipped++
			continue
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Direction == "" {
			r.Direction = DirBoth
		}
		r.Enabled = false
		valid = append(valid, r)
	}

	c.rules = valid
	if err := c.reconcileLocked(); err != nil {
		return skipped, oryxerrors.ReconcileFailed(err)
	}
	return skipped, nil
}

// reconcileLocked rebuilds the block-map image from currently-enabled
// rules and applies the diff, holding c.mutex. On any map-write failure it
// returns an error without mutating c.rules further — callers restore the
// pre-change rule snapshot.
func (c *Controller) reconcileLocked() error {
	desired := make(map[string]wire.BlockMaskTriple) // key: "family:ip"

	for _, r := range c.rules {
		if !r.Enabled {
			continue
		}
		ip := net.ParseIP(r.IP)
		if ip == nil {
			continue
		}
		mask := wire.BlockMaskTriple{
			PortMask: r.Port,
			ProtoNum: protoNumber(r.Protocol),
			DirMask:  wire.DirBit(string(r.Direction)),
		}
		family := "v4"
		if ip.To4() == nil {
			family = "v6"
		}
		key := family + ":" + ip.String()
		existing, ok := desired[key]
		if !ok {
			desired[key] = mask
			continue
		}
		existing.DirMask |= mask.DirMask
		if existing.PortMask != mask.PortMask {
			existing.PortMask = 0 // differing port constraints: widen to all ports
		}
		if existing.ProtoNum != mask.ProtoNum {
			existing.ProtoNum = 0
		}
		desired[key] = existing
	}

	if err := c.reconcileFamily(c.v4, desired, "v4"); err != nil {
		return err
	}
	if err := c.reconcileFamily(c.v6, desired, "v6"); err != nil {
		return err
	}
	return nil
}

func (c *Controller) reconcileFamily(m *ebpfmaps.BlockMap, desired map[string]wire.BlockMaskTriple, family string) error {
	if m == nil {
		return nil
	}
	current, err := m.Entries()
	if err != nil {
		return fmt.Errorf("read current %s block map: %w", family, err)
	}

	for key, mask := range desired {
		if key[:2] != family {
			continue
		}
		ip := net.ParseIP(key[3:])
		if err := m.Replace(ip, mask); err != nil {
			return fmt.Errorf("apply %s block entry %s: %w", family, ip, err)
		}
	}
	for ipStr := range current {
		if _, stillWanted := desired[family+":"+ipStr]; stillWanted {
			continue
		}
		if err := m.Delete(net.ParseIP(ipStr)); err != nil {
			return fmt.Errorf("remove stale %s block entry %s: %w", family, ipStr, err)
		}
	}
	return nil
}

func (c *Controller) indexOf(id string) int {
	for i, r := range c.rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) cloneRules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func sameTuple(a, b Rule) bool {
	return a.IP == b.IP && a.Port == b.Port && a.Protocol == b.Protocol && a.Direction == b.Direction
}

func isZeroAddress(ip string) bool {
	return ip == "0.0.0.0" || ip == "::" || ip == ""
}
