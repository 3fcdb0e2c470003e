// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package filter implements the Filter Controller: translates user-selected
// protocol/direction filters into FILTERS map writes, and owns interface
// attach/detach lifecycle. At most one interface is attached at a time;
// attaching a second drains and detaches the first.
package filter

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/oryxhq/oryx/internal/bus"
	ebpfmaps "github.com/oryxhq/oryx/internal/ebpf/maps"
	"github.com/oryxhq/oryx/internal/ebpf/programs"
	oryxerrors "github.com/oryxhq/oryx/internal/errors"
	"github.com/oryxhq/oryx/internal/logging"
	"github.com/oryxhq/oryx/internal/ring"
	"github.com/oryxhq/oryx/internal/wire"
)

// Selection is the user-facing protocol/direction filter (the CLI flags
// and the 'f' keybinding).
type Selection struct {
	Transport []string // "tcp","udp","icmp","sctp"
	Network   []string // "ipv4","ipv6","arp"
	Direction string   // "ingress","egress","both"
}

// DefaultSelection accepts everything on both directions.
func DefaultSelection() Selection {
	return Selection{
		Transport: []string{"tcp", "udp", "icmp", "sctp"},
		Network:   []string{"ipv4", "ipv6", "arp"},
		Direction: "both",
	}
}

func (s Selection) toFilterState() wire.FilterState {
	var fs wire.FilterState
	for _, t := range s.Transport {
		switch t {
		case "tcp":
			fs.TransportMask |= wire.FilterTCP
		case "udp":
			fs.TransportMask |= wire.FilterUDP
		case "icmp":
			fs.TransportMask |= wire.FilterICMP
		case "sctp":
			fs.TransportMask |= wire.FilterSCTP
		}
	}
	for _, n := range s.Network {
		switch n {
		case "ipv4":
			fs.NetworkMask |= wire.FilterIPv4
			fs.LinkMask |= wire.FilterIPv4
		case "ipv6":
			fs.NetworkMask |= wire.FilterIPv6
			fs.LinkMask |= wire.FilterIPv6
		case "arp":
			fs.LinkMask |= wire.FilterARP
		}
	}
	switch s.Direction {
	case "ingress":
		fs.Direction = 1 << wire.DirectionIngress
	case "egress":
		fs.Direction = 1 << wire.DirectionEgress
	default:
		fs.Direction = 1<<wire.DirectionIngress | 1<<wire.DirectionEgress
	}
	return fs
}

// Controller owns the single attached interface, its classifier program,
// and the ring-drain task feeding the packet bus.
type Controller struct {
	mutex sync.Mutex

	logger *logging.Logger
	bus    *bus.Bus

	// LostHook, if set before Attach, receives each lost-sample batch size
	// from the ring consumer (the diagnostics RingReserveExhausted counter).
	LostHook func(uint64)

	iface     string
	program   *programs.ClassifierProgram
	filters   *ebpfmaps.FilterMap
	v4Blocks  *ebpfmaps.BlockMap
	v6Blocks  *ebpfmaps.BlockMap
	selection Selection

	ringCancel context.CancelFunc
	ringDone   chan struct{}
}

// New creates a Controller publishing drained packets onto b.
func New(b *bus.Bus, logger *logging.Logger) *Controller {
	return &Controller{bus: b, logger: logger, selection: DefaultSelection()}
}

// Attach loads the classifier, attaches it to ifaceName, writes the initial
// FilterState, and starts the ring-drain task. If another interface is
// already attached, it is drained and detached first.
func (c *Controller) Attach(ctx context.Context, ifaceName string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.program != nil {
		if err := c.detachLocked(); err != nil {
			return fmt.Errorf("drain previous interface %s: %w", c.iface, err)
		}
	}

	if _, err := net.InterfaceByName(ifaceName); err != nil {
		return oryxerrors.InterfaceMissing(ifaceName, err)
	}

	prog, err := programs.NewClassifierProgram(c.logger)
	if err != nil {
		return oryxerrors.ProgramLoadFailed(err)
	}
	if err := prog.Attach(ifaceName); err != nil {
		prog.Close()
		return oryxerrors.ProgramLoadFailed(err)
	}

	filtersMap, err := prog.Map("FILTERS")
	if err != nil {
		prog.Close()
		return err
	}
	v4Map, err := prog.Map("BLOCKLIST_IPV4")
	if err != nil {
		prog.Close()
		return err
	}
	v6Map, err := prog.Map("BLOCKLIST_IPV6")
	if err != nil {
		prog.Close()
		return err
	}
	dataMap, err := prog.Map("DATA")
	if err != nil {
		prog.Close()
		return err
	}

	c.filters = ebpfmaps.NewFilterMap(filtersMap)
	if err := c.filters.Set(c.selection.toFilterState()); err != nil {
		prog.Close()
		return fmt.Errorf("write initial filter state: %w", err)
	}
	c.v4Blocks = ebpfmaps.NewBlockMapV4(v4Map)
	c.v6Blocks = ebpfmaps.NewBlockMapV6(v6Map)

	consumer, err := ring.NewConsumer(dataMap, c.bus, c.logger, ring.DefaultRingSize)
	if err != nil {
		prog.Close()
		return fmt.Errorf("open ring consumer: %w", err)
	}
	if c.LostHook != nil {
		consumer.SetLostHook(c.LostHook)
	}

	ringCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(ringCtx); err != nil {
			c.logger.Error("ring consumer exited", "error", err)
		}
	}()

	c.program = prog
	c.iface = ifaceName
	c.ringCancel = cancel
	c.ringDone = done

	c.logger.Info("filter controller attached", "interface", ifaceName)
	return nil
}

// Detach cancels the ring-drain task, waits for it to drain to empty, then
// releases the classifier and maps.
func (c *Controller) Detach() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.detachLocked()
}

func (c *Controller) detachLocked() error {
	if c.program == nil {
		return nil
	}
	c.ringCancel()
	<-c.ringDone // drain to empty before closing maps

	err := c.program.Close()
	c.program = nil
	c.iface = ""
	c.filters = nil
	c.v4Blocks = nil
	c.v6Blocks = nil
	return err
}

// SetSelection applies a new protocol/direction filter as a synchronous
// write to the FILTERS map; it takes effect on the next packet the
// classifier inspects.
func (c *Controller) SetSelection(sel Selection) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.selection = sel
	if c.filters == nil {
		return nil // not yet attached; selection applies on next Attach
	}
	return c.filters.Set(sel.toFilterState())
}

// Selection returns the currently configured filter selection.
func (c *Controller) Selection() Selection {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.selection
}

// Interface returns the currently attached interface name, or "" if none.
func (c *Controller) Interface() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.iface
}

// BlockMaps exposes the attached interface's block maps for
// internal/firewall's reconciliation pass. Returns nil, nil when not
// attached.
func (c *Controller) BlockMaps() (v4, v6 *ebpfmaps.BlockMap) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.v4Blocks, c.v6Blocks
}
