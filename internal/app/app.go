// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package app wires the classifier, ring consumer, packet bus, statistics
// aggregator, alert detector, export writer, and firewall controller into
// one process, and implements internal/tui.Backend over them.
package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oryxhq/oryx/internal/alert"
	"github.com/oryxhq/oryx/internal/bus"
	"github.com/oryxhq/oryx/internal/cli"
	"github.com/oryxhq/oryx/internal/diagnostics"
	"github.com/oryxhq/oryx/internal/errors"
	"github.com/oryxhq/oryx/internal/export"
	"github.com/oryxhq/oryx/internal/filter"
	"github.com/oryxhq/oryx/internal/firewall"
	"github.com/oryxhq/oryx/internal/logging"
	"github.com/oryxhq/oryx/internal/resolve"
	"github.com/oryxhq/oryx/internal/stats"
	"github.com/oryxhq/oryx/internal/tui"
	"github.com/oryxhq/oryx/internal/wire"
)

const recentPacketCap = 500

// App is the fully-wired runtime. It owns every long-lived component and
// implements tui.Backend directly.
type App struct {
	logger *logging.Logger

	Bus      *bus.Bus
	Filter   *filter.Controller
	StatsAgg *stats.Aggregator
	Alert    *alert.Detector
	Resolver *resolve.Resolver
	Firewall *firewall.Controller
	Exporter *export.Writer
	Diag     *diagnostics.Meter

	mutex  sync.Mutex
	recent []wire.AppPacket

	ifaceMutex   sync.Mutex
	prevCounters map[string][2]uint64 // rx, tx at last Interfaces() call
	prevSample   time.Time

	shutdown []func() error // reverse-dependency order, appended as components start
}

// New constructs every component but attaches nothing and starts nothing;
// construction is separate from the running pipeline so startup failures
// never leave partial state attached.
func New(settings cli.Settings, logger *logging.Logger) (*App, error) {
	firewallPath, err := firewall.DefaultPath()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSetup, "resolve firewall persistence path")
	}
	exportPath, err := export.DefaultPath()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSetup, "resolve export path")
	}

	b := bus.New(bus.DefaultCapacity)
	resolver := resolve.New("", logger)
	statsAgg := stats.New(resolver)
	alertDet := alert.New(alert.DefaultConfig())
	filterCtl := filter.New(b, logger)
	exporter, err := export.New(exportPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSetup, "create export writer")
	}

	fw, err := firewall.New(firewallPath, nil, nil, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSetup, "create firewall controller")
	}
	skipped, err := fw.Load("")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSetup, "load persisted firewall rules")
	}
	if skipped > 0 {
		logger.Warn("skipped malformed firewall rules", "count", skipped)
	}

	a := &App{
		logger:   logger,
		Bus:      b,
		Filter:   filterCtl,
		StatsAgg: statsAgg,
		Alert:    alertDet,
		Resolver: resolver,
		Firewall: fw,
		Exporter: exporter,
		Diag:     diagnostics.NewMeter(nil),
	}
	filterCtl.LostHook = func(uint64) { a.Diag.Count(errors.RuntimeRingReserveExhausted) }
	resolver.TimeoutHook = func() { a.Diag.Count(errors.RuntimeDNSTimeout) }
	return a, nil
}

// Start attaches the classifier to settings.Interface, applies the initial
// filter selection, and starts the resolver, aggregator, detector, and the
// in-memory recent-packets cache backing the TUI.
//
// Shutdown happens in the reverse order components were started here:
// detector/aggregator/export consumers stop before the bus is drained, the
// bus stops being published to before the ring is torn down, and the ring is
// torn down before the classifier is detached.
func (a *App) Start(ctx context.Context, settings cli.Settings) error {
	if err := a.Filter.Attach(ctx, settings.Interface); err != nil {
		return errors.Wrap(err, errors.KindSetup, fmt.Sprintf("attach to %s", settings.Interface))
	}
	a.shutdown = append(a.shutdown, a.Filter.Detach)

	a.Resolver.Start(ctx)
	a.shutdown = append(a.shutdown, func() error { a.Resolver.Stop(); return nil })

	statsCtx, statsCancel := context.WithCancel(ctx)
	go a.StatsAgg.Run(statsCtx, a.Bus)
	a.shutdown = append(a.shutdown, func() error { statsCancel(); return nil })

	alertCtx, alertCancel := context.WithCancel(ctx)
	go a.Alert.Run(alertCtx, a.Bus)
	a.shutdown = append(a.shutdown, func() error { alertCancel(); return nil })

	recentCtx, recentCancel := context.WithCancel(ctx)
	recentDone := make(chan struct{})
	go a.runRecentCache(recentCtx, recentDone)
	a.shutdown = append(a.shutdown, func() error { recentCancel(); <-recentDone; return nil })

	sel := filter.Selection{Transport: settings.Transport, Network: settings.Network, Direction: settings.Direction}
	if err := a.Filter.SetSelection(sel); err != nil {
		return errors.Wrap(err, errors.KindSetup, "apply initial filter selection")
	}

	v4, v6 := a.Filter.BlockMaps()
	if err := a.Firewall.SetMaps(v4, v6); err != nil {
		a.logger.Error("reconcile firewall into attached maps", "error", err)
	}

	return nil
}

// Stop tears the pipeline down in the reverse order Start brought it up.
func (a *App) Stop() error {
	var first error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](); err != nil && first == nil {
			first = err
		}
	}
	a.shutdown = nil
	return first
}

func (a *App) runRecentCache(ctx context.Context, done chan struct{}) {
	defer close(done)

	sub := a.Bus.Subscribe()
	defer a.Bus.Unsubscribe(sub)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				pkt, lagged, ok := sub.Next()
				if !ok {
					break
				}
				if lagged > 0 {
					a.Diag.Count(errors.RuntimeBusLagged)
				}
				a.appendRecent(pkt)
			}
		}
	}
}

func (a *App) appendRecent(pkt wire.AppPacket) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.recent = append(a.recent, pkt)
	if len(a.recent) > recentPacketCap {
		a.recent = a.recent[len(a.recent)-recentPacketCap:]
	}
}

// Packets implements tui.Backend.
func (a *App) Packets(limit int) []wire.AppPacket {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if limit <= 0 || limit > len(a.recent) {
		limit = len(a.recent)
	}
	out := make([]wire.AppPacket, limit)
	copy(out, a.recent[len(a.recent)-limit:])
	return out
}

// Stats implements tui.Backend.
func (a *App) Stats() stats.Snapshot { return a.StatsAgg.Snapshot() }

// ResetStats implements tui.Backend (Ctrl-R).
func (a *App) ResetStats() { a.StatsAgg.Reset() }

// ActiveAlert implements tui.Backend.
func (a *App) ActiveAlert() *alert.Alert { return a.Alert.Active() }

// TopOffenders implements tui.Backend.
func (a *App) TopOffenders() []alert.SourceCount { return a.Alert.TopOffenders() }

// Attach implements tui.Backend.
func (a *App) Attach(name string) error {
	err := a.Filter.Attach(context.Background(), name)
	if err != nil {
		return err
	}
	v4, v6 := a.Filter.BlockMaps()
	return a.Firewall.SetMaps(v4, v6)
}

// Detach implements tui.Backend.
func (a *App) Detach() error { return a.Filter.Detach() }

// Interfaces implements tui.Backend, listing host interfaces with byte
// counters read from sysfs and per-second rates derived from the delta
// since the previous call.
func (a *App) Interfaces() ([]tui.InterfaceInfo, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	attached := a.Filter.Interface()

	a.ifaceMutex.Lock()
	defer a.ifaceMutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(a.prevSample).Seconds()
	current := make(map[string][2]uint64, len(ifaces))

	out := make([]tui.InterfaceInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		rx, _ := readSysfsCounter(iface.Name, "rx_bytes")
		tx, _ := readSysfsCounter(iface.Name, "tx_bytes")
		current[iface.Name] = [2]uint64{rx, tx}

		info := tui.InterfaceInfo{
			Name:     iface.Name,
			Attached: iface.Name == attached,
			RxBytes:  rx,
			TxBytes:  tx,
		}
		if prev, ok := a.prevCounters[iface.Name]; ok && elapsed > 0 {
			if rx >= prev[0] {
				info.RxBytesSec = float64(rx-prev[0]) / elapsed
			}
			if tx >= prev[1] {
				info.TxBytesSec = float64(tx-prev[1]) / elapsed
			}
		}
		out = append(out, info)
	}

	a.prevCounters = current
	a.prevSample = now
	return out, nil
}

func readSysfsCounter(iface, name string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join("/sys/class/net", iface, "statistics", name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(trimNewline(data), 10, 64)
}

func trimNewline(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}

// FirewallRules implements tui.Backend.
func (a *App) FirewallRules() []firewall.Rule { return a.Firewall.Rules() }

// AddRule implements tui.Backend.
func (a *App) AddRule(r firewall.Rule) (string, error) { return a.Firewall.Add(r) }

// ToggleRule implements tui.Backend.
func (a *App) ToggleRule(id string) error { _, err := a.Firewall.Toggle(id); return err }

// EditRule implements tui.Backend.
func (a *App) EditRule(id string, r firewall.Rule) error { return a.Firewall.Edit(id, r) }

// DeleteRule implements tui.Backend.
func (a *App) DeleteRule(id string) error { return a.Firewall.Delete(id) }

// SaveRules implements tui.Backend (the 's' keybinding).
func (a *App) SaveRules() (string, error) { return a.Firewall.Save() }

// Diagnostics implements tui.Backend.
func (a *App) Diagnostics() (map[string]uint64, []diagnostics.Notification) {
	return a.Diag.Snapshot()
}

// Export implements tui.Backend: snapshots the in-memory recent packets to
// the capture file (the Ctrl-S keybinding).
func (a *App) Export() (string, error) {
	packets := a.Packets(0)
	if err := a.Exporter.Export(packets); err != nil {
		a.Diag.Count(errors.RuntimeFilesystemIO)
		return "", err
	}
	return a.exportPath(), nil
}

func (a *App) exportPath() string {
	path, err := export.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}
