// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cli parses the command-line surface: --interface, --transport,
// --network, --direction, plus the --log-level and --export flags shared
// between the TUI and a headless run.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Settings holds the parsed command line.
type Settings struct {
	Interface string
	Transport []string
	Network   []string
	Direction string
	LogLevel  string
	Export    bool
}

// Parse parses args (typically os.Args[1:]) into Settings, defaulting to
// all protocols on both directions.
func Parse(args []string) (Settings, error) {
	fs := flag.NewFlagSet("oryx", flag.ContinueOnError)

	iface := fs.String("interface", "", "network interface to attach to (required)")
	transport := fs.String("transport", "tcp,udp,icmp,sctp", "comma-separated transport filter")
	network := fs.String("network", "ipv4,ipv6,arp", "comma-separated network/link filter")
	direction := fs.String("direction", "both", "ingress, egress, or both")
	logLevel := fs.String("log-level", os.Getenv("LOG_LEVEL"), "log level override (off, error, warn, info, debug, trace)")
	export := fs.Bool("export", false, "export the current capture on exit")

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}

	if *iface == "" {
		return Settings{}, fmt.Errorf("--interface is required")
	}

	dir := strings.ToLower(*direction)
	switch dir {
	case "ingress", "egress", "both":
	default:
		return Settings{}, fmt.Errorf("--direction must be ingress, egress, or both, got %q", *direction)
	}

	return Settings{
		Interface: *iface,
		Transport: splitNonEmpty(*transport),
		Network:   splitNonEmpty(*network),
		Direction: dir,
		LogLevel:  *logLevel,
		Export:    *export,
	}, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
