// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command oryx is an interactive terminal observatory for Linux network
// traffic: an in-kernel eBPF classifier feeds a packet bus that drives a
// statistics aggregator, a SYN-flood detector, and a declarative firewall,
// all surfaced through a Bubble Tea TUI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oryxhq/oryx/internal/app"
	"github.com/oryxhq/oryx/internal/cli"
	oryxerrors "github.com/oryxhq/oryx/internal/errors"
	"github.com/oryxhq/oryx/internal/host"
	"github.com/oryxhq/oryx/internal/logging"
	"github.com/oryxhq/oryx/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 64 // EX_USAGE; distinct from exit code 2 (interface not found)
	}

	cfg := logging.DefaultConfig()
	if settings.LogLevel != "" {
		cfg.Level = settings.LogLevel
	}
	cfg.Component = "oryx"
	logger := logging.New(cfg)

	if err := host.VerifyCapabilities(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return oryxerrors.ExitCode(err)
	}
	for _, req := range host.VerifyBPFSupport() {
		if req.Fatal {
			fmt.Fprintln(os.Stderr, req.Error())
			return 3
		}
		logger.Warn("degraded host support", "feature", req.Feature, "detail", req.Message)
	}

	a, err := app.New(settings, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code := oryxerrors.ExitCode(err); code != 0 {
			return code
		}
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, settings); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code := oryxerrors.ExitCode(err); code != 0 {
			return code
		}
		return 1
	}
	defer func() {
		if err := a.Stop(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	program := tea.NewProgram(tui.NewModel(a), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if settings.Export {
		if path, err := a.Export(); err != nil {
			logger.Error("export on exit", "error", err)
		} else {
			logger.Info("exported capture", "path", path)
		}
	}

	return 0
}
