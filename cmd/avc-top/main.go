// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var addr string
	var interval time.Duration

	flagSet := pflag.NewFlagSet("avc-top", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "http://localhost:9110", "base URL of the avcd debug server")
	flagSet.DurationVar(&interval, "interval", time.Second, "poll interval")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("avc-top requires a terminal; stdout is not a TTY")
	}

	model := NewModel(addr, interval)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
