// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines avc-top's key bindings.
type KeyMap struct {
	Quit         key.Binding
	Refresh      key.Binding
	IncreasePoll key.Binding
	DecreasePoll key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh now"),
	),
	IncreasePoll: key.NewBinding(
		key.WithKeys("+"),
		key.WithHelp("+", "slow down polling"),
	),
	DecreasePoll: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "speed up polling"),
	),
}
