// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/avc-cache/avc/lib/avcsnapshot"
)

// snapshotMsg carries the result of one poll of the debug server.
type snapshotMsg struct {
	snap avcsnapshot.Snapshot
	err  error
}

// tickMsg drives the poll loop.
type tickMsg struct{}

// Model is the avc-top bubbletea model: it holds the most recently
// polled snapshot and renders it as a heatmap plus a counter line.
type Model struct {
	client       *snapshotClient
	pollInterval time.Duration
	renderer     *lipgloss.Renderer
	keys         KeyMap

	width  int
	height int

	snap     avcsnapshot.Snapshot
	haveSnap bool
	lastPoll time.Time
	fetchErr error
	quitting bool
}

// NewModel constructs a Model polling addr's debug server every
// pollInterval.
func NewModel(addr string, pollInterval time.Duration) Model {
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)

	return Model{
		client:       newSnapshotClient(addr),
		pollInterval: pollInterval,
		renderer:     renderer,
		keys:         DefaultKeyMap,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), tickCmd(m.pollInterval))
}

func (m Model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap, err := m.client.fetch(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetchCmd()
		case key.Matches(msg, m.keys.IncreasePoll):
			m.pollInterval += 250 * time.Millisecond
			return m, nil
		case key.Matches(msg, m.keys.DecreasePoll):
			if m.pollInterval > 250*time.Millisecond {
				m.pollInterval -= 250 * time.Millisecond
			}
			return m, nil
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), tickCmd(m.pollInterval))

	case snapshotMsg:
		m.lastPoll = time.Now()
		if msg.err != nil {
			m.fetchErr = msg.err
			return m, nil
		}
		m.fetchErr = nil
		m.snap = msg.snap
		m.haveSnap = true
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := m.renderer.NewStyle().Bold(true).Render("avc-top")
	if !m.haveSnap {
		if m.fetchErr != nil {
			return fmt.Sprintf("%s\n\nwaiting for avcd: %v\n", title, m.fetchErr)
		}
		return fmt.Sprintf("%s\n\nconnecting...\n", title)
	}

	s := m.snap
	counters := fmt.Sprintf(
		"entries %d  seqno %d  buckets %d/%d  longest chain %d\nlookups %d  misses %d  allocations %d  reclaims %d  pending reclaim %d",
		s.ActiveCount, s.PolicySeqno, s.BucketsUsed, s.BucketsTotal, s.LongestChain,
		s.Lookups, s.Misses, s.Allocations, s.Reclaims, s.PendingReclaim,
	)

	maxLen := 1
	for _, n := range s.Occupancy {
		if n > maxLen {
			maxLen = n
		}
	}

	heatmap := renderHeatmap(m.renderer, s.Occupancy)
	legend := heatmapLegend(m.renderer, maxLen)

	var errLine string
	if m.fetchErr != nil {
		errLine = m.renderer.NewStyle().Foreground(lipgloss.Color("#d72638")).
			Render(fmt.Sprintf("\nlast poll failed: %v", m.fetchErr))
	}

	help := fmt.Sprintf("%s  %s  %s  %s", m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc,
		m.keys.Refresh.Help().Key+" "+m.keys.Refresh.Help().Desc,
		m.keys.IncreasePoll.Help().Key+" "+m.keys.IncreasePoll.Help().Desc,
		m.keys.DecreasePoll.Help().Key+" "+m.keys.DecreasePoll.Help().Desc)

	return fmt.Sprintf("%s  (polled %s, every %s)\n\n%s\n\n%s\n%s%s\n\n%s\n",
		title, m.lastPoll.Format(time.TimeOnly), m.pollInterval, counters, heatmap, legend, errLine, help)
}
