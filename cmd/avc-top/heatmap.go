// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// heatmapColumns is the grid width for rendering NSlots (512) buckets
// as a rectangle. 512 / 32 = 16 rows.
const heatmapColumns = 32

// heatLevels are foreground colors from cold (empty bucket) to hot
// (long chain), indexed by occupancy bucketed into len(heatLevels)
// bands.
var heatLevels = []lipgloss.Color{
	lipgloss.Color("#1a1a2e"), // empty
	lipgloss.Color("#16537e"),
	lipgloss.Color("#1f8a70"),
	lipgloss.Color("#bedb39"),
	lipgloss.Color("#f9a03f"),
	lipgloss.Color("#d72638"), // longest observed chain
}

// renderHeatmap renders occupancy (one chain length per bucket, in
// bucket order) as a colored grid of full-block characters, one bucket
// per printed cell and heatmapColumns cells per row.
func renderHeatmap(renderer *lipgloss.Renderer, occupancy []int) string {
	if len(occupancy) == 0 {
		return ""
	}

	maxLen := 1
	for _, n := range occupancy {
		if n > maxLen {
			maxLen = n
		}
	}

	var b strings.Builder
	for row := 0; row*heatmapColumns < len(occupancy); row++ {
		for col := 0; col < heatmapColumns; col++ {
			idx := row*heatmapColumns + col
			if idx >= len(occupancy) {
				break
			}
			style := renderer.NewStyle().Foreground(heatColor(occupancy[idx], maxLen))
			b.WriteString(style.Render("█"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// heatColor maps an occupancy count, relative to the hottest bucket
// currently observed, onto a discrete color band.
func heatColor(n, maxLen int) lipgloss.Color {
	if n == 0 || maxLen == 0 {
		return heatLevels[0]
	}
	band := n * (len(heatLevels) - 1) / maxLen
	if band >= len(heatLevels) {
		band = len(heatLevels) - 1
	}
	return heatLevels[band]
}

// heatmapLegend renders a one-line key for the color bands, e.g. for
// display under the grid.
func heatmapLegend(renderer *lipgloss.Renderer, maxLen int) string {
	var b strings.Builder
	b.WriteString("chain length: ")
	for i, color := range heatLevels {
		style := renderer.NewStyle().Foreground(color)
		b.WriteString(style.Render("█"))
		if i == 0 {
			b.WriteString(" 0")
		} else if i == len(heatLevels)-1 {
			fmt.Fprintf(&b, "+ %d", maxLen)
		}
		b.WriteString(" ")
	}
	return b.String()
}
