// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the Halcyon CLI.
package ux

import "github.com/charmbracelet/lipgloss"

// Halcyon color palette - kingfisher blues and dawn golds
var (
	// Primary palette (brightest to darkest)
	ColorAzureBright  = lipgloss.Color("#4FC3F7") // Bright azure - highlights
	ColorAzurePrimary = lipgloss.Color("#29A8E0") // Primary azure - brand color
	ColorAzureDeep    = lipgloss.Color("#1B7FB8") // Deep azure - borders, accents
	ColorHarborBlue   = lipgloss.Color("#145A86") // Harbor - subtle accents

	// Dark palette (backgrounds, muted elements)
	ColorDusk  = lipgloss.Color("#2D4654") // Dusk - muted text, borders
	ColorNight = lipgloss.Color("#10202C") // Night - deep backgrounds

	// Semantic colors (standard conventions)
	ColorSuccess = lipgloss.Color("#4FC3F7") // Bright azure for success
	ColorWarning = lipgloss.Color("#F4B942") // Dawn gold for warnings
	ColorError   = lipgloss.Color("#E05A4E") // Red for errors
	ColorMuted   = lipgloss.Color("#2D4654") // Dusk for muted text
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAzureBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorAzurePrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorDusk),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAzureBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAzureDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with its semantic styling.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}
