// Package main provides the forge CLI entry point.
// This file defines the visual styling for the chat loop.
package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors, shared by light and dark terminals.
var (
	colorAccent  = lipgloss.Color("#8BC34A") // Lime Green
	colorError   = lipgloss.Color("#e53935") // Red
	colorWarning = lipgloss.Color("#FFC107") // Yellow
	colorInfo    = lipgloss.Color("#2196F3") // Blue
	colorMuted   = lipgloss.Color("8")       // ANSI bright black
)

// Styles holds the styled components for the line-oriented chat loop.
type Styles struct {
	Banner   lipgloss.Style
	Prompt   lipgloss.Style
	Response lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Badge    lipgloss.Style
	Divider  lipgloss.Style
}

func newStyles() Styles {
	return Styles{
		Banner: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),

		Response: lipgloss.NewStyle().
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(colorAccent),

		Muted: lipgloss.NewStyle().
			Foreground(colorMuted),

		Success: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(colorWarning),

		Info: lipgloss.NewStyle().
			Foreground(colorInfo),

		Badge: lipgloss.NewStyle().
			Background(colorAccent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		Divider: lipgloss.NewStyle().
			Foreground(colorMuted),
	}
}

// RenderDivider returns a horizontal divider of the given width.
func (s Styles) RenderDivider(width int) string {
	return s.Divider.Render(strings.Repeat("─", width))
}
