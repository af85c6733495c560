/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Seednode/kakaroto/parser"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f59e0b")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ef4444")).
			Bold(true)

	ongoingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c8a84c")).
			Italic(true)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	challengeStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

func playerStyle(p parser.Player) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Color)).
		Bold(true)
}

func renderPlayer(p parser.Player) string {
	return playerStyle(p).Render(p.Name)
}

func renderFragments(fragments []parser.Fragment) string {
	var sb strings.Builder
	for _, f := range fragments {
		if f.Player != nil {
			sb.WriteString(renderPlayer(*f.Player))
			continue
		}
		sb.WriteString(normalStyle.Render(f.Text))
	}

	return sb.String()
}

// renderHelp renders key/label pairs as a single help line.
func renderHelp(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpKeyStyle.Render(pairs[i])+" "+helpLabelStyle.Render(pairs[i+1]))
	}

	return strings.Join(parts, helpLabelStyle.Render("  ·  "))
}
