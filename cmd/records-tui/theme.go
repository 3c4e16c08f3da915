package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/srjmnh/student-ai/internal/convo"
	"github.com/srjmnh/student-ai/internal/notify"
)

type uiTheme struct {
	root         lipgloss.Style
	header       lipgloss.Style
	tabActive    lipgloss.Style
	tabInactive  lipgloss.Style
	panel        lipgloss.Style
	panelFocused lipgloss.Style
	panelTitle   lipgloss.Style
	footer       lipgloss.Style
	status       lipgloss.Style
	errorStatus  lipgloss.Style
	inputPanel   lipgloss.Style
	helpText     lipgloss.Style
	origin       map[convo.Origin]lipgloss.Style
	gridHeader   lipgloss.Style
	cell         lipgloss.Style
	cellIdentity lipgloss.Style
	cellCursor   lipgloss.Style
	cellEditing  lipgloss.Style
	notice       map[notify.Level]lipgloss.Style
	modalFrame   lipgloss.Style
	modalTitle   lipgloss.Style
	modalPick    lipgloss.Style
	modalAccent  lipgloss.Style
}

const canvasColor = lipgloss.Color("#120924")

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	gold := lipgloss.Color("#ffd166")
	panelBg := lipgloss.Color("#1b0f35")
	ink := lipgloss.Color("#22062f")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	panel := lipgloss.NewStyle().
		Background(panelBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(blue).
		Padding(0, 1)

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(canvasColor).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Background(pink).
			Foreground(ink).
			Bold(true).
			Padding(0, 1),
		tabInactive: lipgloss.NewStyle().
			Background(lipgloss.Color("#2a184a")).
			Foreground(muted).
			Padding(0, 1),
		panel:        panel,
		panelFocused: panel.BorderForeground(pink),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		helpText: lipgloss.NewStyle().Foreground(muted),
		origin: map[convo.Origin]lipgloss.Style{
			convo.User:   lipgloss.NewStyle().Foreground(mint).Bold(true),
			convo.System: lipgloss.NewStyle().Foreground(blue).Bold(true),
		},
		gridHeader:   lipgloss.NewStyle().Foreground(mint).Bold(true).Underline(true),
		cell:         lipgloss.NewStyle().Foreground(text),
		cellIdentity: lipgloss.NewStyle().Foreground(muted),
		cellCursor:   lipgloss.NewStyle().Background(blue).Foreground(ink).Bold(true),
		cellEditing:  lipgloss.NewStyle().Background(pink).Foreground(ink),
		notice: map[notify.Level]lipgloss.Style{
			notify.Success: lipgloss.NewStyle().Foreground(ink).Background(mint).Padding(0, 1),
			notify.Info:    lipgloss.NewStyle().Foreground(ink).Background(blue).Padding(0, 1),
			notify.Warning: lipgloss.NewStyle().Foreground(ink).Background(gold).Padding(0, 1),
			notify.Danger:  lipgloss.NewStyle().Foreground(ink).Background(pink).Bold(true).Padding(0, 1),
		},
		modalFrame: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(blue).
			Padding(1, 2),
		modalTitle:  lipgloss.NewStyle().Foreground(pink).Bold(true),
		modalPick:   lipgloss.NewStyle().Foreground(pink).Bold(true),
		modalAccent: lipgloss.NewStyle().Foreground(mint).Bold(true),
	}
}
