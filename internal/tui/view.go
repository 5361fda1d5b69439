package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"otpdeck/internal/otp"
)

// View renders the code list, the add panel and the footer
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).MarginBottom(1)
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).MarginTop(1)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true).MarginTop(1)
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af")).MarginTop(1)

	b.WriteString(titleStyle.Render("otpdeck"))
	b.WriteString("\n\n")

	if !m.hasFrame {
		b.WriteString("Loading codes...\n")
		return b.String()
	}

	b.WriteString(m.renderCountdown())
	b.WriteString("\n\n")
	b.WriteString(m.renderEntries())

	if !m.frame.PanelCollapsed {
		b.WriteString("\n")
		b.WriteString(m.renderAddPanel())
	}

	if m.mode == ModeRename {
		b.WriteString("\n")
		b.WriteString(m.renderRename())
	}
	if m.mode == ModeConfirmDelete && len(m.frame.Entries) > 0 {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete %q? (y/N)", m.frame.Entries[m.selection].Label)))
		b.WriteString("\n")
	}

	if m.statusMessage != "" {
		b.WriteString(statusStyle.Render(m.statusMessage))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(errorStyle.Render("⚠ " + m.lastError))
		b.WriteString("\n")
	}

	b.WriteString(hintStyle.Render(m.hint()))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderCountdown() string {
	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#00d7ff"))
	lowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))

	remaining := m.frame.Countdown
	bar := strings.Repeat("█", remaining) + strings.Repeat("░", otp.StepSeconds-remaining)

	style := barStyle
	if remaining <= 5 {
		style = lowStyle
	}
	return style.Render(bar) + textStyle.Render(fmt.Sprintf(" %2ds", remaining))
}

func (m Model) renderEntries() string {
	if len(m.frame.Entries) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
		return emptyStyle.Render("No secrets yet. Press a to open the add panel.") + "\n"
	}

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00d7ff")).Bold(true)
	codeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd700")).Bold(true)
	indexStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	copiedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))

	width := 0
	for _, e := range m.frame.Entries {
		if w := lipgloss.Width(e.Label); w > width {
			width = w
		}
	}

	var b strings.Builder
	for i, e := range m.frame.Entries {
		label := e.Label + strings.Repeat(" ", width-lipgloss.Width(e.Label))
		if i == m.selection {
			label = selectedStyle.Render(label)
		} else {
			label = labelStyle.Render(label)
		}

		var code string
		if e.Err != nil {
			code = errorStyle.Render("⚠ " + errorMarker(e.Err))
		} else {
			code = codeStyle.Render(e.Code[:3] + " " + e.Code[3:])
		}

		b.WriteString(indexStyle.Render(fmt.Sprintf("%2d ", e.Index)))
		b.WriteString(label)
		b.WriteString("  ")
		b.WriteString(code)
		if i == m.copiedIndex {
			b.WriteString(copiedStyle.Render("  ✓"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderAddPanel() string {
	panelStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5fafff")).Padding(0, 1)
	fieldStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)

	label, secret := m.pendingLabel, ""
	switch m.mode {
	case ModeAddLabel:
		label = m.input + "▏"
	case ModeAddSecret:
		secret = strings.Repeat("•", len([]rune(m.input))) + "▏"
	}

	labelLine := fieldStyle.Render("Label:  ") + label
	secretLine := fieldStyle.Render("Secret: ") + secret
	if m.mode == ModeAddLabel {
		labelLine = activeStyle.Render(labelLine)
	}
	if m.mode == ModeAddSecret {
		secretLine = activeStyle.Render(secretLine)
	}

	return panelStyle.Render("Add secret\n"+labelLine+"\n"+secretLine) + "\n"
}

func (m Model) renderRename() string {
	fieldStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))
	return fieldStyle.Render("New label: ") + m.input + "▏\n"
}

func (m Model) hint() string {
	switch m.mode {
	case ModeAddLabel, ModeAddSecret, ModeRename:
		return "Confirm: Enter | Cancel: Esc"
	case ModeConfirmDelete:
		return "Confirm delete: y | Cancel: any key"
	}
	return "Navigate: ↑/↓ | Copy: Enter/c | Add panel: a | Input: i | Rename: r | Delete: d | Move: K/J | Quit: q"
}
