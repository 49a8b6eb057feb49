package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"renamecore/internal/command"
)

var (
	historyTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).MarginBottom(1)
	historySelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true)
	historyItemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	historyHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// historyModel is a scrollable viewer over the undo stack, used by
// `history --interactive`. It's read-only: moving the cursor never
// mutates the underlying command.Manager.
type historyModel struct {
	entries  []command.Command
	cursor   int
	quitting bool
}

func newHistoryModel(entries []command.Command) historyModel {
	return historyModel{entries: entries}
}

func (m historyModel) Init() tea.Cmd { return nil }

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m historyModel) View() string {
	if m.quitting {
		return ""
	}
	var b []byte
	b = append(b, historyTitleStyle.Render("Undo history (oldest first)")...)
	b = append(b, '\n')
	if len(m.entries) == 0 {
		b = append(b, historyItemStyle.Render("  (empty)")...)
	}
	for i, c := range m.entries {
		line := fmt.Sprintf("%s  %s", c.Timestamp().Format("15:04:05"), c.Description())
		if i == m.cursor {
			line = historySelectedStyle.Render("> " + line)
		} else {
			line = historyItemStyle.Render("  " + line)
		}
		b = append(b, line...)
		b = append(b, '\n')
	}
	b = append(b, historyHelpStyle.Render("↑/↓ move · q quit")...)
	return string(b)
}

func runHistoryViewer(entries []command.Command) error {
	_, err := tea.NewProgram(newHistoryModel(entries)).Run()
	return err
}
