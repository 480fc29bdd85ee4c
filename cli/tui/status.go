package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/petframes/download"
)

// StatusModel shows the completeness of one phase.
type StatusModel struct {
	characterType string
	phase         string
	clips         []download.ClipStatus
	width         int
	height        int
	quitting      bool
}

// NewStatusModel creates a status model.
func NewStatusModel(characterType, phase string, clips []download.ClipStatus) StatusModel {
	return StatusModel{
		characterType: characterType,
		phase:         phase,
		clips:         clips,
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var (
		complete int
		expected int
		indexed  int
	)
	for _, c := range m.clips {
		if c.Complete {
			complete++
		}
		expected += c.Expected
		indexed += min(c.Indexed, c.Expected)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s / %s", m.characterType, m.phase)))
	b.WriteString("\n")

	completeColor := ready
	if complete < len(m.clips) {
		completeColor = pending
	}
	boxes := []string{
		renderStatBox("Clips", fmt.Sprintf("%d", len(m.clips)), frame),
		renderStatBox("Complete", fmt.Sprintf("%d", complete), completeColor),
		renderStatBox("Frames", fmt.Sprintf("%d/%d", indexed, expected), accent),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	for _, c := range m.clips {
		state := "complete"
		if !c.Complete {
			state = "incomplete"
		}
		b.WriteString(LabelStyle.Render(c.Clip))
		b.WriteString(ValueStyle.Render(fmt.Sprintf("%4d/%-4d ", c.Indexed, c.Expected)))
		b.WriteString(StateStyle(state).Render(state))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(helpText))
	return b.String()
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RunStatus runs the status TUI.
func RunStatus(characterType, phase string, clips []download.ClipStatus) error {
	p := tea.NewProgram(NewStatusModel(characterType, phase, clips), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatusStatic renders the status view without a running program.
func RenderStatusStatic(characterType, phase string, clips []download.ClipStatus) string {
	m := NewStatusModel(characterType, phase, clips)
	m.width = 80
	m.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View())
}
