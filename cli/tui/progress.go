package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/petframes/download"
)

const (
	barPadding  = 4
	maxBarWidth = 60
)

// ProgressMsg carries one download progress update into the model.
type ProgressMsg download.Progress

// DoneMsg ends the progress view.
type DoneMsg struct {
	Result *download.Result
	Err    error
}

// ProgressModel renders a download session as a progress bar.
type ProgressModel struct {
	characterType string
	phase         string
	bar           progress.Model
	latest        download.Progress
	result        *download.Result
	err           error
	done          bool
	cancel        context.CancelFunc
	quitting      bool
}

// NewProgressModel creates a progress model. cancel is called when the
// user quits before the session ends; it may be nil.
func NewProgressModel(characterType, phase string, cancel context.CancelFunc) ProgressModel {
	return ProgressModel{
		characterType: characterType,
		phase:         phase,
		bar:           progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		cancel:        cancel,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-barPadding, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case ProgressMsg:
		m.latest = download.Progress(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s / %s", m.characterType, m.phase)))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.latest.Progress))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Frames"))
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%d / %d", m.latest.Completed, m.latest.Total)))
	b.WriteString("\n")
	if m.latest.Message != "" {
		b.WriteString(LabelStyle.Render("Status"))
		b.WriteString(ValueStyle.Render(m.latest.Message))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	case m.result != nil:
		status := string(m.result.Status)
		line := status
		if m.result.FailedFrames > 0 {
			line = fmt.Sprintf("%s (%d frames failed)", status, m.result.FailedFrames)
		}
		b.WriteString(StateStyle(status).Render(line))
		b.WriteString("\n")
	case m.quitting:
		b.WriteString(WarningStyle.Render("canceling..."))
		b.WriteString("\n")
	}

	if !m.done && !m.quitting {
		b.WriteString(HelpStyle.Render(helpText))
	}
	return b.String()
}

// RunFunc runs a download session, sending updates to progress.
type RunFunc func(ctx context.Context, progress chan<- download.Progress) (*download.Result, error)

// RunProgress runs fn while showing a progress bar. Quitting the view
// cancels fn's context; RunProgress still waits for fn to return.
func RunProgress(ctx context.Context, characterType, phase string, fn RunFunc) (*download.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(characterType, phase, cancel))

	updates := make(chan download.Progress, 64)
	var (
		result *download.Result
		runErr error
	)
	finished := make(chan struct{})

	go func() {
		result, runErr = fn(ctx, updates)
		close(updates)
	}()
	go func() {
		defer close(finished)
		for u := range updates {
			p.Send(ProgressMsg(u))
		}
		p.Send(DoneMsg{Result: result, Err: runErr})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return result, fmt.Errorf("progress view: %w", err)
	}
	<-finished
	return result, runErr
}
