// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/prom/pkg/host"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// TUI model
type progressModel struct {
	title    string
	bar      progress.Model
	last     host.Progress
	started  bool
	finished bool
	width    int
}

// Messages
type progressMsg host.Progress
type finishedMsg struct{}

func newProgressModel(title string) progressModel {
	return progressModel{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient()),
		width: 80,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}

	case progressMsg:
		m.last = host.Progress(msg)
		m.started = true

	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	}

	return m, nil
}

func (m progressModel) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("PROM - " + strings.ToUpper(m.title)))
	s.WriteString("\n\n")

	content := strings.Builder{}
	if !m.started {
		content.WriteString(warningStyle.Render("⏳ Waiting for programmer..."))
	} else {
		content.WriteString(m.bar.ViewAs(m.last.Fraction()))
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
			statsLabelStyle.Render("Cell:"), statsValueStyle.Render(fmt.Sprintf("0x%03X", m.last.Address)),
			statsLabelStyle.Render("Done:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", m.last.Done, m.last.Total)),
			statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(m.last.Elapsed.Round(time.Millisecond).String()),
		))
	}
	s.WriteString(boxStyle.Render(content.String()))
	s.WriteString("\n")

	if m.finished {
		s.WriteString(headerStyle.Render(m.last.Op + " finished"))
		s.WriteString("\n")
	}
	return s.String()
}

// progressReporter shows executor progress, either as a row of dots on
// stderr or in the terminal UI. The UI starts with the first update so
// that prompts before it are not overdrawn.
type progressReporter struct {
	title   string
	tui     bool
	program *tea.Program
	done    chan struct{}
	dots    int
}

func newProgressReporter(title string, tui bool) *progressReporter {
	return &progressReporter{title: title, tui: tui}
}

func (r *progressReporter) start() {
	r.program = tea.NewProgram(newProgressModel(r.title),
		tea.WithOutput(os.Stderr),
		tea.WithInput(nil),
	)
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		if _, err := r.program.Run(); err != nil {
			logger.Error().Err(err).Msg("TUI error")
		}
	}()
}

// Update is the executor's progress callback.
func (r *progressReporter) Update(p host.Progress) {
	if r.tui {
		if r.program == nil {
			r.start()
		}
		r.program.Send(progressMsg(p))
		return
	}

	fmt.Fprint(os.Stderr, ".")
	r.dots++
	if r.dots%73 == 0 {
		fmt.Fprintln(os.Stderr)
	}
}

// Finish stops the UI and terminates the dot line.
func (r *progressReporter) Finish() {
	if r.program != nil {
		r.program.Send(finishedMsg{})
		<-r.done
		r.program = nil
		return
	}
	if r.dots%73 != 0 {
		fmt.Fprintln(os.Stderr)
	}
	r.dots = 0
}

// reportSuccess closes a successful operation
func reportSuccess() {
	fmt.Fprintln(os.Stderr, statsValueStyle.Render("✓ Success."))
}
