package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/holdem-gto/solver"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// progressMsg carries a solver.Progress callback into the bubbletea event
// loop; doneMsg signals the solve goroutine has returned.
type progressMsg solver.Progress

type doneMsg struct{ err error }

// progressWatcher bridges solver.Hooks.Progress, which fires synchronously
// from inside the solving call, to a bubbletea program running on its own
// goroutine. onProgress is safe to call from the solver's goroutine; the
// bubbletea program itself owns the model and is never touched directly.
type progressWatcher struct {
	program       *tea.Program
	maxIterations uint32
}

func newProgressWatcher(maxIterations uint32) *progressWatcher {
	model := newProgressModel(maxIterations)
	return &progressWatcher{
		program:       tea.NewProgram(model),
		maxIterations: maxIterations,
	}
}

func (w *progressWatcher) run() {
	if _, err := w.program.Run(); err != nil {
		fmt.Println("progress view error:", err)
	}
}

func (w *progressWatcher) onProgress(p solver.Progress) {
	w.program.Send(progressMsg(p))
}

func (w *progressWatcher) finish(err error) {
	w.program.Send(doneMsg{err: err})
}

type progressModel struct {
	bar           progress.Model
	maxIterations uint32
	last          solver.Progress
	started       time.Time
	done          bool
	err           error
}

func newProgressModel(maxIterations uint32) progressModel {
	return progressModel{
		bar:           progress.New(progress.WithDefaultGradient()),
		maxIterations: maxIterations,
		started:       time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case progressMsg:
		m.last = solver.Progress(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.maxIterations == 0 {
		return ""
	}
	frac := float64(m.last.Iteration) / float64(m.maxIterations)
	out := fmt.Sprintf(
		"%s\n\niteration %d/%d  exploitability %.5f  elapsed %s\n",
		m.bar.ViewAs(frac),
		m.last.Iteration, m.maxIterations, m.last.Exploitability,
		time.Since(m.started).Round(time.Millisecond),
	)
	if m.done {
		if m.err != nil {
			return out + statusStyle.Foreground(lipgloss.Color("#FF6B6B")).Render("solve failed: "+m.err.Error()) + "\n"
		}
		return out + statusStyle.Render(fmt.Sprintf("solve finished: %s", m.last.Status)) + "\n"
	}
	return out + labelStyle.Render("ctrl+c to stop watching (solve keeps running)") + "\n"
}
