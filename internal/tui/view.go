package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	padding  = 2
	maxWidth = 80
)

type tickMsg time.Time

type mode int

const (
	spin mode = iota
	bar
	text
)

type view struct {
	mode     mode
	title    string
	spinner  spinner.Model
	progress progress.Model
	percent  float64
}

func newView() *view {
	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))

	return &view{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

func (v *view) SetProgress(title string, percent float64) {
	v.mode = bar
	v.title = title
	v.percent = percent
}

func (v *view) SetSpinner(title string) {
	v.mode = spin
	v.title = title
}

func (v *view) SetText(title string) {
	v.mode = text
	v.title = title
}

func (v *view) Run() {
	if _, err := tea.NewProgram(v).Run(); err != nil {
		fmt.Println("terminal UI failed:", err)
		os.Exit(1)
	}
}

func (v *view) Init() tea.Cmd {
	return tea.Batch(tickCmd(), v.spinner.Tick)
}

func (v *view) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v, tea.Quit

	case tea.WindowSizeMsg:
		v.progress.Width = msg.Width - padding*2 - 4
		if v.progress.Width > maxWidth {
			v.progress.Width = maxWidth
		}
		return v, nil

	case tickMsg:
		cmd := v.progress.SetPercent(v.percent)
		return v, tea.Batch(tickCmd(), cmd)

	// FrameMsg is sent when the progress bar wants to animate itself
	case progress.FrameMsg:
		progressModel, cmd := v.progress.Update(msg)
		v.progress = progressModel.(progress.Model)
		return v, cmd

	default:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
}

func (v *view) View() string {
	pad := strings.Repeat(" ", padding)

	switch v.mode {
	case text:
		return fmt.Sprintf("\n\n%s%s\n\n", pad, v.title)
	case spin:
		return fmt.Sprintf("\n\n%s%s %s\n\n", pad, v.spinner.View(), v.title)
	case bar:
		return "\n" +
			pad + v.title + "\n\n" +
			pad + v.progress.View() + "\n"
	}
	return ""
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
