// Package ui implements the interactive terminal front end for clpc: a
// single "Enter project.yaml path" prompt, followed by a staged progress
// view that lights up one line per build stage as the orchestrator reports
// it (resolve, compile, link, splice, hooks, verify, crc, write).
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

// Stages lists the build stages in the order internal/build.Orchestrator
// reports them, CafeLoader and Emulator builds alike (the splice/hooks/
// verify/crc/write lines simply never light up on a CafeLoader run, and
// verify only lights up when --verify-hooks is set).
var Stages = []string{"resolve", "compile", "link", "splice", "hooks", "verify", "crc", "write"}

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// StageMsg is sent into the progress program each time the orchestrator
// enters a new build stage.
type StageMsg string

// DoneMsg is sent when the build finishes, successfully or not.
type DoneMsg struct{ Err error }

// PromptForPath runs a single-line text prompt and returns the path the
// user entered, or an error if they cancelled with Ctrl+C or Esc.
func PromptForPath(label, placeholder string) (string, error) {
	m := promptModel{label: label}
	m.input = textinput.New()
	m.input.Placeholder = placeholder
	m.input.Focus()
	m.input.CharLimit = 4096
	m.input.Width = 60

	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("ui: running prompt: %w", err)
	}
	fm := final.(promptModel)
	if fm.cancelled {
		return "", fmt.Errorf("ui: prompt cancelled")
	}
	return strings.TrimSpace(fm.input.Value()), nil
}

type promptModel struct {
	label     string
	input     textinput.Model
	cancelled bool
}

func (m promptModel) Init() tea.Cmd { return textinput.Blink }

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	return fmt.Sprintf("%s\n%s\n\n(enter to confirm, esc to cancel)\n", m.label, m.input.View())
}

// ProgressProgram drives the staged progress view. Events is fed stage
// names via Send(StageMsg(...)) and a terminal DoneMsg; the caller owns
// running the orchestrator on a separate goroutine and forwarding its
// StageObserver callbacks here.
type ProgressProgram struct {
	program *tea.Program
}

// NewProgressProgram starts (but does not yet render) a progress view for
// the given target/platform label.
func NewProgressProgram(label string) *ProgressProgram {
	m := progressModel{label: label, status: make(map[string]bool, len(Stages))}
	return &ProgressProgram{program: tea.NewProgram(m)}
}

// Send forwards one event (a StageMsg or the terminal DoneMsg) to the view.
func (p *ProgressProgram) Send(msg tea.Msg) { p.program.Send(msg) }

// Run blocks until the view quits (after a DoneMsg) and returns any error
// the build reported.
func (p *ProgressProgram) Run() error {
	final, err := p.program.Run()
	if err != nil {
		return fmt.Errorf("ui: running progress view: %w", err)
	}
	return final.(progressModel).err
}

type progressModel struct {
	label  string
	status map[string]bool // stage -> done
	active string
	err    error
	done   bool
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StageMsg:
		if m.active != "" {
			m.status[m.active] = true
		}
		m.active = string(msg)
	case DoneMsg:
		if m.active != "" {
			m.status[m.active] = true
		}
		m.active = ""
		m.err = msg.Err
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "building %s\n\n", m.label)
	for _, s := range Stages {
		switch {
		case m.status[s]:
			fmt.Fprintf(&b, "  %s %s\n", doneStyle.Render("[x]"), s)
		case s == m.active:
			fmt.Fprintf(&b, "  %s %s\n", activeStyle.Render("[.]"), s)
		default:
			fmt.Fprintf(&b, "  %s %s\n", pendingStyle.Render("[ ]"), s)
		}
	}
	if m.done {
		if m.err != nil {
			b.WriteString("\n" + errorStyle.Render("build failed: "+m.err.Error()) + "\n")
		} else {
			b.WriteString("\n" + doneStyle.Render("build complete") + "\n")
		}
	}
	return b.String()
}
