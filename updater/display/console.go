package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/updater/task"
)

const (
	maxVisibleLines = 20
	maxKeptLines    = 1000
	defaultBarWidth = 60
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	lineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	progressLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#06B6D4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Italic(true)
)

type lineMsg string

type progressMsg task.Progress

type waitMsg struct{}

type consoleModel struct {
	lines       []string
	bar         progress.Model
	current     task.Progress
	hasProgress bool
	waiting     bool
}

func newConsoleModel() *consoleModel {
	return &consoleModel{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return nil
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case lineMsg:
		m.appendLine(string(msg))
	case progressMsg:
		m.current = task.Progress(msg)
		m.hasProgress = true
	case waitMsg:
		m.waiting = true
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, defaultBarWidth)
	case tea.KeyMsg:
		if m.waiting {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *consoleModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxKeptLines {
		m.lines = m.lines[len(m.lines)-maxKeptLines:]
	}
}

func (m *consoleModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Applying update"))
	b.WriteString("\n\n")

	visible := m.lines
	if len(visible) > maxVisibleLines {
		visible = visible[len(visible)-maxVisibleLines:]
	}
	for _, line := range visible {
		b.WriteString(lineStyle.Render(line))
		b.WriteString("\n")
	}

	if m.hasProgress {
		b.WriteString("\n")
		label := m.current.Description
		if m.current.Message != "" {
			label = fmt.Sprintf("%s: %s", label, m.current.Message)
		}
		b.WriteString(progressLabelStyle.Render(label))
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(float64(clampPercent(m.current.Percentage)) / 100))
		b.WriteString("\n")
	}

	if m.waiting {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("Press any key to close"))
		b.WriteString("\n")
	}
	return b.String()
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// ConsoleOption customizes the terminal program, mostly for tests
type ConsoleOption func(*consoleConfig)

type consoleConfig struct {
	input  io.Reader
	output io.Writer
}

// WithIO makes the console read keys from in and render to out
func WithIO(in io.Reader, out io.Writer) ConsoleOption {
	return func(c *consoleConfig) {
		c.input = in
		c.output = out
	}
}

// Console is a terminal display backed by a bubbletea program running on its own
// goroutine. Once shown, every call is delivered to the UI loop as a message.
type Console struct {
	log     *log.Entry
	model   *consoleModel
	program *tea.Program

	mu      sync.Mutex
	shown   bool
	closed  bool
	done    chan struct{}
	closeMu sync.Once
}

// NewConsole creates a console display. Nothing is drawn until Show is called.
func NewConsole(logger *log.Entry, opts ...ConsoleOption) *Console {
	cfg := &consoleConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var programOpts []tea.ProgramOption
	if cfg.input != nil {
		programOpts = append(programOpts, tea.WithInput(cfg.input))
	}
	if cfg.output != nil {
		programOpts = append(programOpts, tea.WithOutput(cfg.output))
	}

	model := newConsoleModel()
	return &Console{
		log:     logger,
		model:   model,
		program: tea.NewProgram(model, programOpts...),
		done:    make(chan struct{}),
	}
}

func (c *Console) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shown || c.closed {
		return
	}
	c.shown = true

	go func() {
		defer close(c.done)
		if _, err := c.program.Run(); err != nil {
			c.log.Warnf("console display stopped: %v", err)
		}
	}()
}

func (c *Console) WriteLine(args ...any) {
	line := FormatLine(args...)
	c.deliver(lineMsg(line), func(m *consoleModel) {
		m.appendLine(line)
	})
}

func (c *Console) ReportProgress(p task.Progress) {
	c.deliver(progressMsg(p), func(m *consoleModel) {
		m.current = p
		m.hasProgress = true
	})
}

// deliver sends msg to the running program. Before Show the model is not owned by the
// UI loop yet, so apply updates it directly.
func (c *Console) deliver(msg tea.Msg, apply func(m *consoleModel)) {
	c.mu.Lock()
	if !c.shown {
		apply(c.model)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.program.Send(msg)
}

func (c *Console) Close() {
	c.closeMu.Do(func() {
		c.mu.Lock()
		shown := c.shown
		c.closed = true
		c.mu.Unlock()

		if !shown {
			close(c.done)
			return
		}
		c.program.Quit()
		<-c.done
	})
}

func (c *Console) WaitForClose() {
	c.mu.Lock()
	shown := c.shown
	c.mu.Unlock()
	if !shown {
		return
	}

	c.program.Send(waitMsg{})
	<-c.done
}

func (c *Console) RunsInProcessUI() bool {
	return true
}

// Lines returns the lines written so far. While the program runs the model belongs to
// the UI loop, so Lines waits for it to stop first.
func (c *Console) Lines() []string {
	c.mu.Lock()
	shown := c.shown
	c.mu.Unlock()
	if shown {
		<-c.done
	}

	lines := make([]string, len(c.model.lines))
	copy(lines, c.model.lines)
	return lines
}
