package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/config"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/executor"
	"github.com/wippyai/wasm-executor/value"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var lifecycle = []executor.State{
	executor.StateCreated,
	executor.StateModuleBound,
	executor.StateInstantiated,
	executor.StateArgsBound,
	executor.StateExecuted,
	executor.StateFinished,
}

type interactiveModel struct {
	err      error
	ex       *executor.Executor
	cfg      *config.Config
	output   *strings.Builder
	filename string
	result   string
	lastOp   executor.Op
	input    textinput.Model
	editing  bool
}

func newInteractiveModel(filename string, cfg *config.Config) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "i32:1 i64:2 f64:0.5"
	ti.Prompt = "args: "
	ti.Width = 40
	return &interactiveModel{
		filename: filename,
		cfg:      cfg,
		input:    ti,
		output:   &strings.Builder{},
	}
}

type readyMsg struct {
	err error
	ex  *executor.Executor
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.create
}

func (m *interactiveModel) create() tea.Msg {
	ex, err := newExecutor(m.cfg, zap.NewNop(), m.output)
	return readyMsg{ex: ex, err: err}
}

// step runs op on the UI loop. The executor is not safe for concurrent use,
// and View reads its state, so ops never run in a tea.Cmd goroutine.
func (m *interactiveModel) step(op executor.Op, fn func(context.Context) (string, error)) {
	m.lastOp = op
	m.result, m.err = fn(context.Background())
}

func (m *interactiveModel) setModule(context.Context) (string, error) {
	mod, err := loadModule(m.filename)
	if err != nil {
		return "", err
	}
	if err := m.ex.SetModule(mod); err != nil {
		return "", err
	}
	var b strings.Builder
	_ = describe(&b, m.ex.Module())
	return b.String(), nil
}

func (m *interactiveModel) instantiate(ctx context.Context) (string, error) {
	if err := m.ex.Instantiate(ctx); err != nil {
		return "", err
	}
	return m.storeSummary(), nil
}

func (m *interactiveModel) setArgs(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		var args []value.Value
		for _, f := range strings.Fields(text) {
			v, err := value.Parse(f)
			if err != nil {
				return "", err
			}
			args = append(args, v)
		}
		n := len(args)
		if err := m.ex.SetArgs(&args); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d argument(s) on the stack", n), nil
	}
}

func (m *interactiveModel) run(ctx context.Context) (string, error) {
	err := m.ex.Run(ctx)
	return m.storeSummary(), err
}

func (m *interactiveModel) getRets(context.Context) (string, error) {
	rets, err := m.ex.GetRets()
	if err != nil {
		return "", err
	}
	if len(rets) == 0 {
		return "no results", nil
	}
	parts := make([]string, len(rets))
	for i, r := range rets {
		parts[i] = r.String()
	}
	return strings.Join(parts, " "), nil
}

func (m *interactiveModel) reset(force bool) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		if err := m.ex.Reset(force); err != nil {
			return "", err
		}
		// Reset empties the registry; the built-ins are registered again.
		return "executor reset", registerBuiltins(m.ex, m.cfg.Executor.HostModule, m.output)
	}
}

func (m *interactiveModel) storeSummary() string {
	st := m.ex.Store()
	var b strings.Builder
	fmt.Fprintf(&b, "store: %d functions, %d globals, %d memories, %d tables\n",
		st.NumFunctions(), st.NumGlobals(), st.NumMemories(), st.NumTables())
	for i := 0; i < st.NumGlobals(); i++ {
		g, err := st.Global(uint32(i))
		if err != nil {
			break
		}
		fmt.Fprintf(&b, "  global %d = %s\n", i, valueStyle.Render(g.Get().String()))
	}
	fmt.Fprintf(&b, "stack depth: %d", m.ex.Stack().Size())
	return b.String()
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.editing {
			return m.updateInput(msg)
		}
		if msg.String() == "q" {
			return m.quit()
		}
		if m.ex == nil {
			return m, nil
		}
		switch msg.String() {
		case "m":
			m.step(executor.OpSetModule, m.setModule)
		case "i":
			m.step(executor.OpInstantiate, m.instantiate)
		case "a":
			m.editing = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case "r":
			m.step(executor.OpRun, m.run)
		case "g":
			m.step(executor.OpGetRets, m.getRets)
		case "x":
			m.step(executor.OpReset, m.reset(false))
		case "X":
			m.step(executor.OpReset, m.reset(true))
		}

	case readyMsg:
		m.ex = msg.ex
		m.err = msg.err
	}
	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.editing = false
		m.input.Blur()
		m.step(executor.OpSetArgs, m.setArgs(m.input.Value()))
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) quit() (tea.Model, tea.Cmd) {
	if m.ex != nil {
		_ = m.ex.Close(context.Background())
	}
	return m, tea.Quit
}

func (m *interactiveModel) View() string {
	if m.ex == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
		}
		return "Starting executor..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("WASM Executor"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	states := make([]string, len(lifecycle))
	for i, s := range lifecycle {
		if s == m.ex.State() {
			states[i] = currentStyle.Render(s.String())
		} else {
			states[i] = stateStyle.Render(s.String())
		}
	}
	b.WriteString(strings.Join(states, stateStyle.Render(" → ")))
	b.WriteString("\n\n")

	if m.editing {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter stage • esc cancel"))
		return b.String()
	}

	if m.lastOp != "" {
		b.WriteString(opStyle.Render(string(m.lastOp)))
		b.WriteString("\n")
		if m.err != nil {
			code := errors.CodeOf(m.err)
			b.WriteString(errorStyle.Render(fmt.Sprintf("status %d (%s): %v", code, code, m.err)))
			b.WriteString("\n")
		}
		if m.result != "" {
			b.WriteString(resultStyle.Render(m.result))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if out := m.output.String(); out != "" {
		b.WriteString("--- host output ---\n")
		b.WriteString(lastLines(out, 8))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("m set module • i instantiate • a args • r run • g results • x reset • X force reset • q quit"))
	return b.String()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func runInteractive(filename string, cfg *config.Config) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
