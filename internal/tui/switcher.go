package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/muurk/kvmswitch/internal/kvm"
	"github.com/muurk/kvmswitch/internal/logging"
	"github.com/muurk/kvmswitch/internal/scheduler"
)

// Switch is the part of kvm.Client the switcher needs
type Switch interface {
	SelectPortWithContext(ctx context.Context, port int) error
	GetSelectedPortWithContext(ctx context.Context) (int, error)
	Address() string
}

// Options configures the switcher
type Options struct {
	// Ports is the number of buttons (default 16)
	Ports int

	// Columns is the number of buttons per row (default 4)
	Columns int

	// Label names a port; nil means "Port N"
	Label func(port int) string

	// Debounce is the quiet period before a selection is sent
	Debounce time.Duration

	// RateLimit caps selections per second (0 = unlimited)
	RateLimit float64
}

// Messages
type queryResultMsg struct {
	port int
	err  error
}

type selectResultMsg struct {
	port int
	err  error
}

// Model is the port switcher screen
type Model struct {
	ctx     context.Context // bounds queries to the program's lifetime
	sw      Switch
	opts    Options
	sched   *scheduler.Scheduler
	results chan selectResultMsg
	done    chan struct{}

	Active   int // port reported by the switch, 0 if unknown
	Cursor   int // focused button (1-based)
	Pending  int // port scheduled but not yet sent, 0 if none
	Querying bool
	Status   string
	Err      error

	Width  int
	Height int

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// New creates a switcher for sw. Call Close when the program exits.
func New(sw Switch, opts Options) *Model {
	if opts.Ports <= 0 {
		opts.Ports = 16
	}
	if opts.Columns <= 0 {
		opts.Columns = 4
	}
	if opts.Label == nil {
		opts.Label = func(port int) string { return fmt.Sprintf("Port %d", port) }
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := &Model{
		ctx:     context.Background(),
		sw:      sw,
		opts:    opts,
		results: make(chan selectResultMsg, 1),
		done:    make(chan struct{}),
		Cursor:  1,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}

	schedOpts := []scheduler.Option{
		scheduler.WithResultHandler(func(port int, err error) {
			select {
			case m.results <- selectResultMsg{port: port, err: err}:
			case <-m.done:
			}
		}),
	}
	if opts.RateLimit > 0 {
		schedOpts = append(schedOpts, scheduler.WithRateLimit(opts.RateLimit, 1))
	}
	m.sched = scheduler.New(sw.SelectPortWithContext, opts.Debounce, schedOpts...)

	return m
}

// Close stops pending selections
func (m *Model) Close() {
	close(m.done)
	m.sched.Stop()
}

// Init queries the active port and starts listening for selection results
func (m *Model) Init() tea.Cmd {
	m.Querying = true
	return tea.Batch(m.query(), m.spinner.Tick, m.waitForResult())
}

// query asks the switch for its active port
func (m *Model) query() tea.Cmd {
	ctx, sw := m.ctx, m.sw
	return func() tea.Msg {
		port, err := sw.GetSelectedPortWithContext(ctx)
		return queryResultMsg{port: port, err: err}
	}
}

// waitForResult delivers the next scheduler result to Update
func (m *Model) waitForResult() tea.Cmd {
	ch := m.results
	return func() tea.Msg {
		return <-ch
	}
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case queryResultMsg:
		m.Querying = false
		if msg.err != nil {
			m.Err = msg.err
			logging.Warn("Query failed", zap.Error(msg.err))
			return m, nil
		}
		m.Err = nil
		m.Active = msg.port
		if msg.port >= 1 && msg.port <= m.opts.Ports {
			m.Cursor = msg.port
		}
		m.Status = fmt.Sprintf("Switch reports %s", m.opts.Label(msg.port))
		return m, nil

	case selectResultMsg:
		if m.Pending == msg.port {
			m.Pending = 0
		}
		if msg.err != nil {
			m.Err = msg.err
			logging.Warn("Select failed", zap.Int("port", msg.port), zap.Error(msg.err))
		} else {
			m.Err = nil
			m.Active = msg.port
			m.Status = fmt.Sprintf("Switched to %s", m.opts.Label(msg.port))
			logging.Info("Port selected", zap.Int("port", msg.port))
		}
		return m, m.waitForResult()

	case spinner.TickMsg:
		if !m.Querying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if port := portForKey(msg.String()); port != 0 {
		m.choose(port)
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		if m.Querying {
			return m, nil
		}
		m.Querying = true
		return m, tea.Batch(m.query(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Select):
		m.choose(m.Cursor)

	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-m.opts.Columns)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(m.opts.Columns)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

// choose schedules a selection. Ports beyond the button count are ignored.
func (m *Model) choose(port int) {
	if port < 1 || port > m.opts.Ports {
		return
	}
	m.Cursor = port
	m.Pending = port
	m.sched.Schedule(port)
}

func (m *Model) moveCursor(delta int) {
	next := m.Cursor + delta
	if next >= 1 && next <= m.opts.Ports {
		m.Cursor = next
	}
}

// View renders the switcher
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Select input"))
	b.WriteString("\n\n")
	b.WriteString(m.renderButtons())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())

	width, height := m.Width, m.Height
	if width == 0 {
		width = m.opts.Columns*(ButtonWidth+2) + 8
	}
	if height == 0 {
		height = 24
	}
	return renderApplicationContainer(b.String(), m.sw.Address(), m.help.View(m.keys), width, height)
}

func (m *Model) renderButtons() string {
	var rows []string
	var row []string
	for port := 1; port <= m.opts.Ports; port++ {
		row = append(row, m.buttonStyle(port).Render(fmt.Sprintf("%d\n%s", port, truncate(m.opts.Label(port), ButtonWidth))))
		if len(row) == m.opts.Columns || port == m.opts.Ports {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) buttonStyle(port int) lipgloss.Style {
	switch {
	case port == m.Pending:
		return PendingButtonStyle
	case port == m.Active:
		return ActiveButtonStyle
	case port == m.Cursor:
		return FocusedButtonStyle
	default:
		return ButtonStyle
	}
}

func (m *Model) renderStatus() string {
	switch {
	case m.Querying:
		return m.spinner.View() + " Querying switch..."
	case m.Err != nil:
		return ErrorLineStyle.Render("✗ "+kvm.GetShortErrorMessage(m.Err)) + "\n" +
			SubtitleStyle.Render(m.Err.Error())
	case m.Pending != 0:
		return SubtitleStyle.Render(fmt.Sprintf("Switching to %s...", m.opts.Label(m.Pending)))
	case m.Status != "":
		return StatusStyle.Render("✓ " + m.Status)
	default:
		return ""
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// Run shows the switcher until the user quits or ctx is cancelled
func Run(ctx context.Context, sw Switch, opts Options) error {
	m := New(sw, opts)
	m.ctx = ctx
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}
