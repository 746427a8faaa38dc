// Package tui provides a terminal routing editor for the MIDI 1-8
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/midi18/pkg/converter"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/transport"
)

// Acid-inspired color scheme
var (
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	cellStyle = lipgloss.NewStyle().
			Foreground(silverGray)

	onStyle = lipgloss.NewStyle().
		Foreground(acidGreen).
		Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(darkGray).
			Background(acidYellow).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMatrix State = iota
	StateFilePicker
	StateBusy
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Toggle key.Binding
	All    key.Binding
	None   key.Binding
	Write  key.Binding
	Read   key.Binding
	Ping   key.Binding
	Save   key.Binding
	Open   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Write, k.Read, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Toggle, k.All, k.None},
		{k.Write, k.Read, k.Ping},
		{k.Save, k.Open, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "output up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "output down")),
	Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "channel left")),
	Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "channel right")),
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
	All:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all on output")),
	None:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "none on output")),
	Write:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write to device")),
	Read:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "read from device")),
	Ping:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "ping")),
	Save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save dump")),
	Open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open dump")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model represents the TUI model
type Model struct {
	state      State
	row, col   int
	table      routing.Table
	session    *transport.Session
	conv       *converter.Converter
	savePath   string
	filePicker filepicker.Model
	spinner    spinner.Model
	help       help.Model
	busy       string
	status     string
	err        error
	width      int
	height     int
}

// Option configures the model
type Option func(*Model)

// WithSession connects the editor to a device
func WithSession(s *transport.Session) Option {
	return func(m *Model) {
		m.session = s
	}
}

// WithTable sets the table the editor starts with
func WithTable(t routing.Table) Option {
	return func(m *Model) {
		m.table = t
	}
}

// WithSavePath sets where "save" writes the dump; the extension picks the format
func WithSavePath(path string) Option {
	return func(m *Model) {
		m.savePath = path
	}
}

// WithConverter sets the converter used to save and open dumps
func WithConverter(c *converter.Converter) Option {
	return func(m *Model) {
		m.conv = c
	}
}

// exchangeDoneMsg reports a finished device exchange or file operation
type exchangeDoneMsg struct {
	op     string
	table  *routing.Table
	detail string
	err    error
}

// New creates a new TUI model
func New(opts ...Option) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".syx", ".mid", ".midi", ".json"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	m := Model{
		state:      StateMatrix,
		conv:       converter.New(devices.NewMIDI18()),
		savePath:   "routing.syx",
		filePicker: fp,
		spinner:    s,
		help:       help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return nil
}

// Table returns the table being edited
func (m Model) Table() routing.Table {
	return m.table
}

// Cursor returns the selected output and destination
func (m Model) Cursor() (output, destination int) {
	return m.row, m.col
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// the file picker needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMatrix
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			return m.start("open", m.openDump(path))
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		if m.state == StateBusy {
			if key.Matches(msg, keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		return m.updateMatrix(msg)

	case spinner.TickMsg:
		if m.state != StateBusy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case exchangeDoneMsg:
		m.state = StateMatrix
		m.busy = ""
		m.err = msg.err
		m.status = ""
		if msg.err != nil {
			return m, nil
		}
		if msg.table != nil {
			m.table = *msg.table
		}
		m.status = msg.detail
		return m, nil
	}

	return m, nil
}

func (m Model) updateMatrix(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, keys.Down):
		if m.row < routing.Outputs-1 {
			m.row++
		}
	case key.Matches(msg, keys.Left):
		if m.col > 0 {
			m.col--
		}
	case key.Matches(msg, keys.Right):
		if m.col < routing.Destinations-1 {
			m.col++
		}
	case key.Matches(msg, keys.Toggle):
		m.table.Toggle(m.row, m.col)
	case key.Matches(msg, keys.All):
		m.table.SetRow(m.row, true)
	case key.Matches(msg, keys.None):
		m.table.SetRow(m.row, false)
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, keys.Write):
		return m.start("write", m.write())
	case key.Matches(msg, keys.Read):
		return m.start("read", m.read())
	case key.Matches(msg, keys.Ping):
		return m.start("ping", m.ping())
	case key.Matches(msg, keys.Save):
		return m.start("save", m.saveDump())
	case key.Matches(msg, keys.Open):
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	}
	return m, nil
}

func (m Model) start(op string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.state = StateBusy
	m.busy = op
	m.err = nil
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m Model) needSession(op string) error {
	if m.session == nil {
		return fmt.Errorf("%s: no device connected (start with --in/--out or --emulate)", op)
	}
	return nil
}

func (m Model) write() tea.Cmd {
	t := m.table
	return func() tea.Msg {
		if err := m.needSession("write"); err != nil {
			return exchangeDoneMsg{op: "write", err: err}
		}
		if err := m.session.WriteConfig(context.Background(), t); err != nil {
			return exchangeDoneMsg{op: "write", err: err}
		}
		return exchangeDoneMsg{op: "write", detail: fmt.Sprintf("✓ Routing written to %s", m.session.Address())}
	}
}

func (m Model) read() tea.Cmd {
	return func() tea.Msg {
		if err := m.needSession("read"); err != nil {
			return exchangeDoneMsg{op: "read", err: err}
		}
		t, err := m.session.ReadConfig(context.Background())
		if err != nil {
			return exchangeDoneMsg{op: "read", err: err}
		}
		return exchangeDoneMsg{op: "read", table: &t, detail: fmt.Sprintf("✓ Routing read from %s", m.session.Address())}
	}
}

func (m Model) ping() tea.Cmd {
	return func() tea.Msg {
		if err := m.needSession("ping"); err != nil {
			return exchangeDoneMsg{op: "ping", err: err}
		}
		rtt, err := m.session.Ping(context.Background())
		if err != nil {
			return exchangeDoneMsg{op: "ping", err: err}
		}
		return exchangeDoneMsg{op: "ping", detail: fmt.Sprintf("✓ %s answered in %s", m.session.Address(), rtt.Round(time.Microsecond))}
	}
}

func (m Model) saveDump() tea.Cmd {
	d := m.conv.NewDump(m.table)
	if m.session != nil {
		d.Address = m.session.Address()
	}
	path := m.savePath
	return func() tea.Msg {
		if err := m.conv.WriteFile(path, d); err != nil {
			return exchangeDoneMsg{op: "save", err: err}
		}
		return exchangeDoneMsg{op: "save", detail: fmt.Sprintf("✓ Saved %s", filepath.Base(path))}
	}
}

func (m Model) openDump(path string) tea.Cmd {
	return func() tea.Msg {
		d, err := m.conv.ReadFile(path)
		if err != nil {
			return exchangeDoneMsg{op: "open", err: err}
		}
		return exchangeDoneMsg{op: "open", table: &d.Table, detail: fmt.Sprintf("✓ Loaded %s", filepath.Base(path))}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	default:
		s.WriteString(m.viewMatrix())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.View(keys)))

	return s.String()
}

func (m Model) viewMatrix() string {
	var s strings.Builder

	title := " ROUTING "
	if m.session != nil {
		title = fmt.Sprintf(" ROUTING · %s ", m.session.Address())
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")

	s.WriteString("        ")
	for d := 0; d < routing.Destinations; d++ {
		s.WriteString(fmt.Sprintf("%3s", routing.DestinationName(d)))
	}
	s.WriteString("\n")

	for o := 0; o < routing.Outputs; o++ {
		s.WriteString(fmt.Sprintf("Out %d   ", o+1))
		for d := 0; d < routing.Destinations; d++ {
			cell := "  ·"
			style := cellStyle
			if m.table.Enabled(o, d) {
				cell = "  ■"
				style = onStyle
			}
			if o == m.row && d == m.col {
				style = cursorStyle
			}
			s.WriteString(style.Render(cell))
		}
		s.WriteString("\n")
	}

	switch {
	case m.state == StateBusy:
		s.WriteString(statusStyle.Render(fmt.Sprintf("%s %s...", m.spinner.View(), m.busy)))
	case m.err != nil:
		s.WriteString(statusStyle.Render(errorStyle.Render(fmt.Sprintf("✗ %s", m.err.Error()))))
	case m.status != "":
		s.WriteString(statusStyle.Render(m.status))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" OPEN DUMP "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to matrix"))

	return s.String()
}

func asciiLogo() string {
	logo := `
   __  __ ___ ____ ___    _        ___
  |  \/  |_ _|  _ \_ _|  / |      ( _ )
  | |\/| || || | | | |   | |_____ / _ \
  | |  | || || |_| | |   | |_____| (_) |
  |_|  |_|___|____/___|  |_|      \___/
`
	return lipgloss.NewStyle().Foreground(acidGreen).Render(logo)
}

// Run starts the TUI application
func Run(opts ...Option) error {
	p := tea.NewProgram(New(opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
