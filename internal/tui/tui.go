// Package tui provides a Bubble Tea terminal user interface for patent-downloader.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/patent-downloader/internal/app"
	"github.com/handiism/patent-downloader/internal/download"
	"github.com/handiism/patent-downloader/internal/export"
	"github.com/handiism/patent-downloader/internal/model"
	"github.com/handiism/patent-downloader/internal/tracker"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

const maxLogs = 10

// LogEntry is one line of the activity log.
type LogEntry struct {
	Message string
	Outcome tracker.Outcome
}

// byteCounter sums the bytes transferred for the loaded list.
type byteCounter struct {
	mu    sync.Mutex
	seen  map[string]int64
	total int64
}

func newByteCounter() *byteCounter {
	return &byteCounter{seen: make(map[string]int64)}
}

func (c *byteCounter) add(id model.Identifier, written int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += written - c.seen[id.Key()]
	c.seen[id.Key()] = written
}

func (c *byteCounter) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]int64)
	c.total = 0
}

func (c *byteCounter) megabytes() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.total) / 1024 / 1024
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	ctx       context.Context
	app       *app.App
	events    chan tea.Msg
	closed    chan struct{}
	closeOnce func()
	received  *byteCounter
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model

	state   app.State
	percent int
	logs    []LogEntry
	notice  string
	err     error

	width  int
	height int
}

// NewModel creates a TUI model driving a.
func NewModel(ctx context.Context, a *app.App) Model {
	ti := textinput.New()
	ti.Placeholder = "/path/to/patents.txt"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	events := make(chan tea.Msg, 64)
	closed := make(chan struct{})
	send := func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-closed:
		}
	}
	received := newByteCounter()
	a.OnStateChange(func(s app.State) { send(StateMsg{State: s}) })
	a.Subscribe(download.ObserverFuncs{
		Progress:     func(p int) { send(ProgressMsg{Percent: p}) },
		ItemComplete: func(rec tracker.Record) { send(ItemMsg{Record: rec}) },
		// Redrawn by the spinner tick, so no message per chunk.
		Transfer: func(id model.Identifier, written, _ int64) { received.add(id, written) },
	})

	return Model{
		ctx:       ctx,
		app:       a,
		events:    events,
		closed:    closed,
		closeOnce: sync.OnceFunc(func() { close(closed) }),
		received:  received,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		state:     a.State(),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

// Message types
type (
	// StateMsg is sent when the application state changes.
	StateMsg struct {
		State app.State
	}

	// ProgressMsg is sent when the run percentage changes.
	ProgressMsg struct {
		Percent int
	}

	// ItemMsg is sent when one identifier reaches its outcome.
	ItemMsg struct {
		Record tracker.Record
	}

	// ResultMsg carries the result of a user action.
	ResultMsg struct {
		Notice string
		Err    error
	}
)

// waitForEvent delivers the next application event as a message.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.closed:
			return nil
		}
	}
}

// Close stops forwarding application events. Runs still in flight no longer
// block on a UI that is gone.
func (m Model) Close() {
	m.closeOnce()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case StateMsg:
		m.state = msg.State
		if m.state == app.StateInitial || m.state == app.StateLoaded {
			m.received.reset()
		}
		if m.state == app.StateInitial {
			m.textInput.SetValue("")
			m.textInput.Focus()
		}
		if m.state == app.StateDownloading {
			m.percent = 0
			m.logs = nil
			m.notice = ""
		}
		cmds = append(cmds, m.waitForEvent())

	case ProgressMsg:
		m.percent = msg.Percent
		cmds = append(cmds, m.progress.SetPercent(float64(msg.Percent)/100), m.waitForEvent())

	case ItemMsg:
		m.logs = append(m.logs, LogEntry{Message: describe(msg.Record), Outcome: msg.Record.Outcome})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}
		cmds = append(cmds, m.waitForEvent())

	case ResultMsg:
		m.err = msg.Err
		m.notice = msg.Notice

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == app.StateInitial {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()
	if key == "ctrl+c" {
		m.app.Stop()
		return tea.Quit, true
	}

	if m.state == app.StateInitial {
		switch key {
		case "esc":
			return tea.Quit, true
		case "enter":
			if path := strings.TrimSpace(m.textInput.Value()); path != "" {
				m.err = nil
				return m.load(path), true
			}
		}
		return nil, false
	}

	m.err = nil
	switch key {
	case "d":
		if m.state == app.StateLoaded || m.state == app.StateStopped {
			return m.action(func() error { return m.app.Download(m.ctx) }), true
		}
	case "s":
		if m.state == app.StateDownloading {
			m.app.Stop()
			m.notice = "Stopping after the documents in flight..."
			return nil, true
		}
	case "r":
		if m.state == app.StateStopped {
			return m.action(func() error { return m.app.Resume(m.ctx) }), true
		}
	case "e":
		if m.state != app.StateDownloading {
			return m.exportAll(), true
		}
	case "x":
		if m.state != app.StateDownloading {
			return m.action(m.app.Reset), true
		}
	case "q", "esc":
		if m.state != app.StateDownloading {
			return tea.Quit, true
		}
	}
	return nil, true
}

func (m Model) load(path string) tea.Cmd {
	return func() tea.Msg {
		if err := m.app.LoadFile(m.ctx, path); err != nil {
			return ResultMsg{Err: err}
		}
		return ResultMsg{}
	}
}

func (m Model) action(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return ResultMsg{Err: fn()}
	}
}

func (m Model) exportAll() tea.Cmd {
	return func() tea.Msg {
		written, err := m.app.ExportDir(m.app.TargetDir(), export.Successful, export.Failed, export.All)
		if err != nil {
			return ResultMsg{Err: err}
		}
		return ResultMsg{Notice: fmt.Sprintf("Exported %d list(s) to %s", len(written), m.app.TargetDir())}
	}
}

func describe(rec tracker.Record) string {
	if rec.Outcome == tracker.Succeeded {
		return rec.ID.Display() + " " + export.Suffix(rec.Outcome)
	}
	return fmt.Sprintf("%s %s (%s)", rec.ID.Display(), export.Suffix(rec.Outcome), rec.ErrorKind)
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("Patent Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download patent documents from a list of identifiers"))
	b.WriteString("\n\n")

	switch m.state {
	case app.StateInitial:
		b.WriteString(m.viewInput())
	case app.StateLoaded:
		b.WriteString(m.viewLoaded())
	case app.StateDownloading:
		b.WriteString(m.viewDownloading())
	case app.StateStopped, app.StateFinished:
		b.WriteString(m.viewDone())
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(m.notice))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter the path of a patent list:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewLoaded() string {
	var b strings.Builder

	b.WriteString(successStyle.Render(fmt.Sprintf("Loaded %d patent(s) from %s", len(m.app.All()), m.app.InputPath())))
	b.WriteString("\n")

	if errs := m.app.ParseErrors(); len(errs) > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Skipped %d invalid line(s):", len(errs))))
		b.WriteString("\n")
		for i, pe := range errs {
			if i == maxLogs {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(errs)-maxLogs)))
				b.WriteString("\n")
				break
			}
			b.WriteString(dimStyle.Render(fmt.Sprintf("  line %d: %q", pe.Line, pe.Raw)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download path: " + m.app.TargetDir()))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Downloading..."))
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n")
	b.WriteString(m.renderCounts())
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDone() string {
	var b strings.Builder

	heading := "Download Complete!"
	if m.state == app.StateStopped {
		heading = "Download Stopped"
	}
	counts := m.app.Counts()
	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"%s\n\n"+
			"Downloaded: %d\n"+
			"Failed: %d\n"+
			"Not processed: %d\n"+
			"Size: %.2f MB",
		heading,
		counts[tracker.Succeeded],
		counts[tracker.Failed],
		counts[tracker.Unprocessed],
		m.received.megabytes(),
	)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderCounts() string {
	counts := m.app.Counts()
	return infoStyle.Render(fmt.Sprintf(
		"Done: %d | Failed: %d | Remaining: %d | Downloaded: %.2f MB",
		counts[tracker.Succeeded],
		counts[tracker.Failed],
		counts[tracker.Unprocessed],
		m.received.megabytes(),
	))
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		style, prefix := dimStyle, "•"
		switch log.Outcome {
		case tracker.Succeeded:
			style, prefix = successStyle, "✓"
		case tracker.Failed:
			style, prefix = errorStyle, "✗"
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case app.StateInitial:
		return "enter: load • esc: quit"
	case app.StateLoaded:
		return "d: download • e: export • x: reset • q: quit"
	case app.StateDownloading:
		return "s: stop • ctrl+c: quit"
	case app.StateStopped:
		return "r: resume • d: download remaining • e: export • x: reset • q: quit"
	case app.StateFinished:
		return "e: export • x: reset • q: quit"
	}
	return ""
}

// Run starts the TUI application. Leaving it with ctrl+c stops the current
// run; callers should Wait on a before releasing its resources.
func Run(ctx context.Context, a *app.App) error {
	m := NewModel(ctx, a)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
