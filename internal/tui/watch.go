package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thinkaloud/thinkaloud/internal/diff"
	"github.com/thinkaloud/thinkaloud/internal/pipeline"
)

// FetchFunc returns the daemon's current session.
type FetchFunc func() (pipeline.Session, error)

type tickMsg time.Time

type sessionMsg struct {
	session pipeline.Session
	err     error
}

// watchModel polls the daemon and shows the text, the live transcript and
// the change made by the latest correction.
type watchModel struct {
	fetch    FetchFunc
	interval time.Duration

	session pipeline.Session
	err     error
	width   int
	loaded  bool
}

func newWatchModel(fetch FetchFunc, interval time.Duration) watchModel {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return watchModel{fetch: fetch, interval: interval}
}

// Watch runs the live session view until the user quits.
func Watch(fetch FetchFunc, interval time.Duration) error {
	_, err := tea.NewProgram(newWatchModel(fetch, interval), tea.WithAltScreen()).Run()
	return err
}

func (m watchModel) Init() tea.Cmd {
	return m.poll()
}

func (m watchModel) poll() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		s, err := fetch()
		return sessionMsg{session: s, err: err}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, m.poll()
	case sessionMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.session = msg.session
		}
		return m, m.tick()
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(StyleHeader.Render("thinkaloud"))
	b.WriteString("\n")

	switch {
	case !m.loaded:
		b.WriteString(StyleMuted.Render("Connecting to daemon..."))
	case m.err != nil:
		b.WriteString(StyleError.Render("Daemon unreachable: " + m.err.Error()))
	default:
		b.WriteString(RenderStatus(m.session))
		if m.session.PreviousText != "" {
			segs := diff.Compute(m.session.PreviousText, m.session.CurrentText)
			b.WriteString("\n\n")
			b.WriteString(StyleLabel.Render("Last change "))
			b.WriteString(RenderDiffSummary(segs))
			b.WriteString("\n")
			b.WriteString(RenderDiff(segs, true))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(StyleSubtle.Render("q to quit"))
	return b.String()
}
