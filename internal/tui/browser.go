package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/eventctl/internal/authz"
	"github.com/felixgeelhaar/eventctl/internal/events"
	"github.com/felixgeelhaar/eventctl/internal/platform"
)

// EventSource is the part of the events service the browser needs.
type EventSource interface {
	List(ctx context.Context) ([]platform.Event, error)
	Delete(ctx context.Context, id int64) error
}

type browserKeys struct {
	Quit    key.Binding
	Search  key.Binding
	Reload  key.Binding
	Delete  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

var defaultBrowserKeys = browserKeys{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
	Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
}

type eventsLoadedMsg struct {
	events []platform.Event
	err    error
}

type eventDeletedMsg struct {
	id  int64
	err error
}

// Browser is the interactive events list: a table filtered by a title
// search, with delete when the session's role allows it.
type Browser struct {
	ctx      context.Context
	source   EventSource
	deletion authz.Decision

	all     []platform.Event
	visible []platform.Event

	table     table.Model
	search    textinput.Model
	searching bool
	confirm   *platform.Event

	loading  bool
	status   string
	err      error
	quitting bool

	keys   browserKeys
	styles Styles
}

// NewBrowser creates the browser. deletion is the gate's decision for the
// delete action; the browser never deletes when it is not an allow.
func NewBrowser(ctx context.Context, source EventSource, deletion authz.Decision, styles Styles) Browser {
	search := textinput.New()
	search.Placeholder = "search by title"
	search.Prompt = "/ "
	search.CharLimit = 128

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Title", Width: 28},
			{Title: "Date", Width: 17},
			{Title: "Location", Width: 20},
			{Title: "Going", Width: 6},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.SetStyles(tableStyles())

	return Browser{
		ctx:      ctx,
		source:   source,
		deletion: deletion,
		table:    t,
		search:   search,
		loading:  true,
		keys:     defaultBrowserKeys,
		styles:   styles,
	}
}

// Init loads the events (required by Bubble Tea)
func (m Browser) Init() tea.Cmd {
	return m.load()
}

func (m Browser) load() tea.Cmd {
	return func() tea.Msg {
		evs, err := m.source.List(m.ctx)
		return eventsLoadedMsg{events: evs, err: err}
	}
}

func (m Browser) remove(id int64) tea.Cmd {
	return func() tea.Msg {
		return eventDeletedMsg{id: id, err: m.source.Delete(m.ctx, id)}
	}
}

// Update handles messages (required by Bubble Tea)
func (m Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case eventsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.all = msg.events
			m.applyFilter()
		}
		return m, nil

	case eventDeletedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("deleted event %d", msg.id)
		m.loading = true
		return m, m.load()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Browser) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			id := m.confirm.ID
			m.confirm = nil
			return m, m.remove(id)
		case key.Matches(msg, m.keys.Cancel):
			m.confirm = nil
			m.status = "delete cancelled"
		}
		return m, nil
	}

	if m.searching {
		switch msg.Type {
		case tea.KeyEsc:
			m.search.SetValue("")
			fallthrough
		case tea.KeyEnter:
			m.searching = false
			m.search.Blur()
			m.table.Focus()
			m.applyFilter()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.table.Blur()
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Reload):
		m.loading = true
		m.status = ""
		return m, m.load()
	case key.Matches(msg, m.keys.Delete):
		if !m.deletion.Allowed() {
			m.status = fmt.Sprintf("delete not permitted: %s", m.deletion.Reason)
			return m, nil
		}
		if ev, ok := m.selected(); ok {
			m.confirm = &ev
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Browser) applyFilter() {
	m.visible = events.FilterByTitle(m.all, m.search.Value())
	rows := make([]table.Row, 0, len(m.visible))
	for _, ev := range m.visible {
		rows = append(rows, eventRow(ev))
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) || c < 0 {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m Browser) selected() (platform.Event, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return platform.Event{}, false
	}
	return m.visible[i], true
}

func eventRow(ev platform.Event) table.Row {
	return table.Row{
		strconv.FormatInt(ev.ID, 10),
		ev.Title,
		FormatEventDate(ev.EventDate),
		ev.Location,
		strconv.Itoa(ev.ParticipantsCount),
	}
}

// FormatEventDate renders an event date for tables; zero dates are blank.
func FormatEventDate(t platform.EventTime) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// View renders the browser (required by Bubble Tea)
func (m Browser) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Events"))
	b.WriteString("\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(m.styles.Error.Render(m.err.Error()))
	case m.loading && len(m.all) == 0:
		b.WriteString(m.styles.Muted.Render("Loading events..."))
	case len(m.visible) == 0:
		b.WriteString(m.styles.Muted.Render("No events found"))
	default:
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	if m.confirm != nil {
		b.WriteString(m.styles.Warning.Render(
			fmt.Sprintf("Delete event %d (%s)? y/n", m.confirm.ID, m.confirm.Title)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.styles.Muted.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(m.helpLine())
	return b.String()
}

func (m Browser) helpLine() string {
	bindings := []key.Binding{m.keys.Search, m.keys.Reload}
	if m.deletion.Allowed() {
		bindings = append(bindings, m.keys.Delete)
	}
	bindings = append(bindings, m.keys.Quit)

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, m.styles.Key.Render(h.Key)+" "+m.styles.KeyDesc.Render(h.Desc))
	}
	return m.styles.Help.Render(strings.Join(parts, "  "))
}

// RunBrowser runs the browser full screen until the user quits.
func RunBrowser(m Browser) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("events browser: %w", err)
	}
	return nil
}
