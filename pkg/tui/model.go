// Package tui is an interactive terminal front end for a search session.
// It forwards edits to a controller.Controller and renders the snapshots
// the controller publishes.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rubiojr/resdir/pkg/controller"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
)

type field int

const (
	fieldQuery field = iota
	fieldCategory
	fieldLocation
	fieldCount
)

var fieldLabels = [fieldCount]string{"Search", "Category", "Location"}

var sortCycle = []intent.SortBy{intent.SortRelevance, intent.SortName, intent.SortCreatedAt}

type stateMsg controller.State

type closedMsg struct{}

// Model is the bubbletea model of the browser.
type Model struct {
	ctrl       *controller.Controller
	history    *controller.MemoryHistory
	categories map[int64]string
	states     <-chan controller.State
	stop       func()

	input  textinput.Model
	focus  field
	state  controller.State
	cursor int
	width  int
	help   bool
	styles styles
}

// New builds a model driving ctrl. categories is used to show category
// names and may be empty.
func New(ctrl *controller.Controller, history *controller.MemoryHistory, categories []core.Category) *Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "type to search"
	ti.CharLimit = 200
	ti.Focus()

	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	states, stop := ctrl.Subscribe()
	m := &Model{
		ctrl:       ctrl,
		history:    history,
		categories: names,
		states:     states,
		stop:       stop,
		input:      ti,
		state:      ctrl.State(),
		styles:     defaultStyles(),
	}
	m.syncInput()
	return m
}

// Link returns the shareable query string of the current session.
func (m *Model) Link() string {
	return m.state.Link
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForState(m.states))
}

func waitForState(ch <-chan controller.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-14, 10)
		return m, nil

	case stateMsg:
		m.state = controller.State(msg)
		if m.cursor >= len(m.state.Results) {
			m.cursor = max(len(m.state.Results)-1, 0)
		}
		return m, waitForState(m.states)

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.apply(m.input.Value())
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.stop()
		return tea.Quit, true
	case "f1":
		m.help = !m.help
	case "tab":
		m.focus = (m.focus + 1) % fieldCount
		m.syncInput()
	case "shift+tab":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		m.syncInput()
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down":
		if m.cursor < len(m.state.Results)-1 {
			m.cursor++
		}
	case "pgdown", "ctrl+n":
		if m.state.Intent.Page < m.state.TotalPages {
			m.state = m.ctrl.UpdatePage(m.state.Intent.Page + 1)
			m.cursor = 0
		}
	case "pgup", "ctrl+p":
		if m.state.Intent.Page > 1 {
			m.state = m.ctrl.UpdatePage(m.state.Intent.Page - 1)
			m.cursor = 0
		}
	case "ctrl+s":
		m.state = m.ctrl.UpdateSort(nextSort(m.state.Intent.SortBy), m.state.Intent.SortOrder)
	case "ctrl+o":
		order := intent.Asc
		if m.state.Intent.SortOrder == intent.Asc {
			order = intent.Desc
		}
		m.state = m.ctrl.UpdateSort(m.state.Intent.SortBy, order)
	case "ctrl+x":
		m.state = m.ctrl.ClearFilters()
		m.syncInput()
	case "ctrl+l":
		m.state = m.ctrl.ClearAll()
		m.syncInput()
	case "ctrl+r":
		m.state = m.ctrl.Refresh()
	case "ctrl+b", "alt+left":
		m.navigate(m.history.Back)
	case "ctrl+f", "alt+right":
		m.navigate(m.history.Forward)
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) navigate(move func() (string, bool)) {
	if m.history == nil {
		return
	}
	if link, ok := move(); ok {
		m.state = m.ctrl.Navigate(link)
		m.cursor = 0
		m.syncInput()
	}
}

// apply forwards the focused field's text to the controller.
func (m *Model) apply(value string) {
	switch m.focus {
	case fieldQuery:
		m.state = m.ctrl.UpdateQuery(value)
	case fieldCategory:
		m.state = m.ctrl.UpdateFilters(controller.FilterPatch{Category: controller.List(value)})
	case fieldLocation:
		m.state = m.ctrl.UpdateFilters(controller.FilterPatch{Location: controller.Text(value)})
	}
	m.cursor = 0
}

// syncInput loads the focused field's value from the intent. It is only
// called when the field changes or the intent is replaced, so that
// normalization never rewrites what the user is typing.
func (m *Model) syncInput() {
	f := m.state.Intent.Filters
	switch m.focus {
	case fieldQuery:
		m.input.SetValue(m.state.Intent.Query)
	case fieldCategory:
		m.input.SetValue(strings.Join(f.Category, ","))
	case fieldLocation:
		m.input.SetValue(f.Location)
	}
	m.input.CursorEnd()
}

func nextSort(current intent.SortBy) intent.SortBy {
	for i, s := range sortCycle {
		if s == current {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return intent.SortRelevance
}

func (m *Model) View() string {
	var b strings.Builder
	st := m.styles
	in := m.state.Intent

	b.WriteString(st.Title.Render("Resource directory"))
	b.WriteString("\n")

	for f := fieldQuery; f < fieldCount; f++ {
		if f == m.focus {
			b.WriteString(st.Active.Render(fieldLabels[f]))
			b.WriteString(m.input.View())
		} else {
			b.WriteString(st.Label.Render(fieldLabels[f]))
			b.WriteString(m.fieldValue(f))
		}
		b.WriteString("\n")
	}
	if len(in.Filters.Services) > 0 || len(in.Filters.Population) > 0 {
		b.WriteString(st.Dim.Render(fmt.Sprintf("services: %s  population: %s",
			strings.Join(in.Filters.Services, ", "), strings.Join(in.Filters.Population, ", "))))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if len(m.state.Results) == 0 && !m.state.IsLoading {
		b.WriteString(st.Dim.Render("No resources match."))
		b.WriteString("\n")
	}
	for i, r := range m.state.Results {
		name := st.Name
		marker := "  "
		if i == m.cursor {
			name = st.Selected
			marker = "> "
		}
		b.WriteString(marker + name.Render(r.Name))
		if c, ok := m.categories[r.CategoryID]; ok {
			b.WriteString(st.Dim.Render("  [" + c + "]"))
		}
		b.WriteString("\n")
		if detail := resourceDetail(r); detail != "" {
			b.WriteString(st.Detail.Render(detail))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(st.Dim.Render("link: ?" + m.state.Link))
	b.WriteString("\n")
	if m.help {
		b.WriteString(m.helpView())
	} else {
		b.WriteString(st.Dim.Render("F1 help • Esc quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) fieldValue(f field) string {
	switch f {
	case fieldQuery:
		return m.state.Intent.Query
	case fieldCategory:
		return strings.Join(m.state.Intent.Filters.Category, ", ")
	default:
		return m.state.Intent.Filters.Location
	}
}

func (m *Model) statusLine() string {
	in := m.state.Intent
	sort := fmt.Sprintf("sorted by %s (%s)", Label(string(in.SortBy)), in.SortOrder)
	if m.state.IsLoading {
		return m.styles.Dim.Render("Searching… " + sort)
	}
	pages := max(m.state.TotalPages, 1)
	return fmt.Sprintf("%d results • page %d/%d • %s", m.state.TotalCount, in.Page, pages, sort)
}

func resourceDetail(r core.Resource) string {
	var parts []string
	if r.Address != "" {
		parts = append(parts, r.Address)
	}
	if len(r.ServicesOffered) > 0 {
		parts = append(parts, strings.Join(r.ServicesOffered, ", "))
	}
	if r.Phone != "" {
		parts = append(parts, r.Phone)
	}
	return strings.Join(parts, " · ")
}

func (m *Model) helpView() string {
	keys := [][2]string{
		{"Tab/Shift+Tab", "switch field"},
		{"↑/↓", "select result"},
		{"PgDn/PgUp", "next/previous page"},
		{"Ctrl+S", "cycle sort"},
		{"Ctrl+O", "toggle order"},
		{"Ctrl+X", "clear filters"},
		{"Ctrl+L", "clear everything"},
		{"Ctrl+B/Ctrl+F", "back/forward"},
		{"Ctrl+R", "search now"},
		{"Esc", "quit"},
	}
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("  %s  %s\n", m.styles.Key.Render(fmt.Sprintf("%-14s", k[0])), k[1]))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Run starts the browser and blocks until the user quits. It returns the
// session's final link.
func Run(ctrl *controller.Controller, history *controller.MemoryHistory, categories []core.Category, opts ...tea.ProgramOption) (string, error) {
	m := New(ctrl, history, categories)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return "", fmt.Errorf("running browser: %w", err)
	}
	return final.(*Model).Link(), nil
}
