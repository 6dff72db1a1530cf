package results

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/o365mail/internal/keys"
	"github.com/nhle/o365mail/internal/outlook"
	"github.com/nhle/o365mail/internal/theme"
	"github.com/nhle/o365mail/internal/ui"
)

// MarkedReadMsg is sent after a message was flagged as read.
type MarkedReadMsg struct {
	ID  string
	Err error
}

// SavedMsg is sent after the attachments of a message were written.
type SavedMsg struct {
	ID    string
	Paths []string
	Err   error
}

// BodyLoadedMsg carries the plain text of the opened message.
type BodyLoadedMsg struct {
	ID   string
	Text string
}

// Options configure the browser.
type Options struct {
	// Context bounds the mailbox calls made by the browser. Defaults to
	// context.Background.
	Context context.Context

	Mailbox    string
	Folder     string
	SaveDir    string
	SaveFilter string
}

// Model is a full-screen browser over search results.
type Model struct {
	list     list.Model
	viewport viewport.Model
	help     help.Model
	keys     *keys.KeyMap
	layout   ui.Layout
	opts     Options

	// busy holds the IDs of messages with a mark or save in flight.
	// Only Update touches it.
	busy map[string]bool

	showDetail bool
	status     string
	statusErr  bool
}

// New creates a browser over items, newest first as returned by a search.
func New(items []*outlook.MailboxItem, k *keys.KeyMap, opts Options) Model {
	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = MessageItem{Item: it, Read: it.IsRead}
	}

	l := list.New(listItems, ItemDelegate{}, 80, 20)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	h := help.New()
	h.Styles.ShortDesc = theme.HelpStyle
	h.Styles.FullDesc = theme.HelpStyle

	return Model{
		list:     l,
		viewport: viewport.New(80, 20),
		help:     h,
		keys:     k,
		layout:   ui.NewLayout(80, 22),
		opts:     opts,
		busy:     make(map[string]bool),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case MarkedReadMsg:
		delete(m.busy, msg.ID)
		if msg.Err != nil {
			m.setError(msg.Err)
		} else {
			m.markListed(msg.ID)
			m.setStatus("marked as read")
		}
		return m, nil

	case SavedMsg:
		delete(m.busy, msg.ID)
		switch {
		case msg.Err != nil:
			m.setError(msg.Err)
		case len(msg.Paths) == 0:
			m.setStatus("no matching attachments")
		default:
			m.setStatus("saved " + strings.Join(msg.Paths, ", "))
		}
		return m, nil

	case BodyLoadedMsg:
		m.viewport.SetContent(msg.Text)
		m.viewport.GotoTop()
		m.showDetail = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.showDetail = false
		return m, nil
	}

	item := m.selected()
	if item != nil {
		switch {
		case key.Matches(msg, m.keys.Select):
			return m, loadBody(m.ctx(), item)
		case key.Matches(msg, m.keys.MarkRead), key.Matches(msg, m.keys.Save):
			if m.busy[item.ID] {
				m.setStatus("still working on this message")
				return m, nil
			}
			m.busy[item.ID] = true
			if key.Matches(msg, m.keys.MarkRead) {
				return m, markRead(m.ctx(), item)
			}
			return m, saveAttachments(m.ctx(), item, m.opts.SaveDir, m.opts.SaveFilter)
		}
	}

	var cmd tea.Cmd
	if m.showDetail {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

// selected returns the focused message, or nil for an empty list.
func (m Model) selected() *outlook.MailboxItem {
	mi, ok := m.list.SelectedItem().(MessageItem)
	if !ok {
		return nil
	}
	return mi.Item
}

// markListed shows the message with the given ID as read.
func (m *Model) markListed(id string) {
	for i, li := range m.list.Items() {
		mi, ok := li.(MessageItem)
		if ok && mi.Item.ID == id {
			mi.Read = true
			m.list.SetItem(i, mi)
			return
		}
	}
}

func (m Model) ctx() context.Context {
	if m.opts.Context != nil {
		return m.opts.Context
	}
	return context.Background()
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

// View implements tea.Model.
func (m Model) View() string {
	header := m.layout.RenderHeader(
		fmt.Sprintf("o365mail  %s (%d)", m.opts.Folder, len(m.list.Items())),
		m.opts.Mailbox,
	)

	var content string
	switch {
	case len(m.list.Items()) == 0:
		content = lipgloss.NewStyle().
			Width(m.layout.Width).
			Height(m.layout.ContentHeight()).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No messages matched.")
	case m.showDetail:
		content = theme.DetailPanelStyle.Render(m.viewport.View())
	default:
		content = m.list.View()
	}

	status := m.status
	switch {
	case status == "":
	case m.statusErr:
		status = theme.ErrorStyle.Render(status)
	default:
		status = theme.SuccessStyle.Render(status)
	}

	return m.layout.RenderWithFrame(
		header,
		content,
		m.layout.RenderStatusBar(status, m.help.View(m.keys)),
	)
}

// SetSize updates the browser dimensions.
func (m *Model) SetSize(width, height int) {
	m.layout = ui.NewLayout(width, height)
	m.list.SetSize(width, m.layout.ContentHeight())
	m.viewport.Width = width - 6
	m.viewport.Height = m.layout.ContentHeight() - 4
	m.help.Width = width
}

// The commands below run off the Update goroutine. The list renders from
// MessageItem snapshots, and busy keeps two writers off the same message.

func loadBody(ctx context.Context, item *outlook.MailboxItem) tea.Cmd {
	return func() tea.Msg {
		text, err := item.PlainText(ctx)
		if err != nil {
			text = item.Body
		}
		return BodyLoadedMsg{ID: item.ID, Text: text}
	}
}

func markRead(ctx context.Context, item *outlook.MailboxItem) tea.Cmd {
	return func() tea.Msg {
		err := item.MarkAsRead(ctx)
		return MarkedReadMsg{ID: item.ID, Err: err}
	}
}

func saveAttachments(ctx context.Context, item *outlook.MailboxItem, dir, filter string) tea.Cmd {
	return func() tea.Msg {
		paths, err := item.SaveAttachments(ctx, dir, filter)
		return SavedMsg{ID: item.ID, Paths: paths, Err: err}
	}
}
