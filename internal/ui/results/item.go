package results

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/o365mail/internal/outlook"
	"github.com/nhle/o365mail/internal/theme"
)

// MessageItem wraps an outlook.MailboxItem so it can be used in a
// bubbles/list. Read is the read state shown in the list; the browser
// updates it once a mark-as-read call has returned.
type MessageItem struct {
	Item *outlook.MailboxItem
	Read bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string { return i.Item.Subject }

// Title returns the message subject.
func (i MessageItem) Title() string {
	if i.Item.Subject == "" {
		return "(no subject)"
	}
	return i.Item.Subject
}

// Description returns a short summary line for the list.
func (i MessageItem) Description() string {
	parts := []string{i.Item.From, receivedLabel(i.Item.ReceivedAt)}
	if n := len(i.Item.Attachments); n > 0 {
		parts = append(parts, fmt.Sprintf("%d attachment(s)", n))
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering messages.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message line: read marker, received time,
// sender, subject and attachment count.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}

	marker := "●"
	if mi.Read {
		marker = " "
	}

	badge := ""
	if n := len(mi.Item.Attachments); n > 0 {
		badge = theme.AttachmentBadgeStyle.Render(fmt.Sprintf(" [%d]", n))
	}

	line := fmt.Sprintf("%s %-16s %-24s %s",
		marker,
		receivedLabel(mi.Item.ReceivedAt),
		truncate(mi.Item.From, 24),
		mi.Title(),
	)
	if mi.Read {
		line = theme.DimmedStyle.Render(line)
	} else {
		line = theme.UnreadStyle.Render(line)
	}
	line += badge

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// receivedLabel formats a received time in its own location.
func receivedLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
