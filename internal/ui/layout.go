package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/o365mail/internal/theme"
)

// Layout holds the terminal dimensions of a full-screen view framed by a
// one-line header and a one-line status bar.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight returns the rows left between header and status bar.
func (l Layout) ContentHeight() int {
	if l.Height < 2 {
		return 0
	}
	return l.Height - 2
}

// RenderHeader renders the title on the left and the mailbox on the right.
func (l Layout) RenderHeader(title, mailbox string) string {
	return l.bar(theme.HeaderStyle, title, mailbox)
}

// RenderStatusBar renders the bottom bar with a status message and
// keyboard hints.
func (l Layout) RenderStatusBar(status, hints string) string {
	return l.bar(theme.StatusBarStyle, status, hints)
}

func (l Layout) bar(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := style.Render(right)

	gap := l.Width - lipgloss.Width(leftRendered) - lipgloss.Width(rightRendered)
	if gap < 0 {
		gap = 0
	}

	filler := style.Padding(0).Width(gap).Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}

// RenderWithFrame joins header, content and status bar vertically.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
