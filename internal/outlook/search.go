package outlook

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nhle/o365mail/internal/ews"
)

// DefaultSearchLimit is used when SearchQuery.Limit is not positive.
const DefaultSearchLimit = 100

// Folder selects the mailbox folder a search runs in.
type Folder string

const (
	FolderInbox Folder = "inbox"
	FolderSent  Folder = "sent"
)

// ParseFolder maps "sent" to FolderSent and anything else to FolderInbox.
func ParseFolder(s string) Folder {
	if Folder(s) == FolderSent {
		return FolderSent
	}
	return FolderInbox
}

func (f Folder) distinguished() ews.DistinguishedFolder {
	if f == FolderSent {
		return ews.FolderSentItems
	}
	return ews.FolderInbox
}

// SearchQuery holds the filter criteria. Nil tri-state filters are not
// applied.
type SearchQuery struct {
	Folder          Folder
	SubjectContains string
	HasAttachments  *bool
	IsRead          *bool
	Limit           int
}

func (q SearchQuery) limit() int {
	if q.Limit <= 0 {
		return DefaultSearchLimit
	}
	return q.Limit
}

// Search runs a SearchQuery against the session mailbox.
type Search struct {
	session *Session
	query   SearchQuery
}

// NewSearch returns a Search for q. Nothing is queried until Run.
func NewSearch(s *Session, q SearchQuery) *Search {
	q.Folder = ParseFolder(string(q.Folder))
	return &Search{session: s, query: q}
}

// Query returns the normalized query.
func (s *Search) Query() SearchQuery {
	return s.query
}

// TimeZone returns the time zone of the authenticated mailbox.
func (s *Search) TimeZone() (*time.Location, error) {
	mb, err := s.session.Mailbox()
	if err != nil {
		return nil, err
	}
	return mb.DefaultTimeZone(), nil
}

// Run queries the folder and returns matches newest received first,
// truncated to the query limit.
func (s *Search) Run(ctx context.Context) ([]*MailboxItem, error) {
	mb, err := s.session.Mailbox()
	if err != nil {
		return nil, err
	}

	limit := s.query.limit()
	raw, err := mb.FindMessages(ctx, ews.FindQuery{
		Folder:          s.query.Folder.distinguished(),
		SubjectContains: s.query.SubjectContains,
		HasAttachments:  s.query.HasAttachments,
		IsRead:          s.query.IsRead,
		Limit:           limit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.query.Folder, err)
	}

	slices.SortStableFunc(raw, func(a, b ews.Message) int {
		return b.DateTimeReceived.Compare(a.DateTimeReceived)
	})
	if len(raw) > limit {
		raw = raw[:limit]
	}

	items := make([]*MailboxItem, 0, len(raw))
	for _, m := range raw {
		items = append(items, NewMailboxItem(s.session, m))
	}

	s.session.logger.Debug("search finished",
		"folder", s.query.Folder,
		"subject_contains", s.query.SubjectContains,
		"results", len(items),
	)
	return items, nil
}
