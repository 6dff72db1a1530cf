package outlook

import (
	"context"
	"io"
	"time"

	"github.com/nhle/o365mail/internal/ews"
)

// Mailbox is the authenticated mailbox handle. *ews.Account implements it.
type Mailbox interface {
	PrimaryAddress() string
	DefaultTimeZone() *time.Location
	SendAndSave(ctx context.Context, msg ews.Message) error
	FindMessages(ctx context.Context, q ews.FindQuery) ([]ews.Message, error)
	OpenAttachment(ctx context.Context, id string) (io.ReadCloser, error)
	SetRead(ctx context.Context, id ews.ItemID, read bool) error
	MimeContent(ctx context.Context, id ews.ItemID) ([]byte, error)
}

var _ Mailbox = (*ews.Account)(nil)
