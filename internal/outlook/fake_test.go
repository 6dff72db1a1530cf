package outlook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/nhle/o365mail/internal/ews"
	"github.com/nhle/o365mail/internal/model"
)

// fakeMailbox is an in-memory Mailbox.
type fakeMailbox struct {
	address string
	tz      *time.Location

	sent    []ews.Message
	sendErr error

	messages []ews.Message
	queries  []ews.FindQuery
	findErr  error

	attachments map[string][]byte
	mime        map[string][]byte

	readCalls []ews.ItemID
	readState map[string]bool
}

func newFakeMailbox(address string) *fakeMailbox {
	return &fakeMailbox{
		address:     address,
		tz:          time.UTC,
		attachments: make(map[string][]byte),
		mime:        make(map[string][]byte),
		readState:   make(map[string]bool),
	}
}

func (f *fakeMailbox) PrimaryAddress() string          { return f.address }
func (f *fakeMailbox) DefaultTimeZone() *time.Location { return f.tz }

func (f *fakeMailbox) SendAndSave(_ context.Context, msg ews.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailbox) FindMessages(_ context.Context, q ews.FindQuery) ([]ews.Message, error) {
	f.queries = append(f.queries, q)
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]ews.Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeMailbox) OpenAttachment(_ context.Context, id string) (io.ReadCloser, error) {
	content, ok := f.attachments[id]
	if !ok {
		return nil, fmt.Errorf("attachment %s not found", id)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeMailbox) SetRead(_ context.Context, id ews.ItemID, read bool) error {
	f.readCalls = append(f.readCalls, id)
	f.readState[id.ID] = read
	return nil
}

func (f *fakeMailbox) MimeContent(_ context.Context, id ews.ItemID) ([]byte, error) {
	raw, ok := f.mime[id.ID]
	if !ok {
		return nil, fmt.Errorf("item %s not found", id.ID)
	}
	return raw, nil
}

// fakeRecorder collects ledger entries.
type fakeRecorder struct {
	downloads []model.Download
}

func (r *fakeRecorder) RecordDownload(_ context.Context, d model.Download) error {
	r.downloads = append(r.downloads, d)
	return nil
}

// newTestSession returns an authenticated session backed by mb and an
// in-memory filesystem.
func newTestSession(t *testing.T, mb *fakeMailbox, opts ...Option) (*Session, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	all := append([]Option{
		WithFs(fs),
		WithDialer(func(context.Context, ews.Config, string) (Mailbox, error) {
			return mb, nil
		}),
	}, opts...)

	s := NewSession(Credentials{
		Username: "alice@example.com",
		Password: "secret",
		Email:    mb.address,
	}, all...)
	require.NoError(t, s.Authenticate(context.Background()))

	return s, fs
}

func boolPtr(b bool) *bool { return &b }
