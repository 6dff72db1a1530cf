package outlook

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/nhle/o365mail/internal/ews"
	"github.com/nhle/o365mail/internal/model"
)

// copyBufferSize is the chunk size used when streaming attachments to disk.
const copyBufferSize = 1024

// AttachmentInfo describes an attachment of a fetched message.
type AttachmentInfo struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
	Inline      bool
}

// MailboxItem wraps a single fetched message.
type MailboxItem struct {
	ID          string
	Subject     string
	From        string
	To          []string
	Cc          []string
	Body        string
	ReceivedAt  time.Time
	IsRead      bool
	Attachments []AttachmentInfo

	// SavedFiles lists every path written by SaveAttachments, in order.
	SavedFiles []string

	raw     ews.Message
	session *Session
}

// NewMailboxItem wraps raw and extracts its metadata. Received times are
// presented in the session mailbox time zone.
func NewMailboxItem(s *Session, raw ews.Message) *MailboxItem {
	item := &MailboxItem{
		raw:     raw,
		session: s,
	}
	item.extractMetadata()
	return item
}

func (it *MailboxItem) extractMetadata() {
	it.ID = it.raw.ItemID.ID
	it.Subject = it.raw.Subject
	it.From = it.raw.From
	it.To = append([]string{}, it.raw.To...)
	it.Cc = append([]string{}, it.raw.Cc...)
	it.Body = extractBody(it.raw.Body, it.raw.BodyType)
	it.IsRead = it.raw.IsRead
	it.ReceivedAt = it.raw.DateTimeReceived

	if mb, err := it.session.Mailbox(); err == nil && !it.ReceivedAt.IsZero() {
		if tz := mb.DefaultTimeZone(); tz != nil {
			it.ReceivedAt = it.ReceivedAt.In(tz)
		}
	}

	it.Attachments = make([]AttachmentInfo, 0, len(it.raw.Attachments))
	for _, a := range it.raw.Attachments {
		it.Attachments = append(it.Attachments, AttachmentInfo{
			ID:          a.ID,
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
			Inline:      a.IsInline,
		})
	}
}

// SaveAttachments writes the attachments whose name contains
// nameContains (all of them when empty) into dir and returns the paths
// written by this call. An existing file is never overwritten: the new
// file gets a _<n> suffix before its extension, n being the number of
// entries in dir plus one.
func (it *MailboxItem) SaveAttachments(
	ctx context.Context, dir string, nameContains string,
) ([]string, error) {
	mb, err := it.session.Mailbox()
	if err != nil {
		return nil, err
	}

	var saved []string
	for _, att := range it.Attachments {
		if nameContains != "" && !strings.Contains(att.Name, nameContains) {
			continue
		}

		path, err := it.saveAttachment(ctx, mb, dir, att)
		if err != nil {
			return saved, err
		}

		saved = append(saved, path)
		it.SavedFiles = append(it.SavedFiles, path)
		it.session.logger.Info("saved attachment", "path", path, "item", it.ID)

		if it.session.recorder != nil {
			err := it.session.recorder.RecordDownload(ctx, model.Download{
				ItemID:     it.ID,
				Subject:    it.Subject,
				Attachment: att.Name,
				Path:       path,
			})
			if err != nil {
				return saved, fmt.Errorf("recording download of %s: %w", att.Name, err)
			}
		}
	}

	return saved, nil
}

func (it *MailboxItem) saveAttachment(
	ctx context.Context, mb Mailbox, dir string, att AttachmentInfo,
) (string, error) {
	src, err := mb.OpenAttachment(ctx, att.ID)
	if err != nil {
		return "", fmt.Errorf("opening attachment %s: %w", att.Name, err)
	}
	defer src.Close()

	dst, path, err := createAvailable(it.session.fs, dir, att.Name)
	if err != nil {
		return "", err
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(dst, src, buf); err != nil {
		dst.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	return path, nil
}

// createAvailable creates the file chosen by availablePath. The file is
// opened exclusively, so a name taken in the meantime moves on to the
// next free one instead of being truncated.
func createAvailable(fs afero.Fs, dir, name string) (afero.File, string, error) {
	for {
		path, err := availablePath(fs, dir, name)
		if err != nil {
			return nil, "", err
		}

		f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, iofs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("creating %s: %w", path, err)
		}
		return f, path, nil
	}
}

// fallbackName is used for attachments without a usable file name.
const fallbackName = "attachment"

// fileName reduces an attachment name to a file name inside the target
// directory.
func fileName(name string) string {
	base := filepath.Base(name)
	switch base {
	case ".", "..", string(filepath.Separator):
		return fallbackName
	}
	return base
}

// availablePath returns dir/name, or a suffixed variant when that file
// already exists.
func availablePath(fs afero.Fs, dir, name string) (string, error) {
	name = fileName(name)
	path := filepath.Join(dir, name)

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", path, err)
	}
	if !exists {
		return path, nil
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := len(entries) + 1; ; n++ {
		candidate := filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

// MarkAsRead sets the read flag and persists it. Calling it again saves
// the same state.
func (it *MailboxItem) MarkAsRead(ctx context.Context) error {
	mb, err := it.session.Mailbox()
	if err != nil {
		return err
	}

	if err := mb.SetRead(ctx, it.raw.ItemID, true); err != nil {
		return fmt.Errorf("marking %s as read: %w", it.ID, err)
	}

	it.raw.IsRead = true
	it.IsRead = true
	return nil
}

// PlainText returns the text/plain part of the message MIME content,
// falling back to the body extracted from HTML paragraphs.
func (it *MailboxItem) PlainText(ctx context.Context) (string, error) {
	mb, err := it.session.Mailbox()
	if err != nil {
		return "", err
	}

	raw, err := mb.MimeContent(ctx, it.raw.ItemID)
	if err != nil {
		return "", fmt.Errorf("fetching MIME content of %s: %w", it.ID, err)
	}

	text, html := parseMIMEText(raw)
	switch {
	case text != "":
		return text, nil
	case html != "":
		return extractBody(html, ews.BodyTypeHTML), nil
	default:
		return it.Body, nil
	}
}
