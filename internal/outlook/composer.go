package outlook

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nhle/o365mail/internal/ews"
)

// Importance is the priority flag of an outbound message.
type Importance string

const (
	ImportanceHigh   Importance = "High"
	ImportanceNormal Importance = "Normal"
	ImportanceLow    Importance = "Low"
)

// ParseImportance returns the matching Importance. Unrecognized values,
// including differently cased ones, fall back to ImportanceNormal.
func ParseImportance(s string) Importance {
	switch Importance(s) {
	case ImportanceHigh, ImportanceNormal, ImportanceLow:
		return Importance(s)
	default:
		return ImportanceNormal
	}
}

// Body is the content of an outbound message.
type Body struct {
	Content string
	HTML    bool
}

// TextBody returns a plain-text body.
func TextBody(s string) Body { return Body{Content: s} }

// HTMLBody returns an HTML body. Inline attachments are referenced with
// cid:<file base name>.
func HTMLBody(s string) Body { return Body{Content: s, HTML: true} }

// Attachment is a file bound to an outbound message.
type Attachment struct {
	Name      string
	ContentID string
	Inline    bool
	Content   []byte
}

// Draft is the caller input for Compose. Importance is parsed leniently.
type Draft struct {
	To         []string
	Cc         []string
	Bcc        []string
	Subject    string
	Body       Body
	Importance string
}

// OutboundMessage is a composed message. It is sent at most once.
type OutboundMessage struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        Body
	Importance  Importance
	Attachments []Attachment

	sent bool
}

// Sent reports whether the message has been sent.
func (m *OutboundMessage) Sent() bool {
	return m.sent
}

// Composer builds and sends messages from the session mailbox.
type Composer struct {
	session *Session
}

// NewComposer returns a Composer bound to s.
func NewComposer(s *Session) *Composer {
	return &Composer{session: s}
}

// Compose validates d and builds an OutboundMessage. At least one of
// To, Cc and Bcc must be non-empty.
func (c *Composer) Compose(d Draft) (*OutboundMessage, error) {
	if len(d.To) == 0 && len(d.Cc) == 0 && len(d.Bcc) == 0 {
		return nil, &ValidationError{Message: "no recipients"}
	}

	return &OutboundMessage{
		To:         append([]string{}, d.To...),
		Cc:         append([]string{}, d.Cc...),
		Bcc:        append([]string{}, d.Bcc...),
		Subject:    d.Subject,
		Body:       d.Body,
		Importance: ParseImportance(d.Importance),
	}, nil
}

// Attach reads every file completely and binds it to msg under its base
// name. Inline images get a content id equal to their base name. The
// first unreadable path aborts the call; attachments bound before it
// stay on the message.
func (c *Composer) Attach(msg *OutboundMessage, files, inline []string) error {
	if msg.sent {
		return ErrAlreadySent
	}

	for _, path := range files {
		content, err := afero.ReadFile(c.session.fs, path)
		if err != nil {
			return fmt.Errorf("reading attachment %s: %w", path, err)
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Name:    filepath.Base(path),
			Content: content,
		})
	}

	for _, path := range inline {
		content, err := afero.ReadFile(c.session.fs, path)
		if err != nil {
			return fmt.Errorf("reading inline attachment %s: %w", path, err)
		}
		name := filepath.Base(path)
		msg.Attachments = append(msg.Attachments, Attachment{
			Name:      name,
			ContentID: name,
			Inline:    true,
			Content:   content,
		})
	}

	return nil
}

// Send delivers msg and saves a copy in the mailbox's Sent Items.
func (c *Composer) Send(ctx context.Context, msg *OutboundMessage) error {
	if msg.sent {
		return ErrAlreadySent
	}

	mb, err := c.session.Mailbox()
	if err != nil {
		return err
	}

	if err := mb.SendAndSave(ctx, toEWSMessage(msg)); err != nil {
		return fmt.Errorf("sending %q: %w", msg.Subject, err)
	}

	msg.sent = true
	c.session.logger.Info("message sent",
		"mailbox", mb.PrimaryAddress(),
		"subject", msg.Subject,
		"recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc),
		"attachments", len(msg.Attachments),
	)
	return nil
}

func toEWSMessage(msg *OutboundMessage) ews.Message {
	out := ews.Message{
		Subject:    msg.Subject,
		Body:       msg.Body.Content,
		BodyType:   ews.BodyTypeText,
		Importance: string(msg.Importance),
		To:         msg.To,
		Cc:         msg.Cc,
		Bcc:        msg.Bcc,
	}
	if msg.Body.HTML {
		out.BodyType = ews.BodyTypeHTML
	}

	for _, a := range msg.Attachments {
		out.Attachments = append(out.Attachments, ews.Attachment{
			Name:      a.Name,
			ContentID: a.ContentID,
			IsInline:  a.Inline,
			Size:      int64(len(a.Content)),
			Content:   a.Content,
		})
	}
	return out
}
