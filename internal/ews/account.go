package ews

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultLimit is the page size used when a FindQuery has no limit.
const DefaultLimit = 100

// Account is a mailbox bound with delegate access. All operations target
// the delegate mailbox address, never the authenticating user's own.
type Account struct {
	client  *Client
	address string
	tz      *time.Location
}

// Dial creates a client for cfg and binds it to the mailbox at address.
// It performs one GetFolder round trip so that bad credentials or a
// missing delegate permission fail here rather than on first use.
func Dial(ctx context.Context, cfg Config, address string) (*Account, error) {
	if address == "" {
		address = cfg.Username
	}

	a := &Account{
		client:  NewClient(cfg),
		address: address,
		tz:      time.Local,
	}

	if err := a.ping(ctx); err != nil {
		return nil, fmt.Errorf("binding mailbox %s: %w", address, err)
	}

	return a, nil
}

// PrimaryAddress returns the SMTP address of the bound mailbox.
func (a *Account) PrimaryAddress() string {
	return a.address
}

// DefaultTimeZone returns the zone used to present received times.
func (a *Account) DefaultTimeZone() *time.Location {
	return a.tz
}

func (a *Account) folder(id DistinguishedFolder) xmlDistinguishedFolderID {
	return xmlDistinguishedFolderID{
		ID:      string(id),
		Mailbox: &xmlMailbox{EmailAddress: a.address},
	}
}

func (a *Account) ping(ctx context.Context) error {
	req := getFolderRequest{
		FolderIDs: []xmlDistinguishedFolderID{a.folder(FolderRoot)},
	}
	req.FolderShape.BaseShape = "IdOnly"

	var resp getFolderResponse
	if err := a.client.Call(ctx, req, &resp); err != nil {
		return err
	}
	for _, m := range resp.Messages {
		if err := m.err(); err != nil {
			return err
		}
	}
	return nil
}

// FindMessages runs q against the folder, newest received first, and
// returns fully loaded messages.
func (a *Account) FindMessages(ctx context.Context, q FindQuery) ([]Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	folder := q.Folder
	if folder == "" {
		folder = FolderInbox
	}

	req := findItemRequest{
		Traversal: "Shallow",
		ItemShape: xmlItemShape{BaseShape: "IdOnly"},
		View: indexedPageItemView{
			MaxEntriesReturned: limit,
			Offset:             0,
			BasePoint:          "Beginning",
		},
		Restriction: buildRestriction(q),
		SortOrder: []fieldOrder{{
			Order:    "Descending",
			FieldURI: xmlFieldURI{FieldURI: fieldDateTimeReceived},
		}},
		ParentFolders: []xmlDistinguishedFolderID{a.folder(folder)},
	}

	var resp findItemResponse
	if err := a.client.Call(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("finding items in %s: %w", folder, err)
	}

	var ids []xmlItemID
	for _, m := range resp.Messages {
		if err := m.err(); err != nil {
			return nil, fmt.Errorf("finding items in %s: %w", folder, err)
		}
		for _, item := range m.RootFolder.Items.Items {
			if !messageKinds[item.XMLName.Local] {
				continue
			}
			ids = append(ids, xmlItemID{
				ID:        item.ItemID.ID,
				ChangeKey: item.ItemID.ChangeKey,
			})
		}
	}

	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	return a.getItems(ctx, ids)
}

// getItems loads the given items with all properties and an HTML body.
func (a *Account) getItems(ctx context.Context, ids []xmlItemID) ([]Message, error) {
	req := getItemRequest{
		ItemShape: xmlItemShape{
			BaseShape: "AllProperties",
			BodyType:  string(BodyTypeHTML),
		},
		ItemIDs: ids,
	}

	var resp getItemResponse
	if err := a.client.Call(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("getting %d items: %w", len(ids), err)
	}

	messages := make([]Message, 0, len(ids))
	for _, m := range resp.Messages {
		if err := m.err(); err != nil {
			return nil, fmt.Errorf("getting items: %w", err)
		}
		for _, x := range m.Items.Items {
			messages = append(messages, messageFromXML(x, a.tz))
		}
	}

	return messages, nil
}

// MimeContent returns the raw RFC 5322 content of the item.
func (a *Account) MimeContent(ctx context.Context, id ItemID) ([]byte, error) {
	req := getItemRequest{
		ItemShape: xmlItemShape{BaseShape: "IdOnly", IncludeMimeContent: true},
		ItemIDs:   []xmlItemID{{ID: id.ID, ChangeKey: id.ChangeKey}},
	}

	var resp getItemResponse
	if err := a.client.Call(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("getting MIME content: %w", err)
	}

	for _, m := range resp.Messages {
		if err := m.err(); err != nil {
			return nil, fmt.Errorf("getting MIME content: %w", err)
		}
		for _, x := range m.Items.Items {
			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(x.MimeContent))
			if err != nil {
				return nil, fmt.Errorf("decoding MIME content: %w", err)
			}
			return raw, nil
		}
	}

	return nil, fmt.Errorf("item %s not found", id.ID)
}

// SendAndSave sends msg from the bound mailbox and saves a copy in its
// Sent Items folder.
func (a *Account) SendAndSave(ctx context.Context, msg Message) error {
	bodyType := msg.BodyType
	if bodyType == "" {
		bodyType = BodyTypeText
	}

	out := outboundMessage{
		Subject:    msg.Subject,
		Body:       outboundBody{BodyType: string(bodyType), Content: msg.Body},
		Importance: msg.Importance,
		To:         newRecipientList(msg.To),
		Cc:         newRecipientList(msg.Cc),
		Bcc:        newRecipientList(msg.Bcc),
		From:       &outboundFrom{Mailbox: xmlMailbox{EmailAddress: a.address}},
	}

	if len(msg.Attachments) > 0 {
		out.Attachments = &outboundAttachments{}
		for _, att := range msg.Attachments {
			out.Attachments.Files = append(out.Attachments.Files, outboundAttachment{
				Name:      att.Name,
				ContentID: att.ContentID,
				IsInline:  att.IsInline,
				Content:   base64.StdEncoding.EncodeToString(att.Content),
			})
		}
	}

	req := createItemRequest{
		MessageDisposition: "SendAndSaveCopy",
		SavedItemFolder:    a.folder(FolderSentItems),
		Items:              []outboundMessage{out},
	}

	var resp createItemResponse
	if err := a.client.Call(ctx, req, &resp); err != nil {
		return fmt.Errorf("sending message %q: %w", msg.Subject, err)
	}
	for _, m := range resp.Messages {
		if err := m.err(); err != nil {
			return fmt.Errorf("sending message %q: %w", msg.Subject, err)
		}
	}

	return nil
}

// OpenAttachment returns a reader over the decoded attachment content.
func (a *Account) OpenAttachment(ctx context.Context, id string) (io.ReadCloser, error) {
	req := getAttachmentRequest{
		AttachmentIDs: []attachmentIDRef{{ID: id}},
	}

	var resp getAttachmentResponse
	if err := a.client.Call(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}

	for _, m := range resp.Messages {
		if err := m.err(); err != nil {
			return nil, fmt.Errorf("getting attachment: %w", err)
		}
		for _, f := range m.Files {
			decoder := base64.NewDecoder(
				base64.StdEncoding,
				strings.NewReader(strings.TrimSpace(f.Content)),
			)
			return io.NopCloser(decoder), nil
		}
	}

	return nil, errors.New("getting attachment: no file attachment in response")
}

// SetRead persists the read flag of the item.
func (a *Account) SetRead(ctx context.Context, id ItemID, read bool) error {
	change := itemChange{
		ItemID: xmlItemID{ID: id.ID, ChangeKey: id.ChangeKey},
		Updates: []setItemField{{
			FieldURI: xmlFieldURI{FieldURI: fieldIsRead},
		}},
	}
	change.Updates[0].Message.IsRead = read

	req := updateItemRequest{
		MessageDisposition:   "SaveOnly",
		ConflictResolution:   "AlwaysOverwrite",
		SuppressReadReceipts: true,
		Changes:              []itemChange{change},
	}

	var resp updateItemResponse
	if err := a.client.Call(ctx, req, &resp); err != nil {
		return fmt.Errorf("updating read flag: %w", err)
	}
	for _, m := range resp.Messages {
		if err := m.err(); err != nil {
			return fmt.Errorf("updating read flag: %w", err)
		}
	}

	return nil
}

// messageFromXML converts a decoded t:Message into a Message.
func messageFromXML(x xmlMessage, tz *time.Location) Message {
	msg := Message{
		ItemID:         ItemID{ID: x.ItemID.ID, ChangeKey: x.ItemID.ChangeKey},
		Subject:        x.Subject,
		Body:           x.Body.Content,
		BodyType:       BodyType(x.Body.BodyType),
		Importance:     x.Importance,
		IsRead:         x.IsRead,
		HasAttachments: x.HasAttachments,
		To:             addresses(x.ToRecipients),
		Cc:             addresses(x.CcRecipients),
		Bcc:            addresses(x.BccRecipients),
	}

	if x.From != nil {
		msg.From = x.From.EmailAddress
	}

	if x.DateTimeReceived != "" {
		if t, err := time.Parse(time.RFC3339, x.DateTimeReceived); err == nil {
			msg.DateTimeReceived = t.In(tz)
		}
	}

	for _, f := range x.Attachments.FileAttachments {
		msg.Attachments = append(msg.Attachments, Attachment{
			ID:          f.AttachmentID.ID,
			Name:        f.Name,
			ContentType: f.ContentType,
			ContentID:   f.ContentID,
			IsInline:    f.IsInline,
			Size:        f.Size,
		})
	}

	return msg
}

func addresses(boxes []mailboxAttrs) []string {
	if len(boxes) == 0 {
		return nil
	}
	out := make([]string, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, b.EmailAddress)
	}
	return out
}
