package ews

import (
	"encoding/xml"
	"fmt"
	"time"
)

const (
	nsSoap     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
	nsMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"
)

// DistinguishedFolder is a well-known EWS folder id.
type DistinguishedFolder string

const (
	FolderInbox     DistinguishedFolder = "inbox"
	FolderSentItems DistinguishedFolder = "sentitems"
	FolderRoot      DistinguishedFolder = "msgfolderroot"
)

// BodyType identifies the format of a message body.
type BodyType string

const (
	BodyTypeHTML BodyType = "HTML"
	BodyTypeText BodyType = "Text"
)

// ItemID identifies a mailbox item. ChangeKey may be empty.
type ItemID struct {
	ID        string
	ChangeKey string
}

// Message is the client-side view of an EWS message item, used both
// for items read from the server and for outbound messages.
type Message struct {
	ItemID           ItemID
	Subject          string
	Body             string
	BodyType         BodyType
	Importance       string
	From             string
	To               []string
	Cc               []string
	Bcc              []string
	DateTimeReceived time.Time
	IsRead           bool
	HasAttachments   bool
	Attachments      []Attachment
}

// Attachment describes a file attachment. Content is only populated
// for outbound attachments; inbound content is read with OpenAttachment.
type Attachment struct {
	ID          string
	Name        string
	ContentType string
	ContentID   string
	IsInline    bool
	Size        int64
	Content     []byte
}

// FindQuery selects messages in a folder. Nil filters are not applied.
type FindQuery struct {
	Folder          DistinguishedFolder
	SubjectContains string
	HasAttachments  *bool
	IsRead          *bool
	Limit           int
}

// Fault is a SOAP fault returned by the server.
type Fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail struct {
		ResponseCode string `xml:"ResponseCode"`
		Message      string `xml:"Message"`
	} `xml:"detail"`
}

func (f *Fault) Error() string {
	if f.Detail.ResponseCode != "" {
		return fmt.Sprintf("ews fault %s: %s", f.Detail.ResponseCode, f.String)
	}
	return fmt.Sprintf("ews fault %s: %s", f.Code, f.String)
}

// ResponseError is a per-message error (ResponseClass="Error").
type ResponseError struct {
	Code string
	Text string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("ews %s: %s", e.Code, e.Text)
}

// --- envelope ---

type requestEnvelope struct {
	XMLName    xml.Name      `xml:"soap:Envelope"`
	SoapNS     string        `xml:"xmlns:soap,attr"`
	TypesNS    string        `xml:"xmlns:t,attr"`
	MessagesNS string        `xml:"xmlns:m,attr"`
	Header     requestHeader `xml:"soap:Header"`
	Body       requestBody   `xml:"soap:Body"`
}

type requestHeader struct {
	Version requestServerVersion `xml:"t:RequestServerVersion"`
}

type requestServerVersion struct {
	Version string `xml:"Version,attr"`
}

type requestBody struct {
	Content interface{}
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault   *Fault `xml:"Fault"`
		Content []byte `xml:",innerxml"`
	} `xml:"Body"`
}

// responseMessage carries the status common to every response message.
type responseMessage struct {
	ResponseClass string `xml:"ResponseClass,attr"`
	MessageText   string `xml:"MessageText"`
	ResponseCode  string `xml:"ResponseCode"`
}

func (r responseMessage) err() error {
	if r.ResponseClass == "Error" {
		return &ResponseError{Code: r.ResponseCode, Text: r.MessageText}
	}
	return nil
}

// --- shared request elements ---

type xmlMailbox struct {
	EmailAddress string `xml:"t:EmailAddress"`
}

type xmlDistinguishedFolderID struct {
	ID      string      `xml:"Id,attr"`
	Mailbox *xmlMailbox `xml:"t:Mailbox,omitempty"`
}

type xmlItemID struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr,omitempty"`
}

type xmlFieldURI struct {
	FieldURI string `xml:"FieldURI,attr"`
}

type xmlItemShape struct {
	BaseShape          string `xml:"t:BaseShape"`
	IncludeMimeContent bool   `xml:"t:IncludeMimeContent,omitempty"`
	BodyType           string `xml:"t:BodyType,omitempty"`
}

// --- GetFolder ---

type getFolderRequest struct {
	XMLName     xml.Name `xml:"m:GetFolder"`
	FolderShape struct {
		BaseShape string `xml:"t:BaseShape"`
	} `xml:"m:FolderShape"`
	FolderIDs []xmlDistinguishedFolderID `xml:"m:FolderIds>t:DistinguishedFolderId"`
}

func (getFolderRequest) operation() string { return "GetFolder" }

type getFolderResponse struct {
	Messages []struct {
		responseMessage
		Folders struct {
			Folder []struct {
				FolderID struct {
					ID string `xml:"Id,attr"`
				} `xml:"FolderId"`
				DisplayName string `xml:"DisplayName"`
			} `xml:",any"`
		} `xml:"Folders"`
	} `xml:"ResponseMessages>GetFolderResponseMessage"`
}

// --- FindItem ---

type findItemRequest struct {
	XMLName       xml.Name                   `xml:"m:FindItem"`
	Traversal     string                     `xml:"Traversal,attr"`
	ItemShape     xmlItemShape               `xml:"m:ItemShape"`
	View          indexedPageItemView        `xml:"m:IndexedPageItemView"`
	Restriction   *restriction               `xml:"m:Restriction,omitempty"`
	SortOrder     []fieldOrder               `xml:"m:SortOrder>t:FieldOrder"`
	ParentFolders []xmlDistinguishedFolderID `xml:"m:ParentFolderIds>t:DistinguishedFolderId"`
}

func (findItemRequest) operation() string { return "FindItem" }

type indexedPageItemView struct {
	MaxEntriesReturned int    `xml:"MaxEntriesReturned,attr"`
	Offset             int    `xml:"Offset,attr"`
	BasePoint          string `xml:"BasePoint,attr"`
}

type fieldOrder struct {
	Order    string      `xml:"Order,attr"`
	FieldURI xmlFieldURI `xml:"t:FieldURI"`
}

type findItemResponse struct {
	Messages []struct {
		responseMessage
		RootFolder struct {
			TotalItemsInView        int  `xml:"TotalItemsInView,attr"`
			IncludesLastItemInRange bool `xml:"IncludesLastItemInRange,attr"`
			Items                   struct {
				Items []foundItem `xml:",any"`
			} `xml:"Items"`
		} `xml:"RootFolder"`
	} `xml:"ResponseMessages>FindItemResponseMessage"`
}

// foundItem is any item element of a FindItem result.
type foundItem struct {
	XMLName xml.Name
	ItemID  itemIDAttrs `xml:"ItemId"`
}

// messageKinds are the item elements read as messages. Meeting messages
// extend t:Message and land in the inbox next to plain mail.
var messageKinds = map[string]bool{
	"Message":             true,
	"MeetingRequest":      true,
	"MeetingResponse":     true,
	"MeetingCancellation": true,
}

type itemIDAttrs struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr"`
}

// --- GetItem ---

type getItemRequest struct {
	XMLName   xml.Name     `xml:"m:GetItem"`
	ItemShape xmlItemShape `xml:"m:ItemShape"`
	ItemIDs   []xmlItemID  `xml:"m:ItemIds>t:ItemId"`
}

func (getItemRequest) operation() string { return "GetItem" }

type getItemResponse struct {
	Messages []struct {
		responseMessage
		Items struct {
			Items []xmlMessage `xml:",any"`
		} `xml:"Items"`
	} `xml:"ResponseMessages>GetItemResponseMessage"`
}

// xmlMessage is the decoded form of a t:Message element or of one of
// the meeting messages derived from it.
type xmlMessage struct {
	ItemID      itemIDAttrs `xml:"ItemId"`
	MimeContent string      `xml:"MimeContent"`
	Subject     string      `xml:"Subject"`
	Body        struct {
		BodyType string `xml:"BodyType,attr"`
		Content  string `xml:",chardata"`
	} `xml:"Body"`
	Attachments struct {
		FileAttachments []struct {
			AttachmentID struct {
				ID string `xml:"Id,attr"`
			} `xml:"AttachmentId"`
			Name        string `xml:"Name"`
			ContentType string `xml:"ContentType"`
			ContentID   string `xml:"ContentId"`
			Size        int64  `xml:"Size"`
			IsInline    bool   `xml:"IsInline"`
		} `xml:"FileAttachment"`
	} `xml:"Attachments"`
	DateTimeReceived string         `xml:"DateTimeReceived"`
	Importance       string         `xml:"Importance"`
	HasAttachments   bool           `xml:"HasAttachments"`
	ToRecipients     []mailboxAttrs `xml:"ToRecipients>Mailbox"`
	CcRecipients     []mailboxAttrs `xml:"CcRecipients>Mailbox"`
	BccRecipients    []mailboxAttrs `xml:"BccRecipients>Mailbox"`
	From             *mailboxAttrs  `xml:"From>Mailbox"`
	IsRead           bool           `xml:"IsRead"`
}

type mailboxAttrs struct {
	Name         string `xml:"Name"`
	EmailAddress string `xml:"EmailAddress"`
}

// --- CreateItem ---

type createItemRequest struct {
	XMLName            xml.Name                 `xml:"m:CreateItem"`
	MessageDisposition string                   `xml:"MessageDisposition,attr"`
	SavedItemFolder    xmlDistinguishedFolderID `xml:"m:SavedItemFolderId>t:DistinguishedFolderId"`
	Items              []outboundMessage        `xml:"m:Items>t:Message"`
}

func (createItemRequest) operation() string { return "CreateItem" }

// outboundMessage keeps the element order required by the schema.
type outboundMessage struct {
	Subject     string               `xml:"t:Subject,omitempty"`
	Body        outboundBody         `xml:"t:Body"`
	Attachments *outboundAttachments `xml:"t:Attachments,omitempty"`
	Importance  string               `xml:"t:Importance,omitempty"`
	To          *recipientList       `xml:"t:ToRecipients,omitempty"`
	Cc          *recipientList       `xml:"t:CcRecipients,omitempty"`
	Bcc         *recipientList       `xml:"t:BccRecipients,omitempty"`
	From        *outboundFrom        `xml:"t:From,omitempty"`
}

type recipientList struct {
	Mailboxes []xmlMailbox `xml:"t:Mailbox"`
}

// newRecipientList returns nil for an empty list so the element is omitted.
func newRecipientList(addrs []string) *recipientList {
	if len(addrs) == 0 {
		return nil
	}
	l := &recipientList{Mailboxes: make([]xmlMailbox, 0, len(addrs))}
	for _, a := range addrs {
		l.Mailboxes = append(l.Mailboxes, xmlMailbox{EmailAddress: a})
	}
	return l
}

type outboundAttachments struct {
	Files []outboundAttachment `xml:"t:FileAttachment"`
}

type outboundBody struct {
	BodyType string `xml:"BodyType,attr"`
	Content  string `xml:",chardata"`
}

type outboundFrom struct {
	Mailbox xmlMailbox `xml:"t:Mailbox"`
}

type outboundAttachment struct {
	Name      string `xml:"t:Name"`
	ContentID string `xml:"t:ContentId,omitempty"`
	IsInline  bool   `xml:"t:IsInline"`
	Content   string `xml:"t:Content"`
}

type createItemResponse struct {
	Messages []responseMessage `xml:"ResponseMessages>CreateItemResponseMessage"`
}

// --- GetAttachment ---

type getAttachmentRequest struct {
	XMLName       xml.Name          `xml:"m:GetAttachment"`
	AttachmentIDs []attachmentIDRef `xml:"m:AttachmentIds>t:AttachmentId"`
}

type attachmentIDRef struct {
	ID string `xml:"Id,attr"`
}

func (getAttachmentRequest) operation() string { return "GetAttachment" }

type getAttachmentResponse struct {
	Messages []struct {
		responseMessage
		Files []struct {
			Name    string `xml:"Name"`
			Content string `xml:"Content"`
		} `xml:"Attachments>FileAttachment"`
	} `xml:"ResponseMessages>GetAttachmentResponseMessage"`
}

// --- UpdateItem ---

type updateItemRequest struct {
	XMLName              xml.Name     `xml:"m:UpdateItem"`
	MessageDisposition   string       `xml:"MessageDisposition,attr"`
	ConflictResolution   string       `xml:"ConflictResolution,attr"`
	SuppressReadReceipts bool         `xml:"SuppressReadReceipts,attr"`
	Changes              []itemChange `xml:"m:ItemChanges>t:ItemChange"`
}

func (updateItemRequest) operation() string { return "UpdateItem" }

type itemChange struct {
	ItemID  xmlItemID      `xml:"t:ItemId"`
	Updates []setItemField `xml:"t:Updates>t:SetItemField"`
}

type setItemField struct {
	FieldURI xmlFieldURI `xml:"t:FieldURI"`
	Message  struct {
		IsRead bool `xml:"t:IsRead"`
	} `xml:"t:Message"`
}

type updateItemResponse struct {
	Messages []responseMessage `xml:"ResponseMessages>UpdateItemResponseMessage"`
}
