package ews

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "alice@example.com"
	testPassword = "secret"
	testShared   = "shared@example.com"
)

// fakeEWS is a minimal Exchange endpoint. It rejects anonymous requests
// the way Exchange Online does and answers each operation with a canned
// SOAP body.
type fakeEWS struct {
	mu        sync.Mutex
	requests  map[string][]string
	responses map[string]string
	status    map[string]int
}

func newFakeEWS() *fakeEWS {
	return &fakeEWS{
		requests:  make(map[string][]string),
		responses: make(map[string]string),
		status:    make(map[string]int),
	}
}

var operations = []string{
	"GetFolder", "FindItem", "GetItem", "CreateItem",
	"GetAttachment", "UpdateItem",
}

func (f *fakeEWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != testUser || pass != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	body := string(raw)

	op := ""
	for _, name := range operations {
		if strings.Contains(body, "<m:"+name+">") || strings.Contains(body, "<m:"+name+" ") {
			op = name
			break
		}
	}

	f.mu.Lock()
	f.requests[op] = append(f.requests[op], body)
	resp, hasResp := f.responses[op]
	status := f.status[op]
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if !hasResp {
		resp = successResponse(op)
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, envelope(resp))
}

func (f *fakeEWS) lastRequest(op string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[op]
	if len(reqs) == 0 {
		return ""
	}
	return reqs[len(reqs)-1]
}

func (f *fakeEWS) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[op])
}

func envelope(body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"` +
		` xmlns:m="` + nsMessages + `" xmlns:t="` + nsTypes + `">` +
		`<s:Body>` + body + `</s:Body></s:Envelope>`
}

func successResponse(op string) string {
	return `<m:` + op + `Response><m:ResponseMessages>` +
		`<m:` + op + `ResponseMessage ResponseClass="Success">` +
		`<m:ResponseCode>NoError</m:ResponseCode>` +
		`</m:` + op + `ResponseMessage></m:ResponseMessages></m:` + op + `Response>`
}

func dialFake(t *testing.T, f *fakeEWS) *Account {
	t.Helper()

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	acct, err := Dial(context.Background(), Config{
		Endpoint: srv.URL + "/EWS/Exchange.asmx",
		Username: testUser,
		Password: testPassword,
	}, testShared)
	require.NoError(t, err)
	return acct
}

func TestConfigEndpoint(t *testing.T) {
	assert.Equal(t,
		"https://outlook.office365.com/EWS/Exchange.asmx",
		Config{}.endpoint(),
	)
	assert.Equal(t,
		"https://mail.example.com/EWS/Exchange.asmx",
		Config{Server: "mail.example.com/"}.endpoint(),
	)
	assert.Equal(t, "http://x/ews", Config{Server: "ignored", Endpoint: "http://x/ews"}.endpoint())
}

func TestDialBindsDelegateMailbox(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	assert.Equal(t, testShared, acct.PrimaryAddress())
	assert.Equal(t, time.Local, acct.DefaultTimeZone())

	req := f.lastRequest("GetFolder")
	assert.Contains(t, req, `<t:RequestServerVersion Version="Exchange2013_SP1">`)
	assert.Contains(t, req, `<t:DistinguishedFolderId Id="msgfolderroot">`)
	assert.Contains(t, req, `<t:EmailAddress>shared@example.com</t:EmailAddress>`)
}

func TestDialDefaultsMailboxToUsername(t *testing.T) {
	f := newFakeEWS()
	srv := httptest.NewServer(f)
	defer srv.Close()

	acct, err := Dial(context.Background(), Config{
		Endpoint: srv.URL,
		Username: testUser,
		Password: testPassword,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, testUser, acct.PrimaryAddress())
}

func TestDialRejectsBadCredentials(t *testing.T) {
	f := newFakeEWS()
	srv := httptest.NewServer(f)
	defer srv.Close()

	_, err := Dial(context.Background(), Config{
		Endpoint: srv.URL,
		Username: testUser,
		Password: "wrong",
	}, testShared)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestDialReportsAccessDenied(t *testing.T) {
	f := newFakeEWS()
	f.responses["GetFolder"] = `<m:GetFolderResponse><m:ResponseMessages>` +
		`<m:GetFolderResponseMessage ResponseClass="Error">` +
		`<m:MessageText>The specified object was not found in the store.</m:MessageText>` +
		`<m:ResponseCode>ErrorNonExistentMailbox</m:ResponseCode>` +
		`</m:GetFolderResponseMessage></m:ResponseMessages></m:GetFolderResponse>`

	srv := httptest.NewServer(f)
	defer srv.Close()

	_, err := Dial(context.Background(), Config{
		Endpoint: srv.URL,
		Username: testUser,
		Password: testPassword,
	}, testShared)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, "ErrorNonExistentMailbox", respErr.Code)
}

func TestCallMapsSOAPFault(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	f.status["FindItem"] = http.StatusInternalServerError
	f.responses["FindItem"] = `<s:Fault><faultcode>a:ErrorSchemaValidation</faultcode>` +
		`<faultstring>The request failed schema validation.</faultstring>` +
		`<detail><e:ResponseCode xmlns:e="urn:err">ErrorSchemaValidation</e:ResponseCode></detail>` +
		`</s:Fault>`

	_, err := acct.FindMessages(context.Background(), FindQuery{})

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "ErrorSchemaValidation", fault.Detail.ResponseCode)
	assert.Contains(t, fault.Error(), "schema validation")
}

func TestFindMessagesBuildsQuery(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	f.responses["FindItem"] = `<m:FindItemResponse><m:ResponseMessages>` +
		`<m:FindItemResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode>` +
		`<m:RootFolder TotalItemsInView="2" IncludesLastItemInRange="true"><t:Items>` +
		`<t:Message><t:ItemId Id="AAA" ChangeKey="ck1"/></t:Message>` +
		`<t:Message><t:ItemId Id="BBB" ChangeKey="ck2"/></t:Message>` +
		`</t:Items></m:RootFolder></m:FindItemResponseMessage></m:ResponseMessages></m:FindItemResponse>`

	f.responses["GetItem"] = `<m:GetItemResponse><m:ResponseMessages>` +
		`<m:GetItemResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode><m:Items>` +
		`<t:Message><t:ItemId Id="AAA" ChangeKey="ck1"/><t:Subject>Monthly report</t:Subject>` +
		`<t:Body BodyType="HTML">&lt;p&gt;hello&lt;/p&gt;</t:Body>` +
		`<t:Attachments><t:FileAttachment><t:AttachmentId Id="ATT1"/><t:Name>report.xlsx</t:Name>` +
		`<t:ContentType>application/vnd.ms-excel</t:ContentType><t:Size>12</t:Size><t:IsInline>false</t:IsInline>` +
		`</t:FileAttachment></t:Attachments>` +
		`<t:DateTimeReceived>2024-03-02T10:00:00Z</t:DateTimeReceived><t:HasAttachments>true</t:HasAttachments>` +
		`<t:ToRecipients><t:Mailbox><t:Name>A</t:Name><t:EmailAddress>a@x.com</t:EmailAddress></t:Mailbox></t:ToRecipients>` +
		`<t:From><t:Mailbox><t:EmailAddress>boss@x.com</t:EmailAddress></t:Mailbox></t:From>` +
		`<t:IsRead>false</t:IsRead></t:Message>` +
		`<t:Message><t:ItemId Id="BBB" ChangeKey="ck2"/><t:Subject>Older report</t:Subject>` +
		`<t:Body BodyType="Text">plain</t:Body>` +
		`<t:DateTimeReceived>2024-03-01T10:00:00Z</t:DateTimeReceived>` +
		`<t:CcRecipients><t:Mailbox><t:EmailAddress>c@x.com</t:EmailAddress></t:Mailbox></t:CcRecipients>` +
		`<t:IsRead>true</t:IsRead></t:Message>` +
		`</m:Items></m:GetItemResponseMessage></m:ResponseMessages></m:GetItemResponse>`

	yes, no := true, false
	msgs, err := acct.FindMessages(context.Background(), FindQuery{
		Folder:          FolderSentItems,
		SubjectContains: "Report",
		HasAttachments:  &yes,
		IsRead:          &no,
		Limit:           5,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	find := f.lastRequest("FindItem")
	assert.Contains(t, find, `<m:IndexedPageItemView MaxEntriesReturned="5" Offset="0" BasePoint="Beginning">`)
	assert.Contains(t, find, `<t:Contains ContainmentMode="Substring" ContainmentComparison="IgnoreCase"><t:FieldURI FieldURI="item:Subject"></t:FieldURI><t:Constant Value="Report"></t:Constant></t:Contains>`)
	assert.Contains(t, find, `<t:FieldURI FieldURI="item:HasAttachments"></t:FieldURI><t:FieldURIOrConstant><t:Constant Value="true">`)
	assert.Contains(t, find, `<t:FieldURI FieldURI="message:IsRead"></t:FieldURI><t:FieldURIOrConstant><t:Constant Value="false">`)
	assert.Contains(t, find, `<t:FieldOrder Order="Descending"><t:FieldURI FieldURI="item:DateTimeReceived">`)
	assert.Contains(t, find, `<t:DistinguishedFolderId Id="sentitems">`)

	get := f.lastRequest("GetItem")
	assert.Contains(t, get, `<t:BaseShape>AllProperties</t:BaseShape>`)
	assert.Contains(t, get, `<t:ItemId Id="AAA" ChangeKey="ck1">`)

	first := msgs[0]
	assert.Equal(t, ItemID{ID: "AAA", ChangeKey: "ck1"}, first.ItemID)
	assert.Equal(t, "Monthly report", first.Subject)
	assert.Equal(t, "<p>hello</p>", first.Body)
	assert.Equal(t, BodyTypeHTML, first.BodyType)
	assert.Equal(t, []string{"a@x.com"}, first.To)
	assert.Nil(t, first.Cc)
	assert.Equal(t, "boss@x.com", first.From)
	assert.True(t, first.HasAttachments)
	assert.False(t, first.IsRead)
	assert.True(t, first.DateTimeReceived.Equal(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)))
	require.Len(t, first.Attachments, 1)
	assert.Equal(t, Attachment{
		ID:          "ATT1",
		Name:        "report.xlsx",
		ContentType: "application/vnd.ms-excel",
		Size:        12,
	}, first.Attachments[0])

	assert.Equal(t, []string{"c@x.com"}, msgs[1].Cc)
	assert.Equal(t, BodyTypeText, msgs[1].BodyType)
	assert.True(t, msgs[1].IsRead)
}

func TestFindMessagesIncludesMeetingMessages(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	f.responses["FindItem"] = `<m:FindItemResponse><m:ResponseMessages>` +
		`<m:FindItemResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode>` +
		`<m:RootFolder TotalItemsInView="3" IncludesLastItemInRange="true"><t:Items>` +
		`<t:MeetingRequest><t:ItemId Id="MTG" ChangeKey="ck1"/></t:MeetingRequest>` +
		`<t:Contact><t:ItemId Id="CONTACT" ChangeKey="ck2"/></t:Contact>` +
		`<t:Message><t:ItemId Id="MSG" ChangeKey="ck3"/></t:Message>` +
		`</t:Items></m:RootFolder></m:FindItemResponseMessage></m:ResponseMessages></m:FindItemResponse>`

	f.responses["GetItem"] = `<m:GetItemResponse><m:ResponseMessages>` +
		`<m:GetItemResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode><m:Items>` +
		`<t:MeetingRequest><t:ItemId Id="MTG" ChangeKey="ck1"/><t:Subject>Planning</t:Subject>` +
		`<t:DateTimeReceived>2024-03-02T10:00:00Z</t:DateTimeReceived></t:MeetingRequest>` +
		`<t:Message><t:ItemId Id="MSG" ChangeKey="ck3"/><t:Subject>Report</t:Subject>` +
		`<t:DateTimeReceived>2024-03-01T10:00:00Z</t:DateTimeReceived></t:Message>` +
		`</m:Items></m:GetItemResponseMessage></m:ResponseMessages></m:GetItemResponse>`

	msgs, err := acct.FindMessages(context.Background(), FindQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Planning", msgs[0].Subject)
	assert.Equal(t, "Report", msgs[1].Subject)

	get := f.lastRequest("GetItem")
	assert.Contains(t, get, `<t:ItemId Id="MTG" ChangeKey="ck1">`)
	assert.NotContains(t, get, "CONTACT")
}

func TestFindMessagesWithoutFilters(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	msgs, err := acct.FindMessages(context.Background(), FindQuery{})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	find := f.lastRequest("FindItem")
	assert.NotContains(t, find, "m:Restriction")
	assert.Contains(t, find, `MaxEntriesReturned="100"`)
	assert.Contains(t, find, `<t:DistinguishedFolderId Id="inbox">`)
	assert.Equal(t, 0, f.count("GetItem"))
}

func TestSendAndSave(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	err := acct.SendAndSave(context.Background(), Message{
		Subject:    "S",
		Body:       `<img src="cid:logo.png">`,
		BodyType:   BodyTypeHTML,
		Importance: "High",
		To:         []string{"a@x.com"},
		Bcc:        []string{"b@x.com"},
		Attachments: []Attachment{
			{Name: "notes.txt", Content: []byte("hi")},
			{Name: "logo.png", ContentID: "logo.png", IsInline: true, Content: []byte{0x89, 'P'}},
		},
	})
	require.NoError(t, err)

	req := f.lastRequest("CreateItem")
	assert.Contains(t, req, `<m:CreateItem MessageDisposition="SendAndSaveCopy">`)
	assert.Contains(t, req, `<m:SavedItemFolderId><t:DistinguishedFolderId Id="sentitems">`)
	assert.Contains(t, req, `<t:Subject>S</t:Subject>`)
	assert.Contains(t, req, `<t:Body BodyType="HTML">&lt;img src=&#34;cid:logo.png&#34;&gt;</t:Body>`)
	assert.Contains(t, req, `<t:Importance>High</t:Importance>`)
	assert.Contains(t, req, `<t:ToRecipients><t:Mailbox><t:EmailAddress>a@x.com</t:EmailAddress></t:Mailbox></t:ToRecipients>`)
	assert.NotContains(t, req, `<t:CcRecipients>`)
	assert.Contains(t, req, `<t:BccRecipients>`)
	assert.Contains(t, req, `<t:From><t:Mailbox><t:EmailAddress>shared@example.com</t:EmailAddress>`)
	assert.Contains(t, req, `<t:Name>notes.txt</t:Name><t:IsInline>false</t:IsInline><t:Content>`+
		base64.StdEncoding.EncodeToString([]byte("hi"))+`</t:Content>`)
	assert.Contains(t, req, `<t:Name>logo.png</t:Name><t:ContentId>logo.png</t:ContentId><t:IsInline>true</t:IsInline>`)
}

func TestSendAndSaveReportsResponseError(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	f.responses["CreateItem"] = `<m:CreateItemResponse><m:ResponseMessages>` +
		`<m:CreateItemResponseMessage ResponseClass="Error">` +
		`<m:MessageText>Access is denied.</m:MessageText><m:ResponseCode>ErrorAccessDenied</m:ResponseCode>` +
		`</m:CreateItemResponseMessage></m:ResponseMessages></m:CreateItemResponse>`

	err := acct.SendAndSave(context.Background(), Message{To: []string{"a@x.com"}})

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, "ErrorAccessDenied", respErr.Code)
}

func TestOpenAttachmentDecodesContent(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	content := strings.Repeat("0123456789", 300)
	f.responses["GetAttachment"] = `<m:GetAttachmentResponse><m:ResponseMessages>` +
		`<m:GetAttachmentResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode>` +
		`<m:Attachments><t:FileAttachment><t:AttachmentId Id="ATT1"/><t:Name>report.xlsx</t:Name>` +
		`<t:Content>` + base64.StdEncoding.EncodeToString([]byte(content)) + `</t:Content>` +
		`</t:FileAttachment></m:Attachments></m:GetAttachmentResponseMessage></m:ResponseMessages></m:GetAttachmentResponse>`

	rc, err := acct.OpenAttachment(context.Background(), "ATT1")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
	assert.Contains(t, f.lastRequest("GetAttachment"), `<t:AttachmentId Id="ATT1">`)
}

func TestSetRead(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	require.NoError(t, acct.SetRead(context.Background(), ItemID{ID: "AAA", ChangeKey: "ck"}, true))

	req := f.lastRequest("UpdateItem")
	assert.Contains(t, req, `MessageDisposition="SaveOnly" ConflictResolution="AlwaysOverwrite" SuppressReadReceipts="true"`)
	assert.Contains(t, req, `<t:ItemId Id="AAA" ChangeKey="ck">`)
	assert.Contains(t, req, `<t:FieldURI FieldURI="message:IsRead"></t:FieldURI><t:Message><t:IsRead>true</t:IsRead></t:Message>`)
}

func TestMimeContent(t *testing.T) {
	f := newFakeEWS()
	acct := dialFake(t, f)

	mime := "Subject: hi\r\nContent-Type: text/plain\r\n\r\nbody\r\n"
	f.responses["GetItem"] = `<m:GetItemResponse><m:ResponseMessages>` +
		`<m:GetItemResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode><m:Items>` +
		`<t:Message><t:MimeContent CharacterSet="UTF-8">` + base64.StdEncoding.EncodeToString([]byte(mime)) +
		`</t:MimeContent><t:ItemId Id="AAA"/></t:Message>` +
		`</m:Items></m:GetItemResponseMessage></m:ResponseMessages></m:GetItemResponse>`

	raw, err := acct.MimeContent(context.Background(), ItemID{ID: "AAA"})
	require.NoError(t, err)
	assert.Equal(t, mime, string(raw))
	assert.Contains(t, f.lastRequest("GetItem"), `<t:IncludeMimeContent>true</t:IncludeMimeContent>`)
}
