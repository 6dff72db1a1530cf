package outlook

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/o365mail/internal/ews"
)

// extractBody returns the plain text of a message body. HTML bodies
// yield the text of each <p> element followed by a newline; text bodies
// are returned as is. Parse failures yield "".
func extractBody(body string, bodyType ews.BodyType) string {
	if bodyType == ews.BodyTypeText {
		return body
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		sb.WriteString(p.Text())
		sb.WriteString("\n")
	})
	return sb.String()
}

// parseMIMEText parses a raw RFC 5322 message and returns its
// text/plain and text/html parts.
func parseMIMEText(raw []byte) (textBody string, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			// io.EOF or a malformed part; keep what was read so far.
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
