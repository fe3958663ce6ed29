package mail

import (
	"bytes"
	"io"
	"strings"

	gomail "github.com/emersion/go-message/mail"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// parseMIMEBody parses a raw RFC 5322 message using go-message and
// extracts the text/plain body, text/html body, and attachment
// metadata. A message that fails to parse is treated as plain text.
func parseMIMEBody(raw []byte) model.Body {
	reader := bytes.NewReader(raw)

	mr, err := gomail.CreateReader(reader)
	if err != nil {
		return model.Body{Text: string(raw)}
	}
	defer mr.Close()

	var body model.Body
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			content, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				body.Text = string(content)
			case strings.HasPrefix(contentType, "text/html"):
				body.HTML = string(content)
			}

		case *gomail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			content, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			body.Attachments = append(body.Attachments, model.Attachment{
				Filename: filename,
				MIMEType: contentType,
				Size:     int64(len(content)),
			})
		}
	}

	return body
}
