package gmail

import (
	"encoding/base64"
	"mime"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// Summary is the lightweight listing shape. The body is intentionally
// empty: listings only carry metadata, the body comes with the detail
// fetch.
type Summary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	To       string `json:"to"`
	Date     string `json:"date"`
	BodyText string `json:"body_text"`
}

// Detail is the full message shape returned for a single email.
type Detail struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	Snippet  string   `json:"snippet"`
	Subject  string   `json:"subject"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Date     string   `json:"date"`
	BodyText string   `json:"body_text"`
	Labels   []string `json:"labels"`
}

// noSubject is the placeholder shown when a message has no Subject header.
const noSubject = "(no subject)"

// headerMap collects payload headers keyed by lowercased name.
func headerMap(payload *gmail.MessagePart) map[string]string {
	m := make(map[string]string)
	if payload == nil {
		return m
	}
	for _, h := range payload.Headers {
		m[strings.ToLower(h.Name)] = h.Value
	}
	return m
}

func summaryFromMessage(msg *gmail.Message) Summary {
	h := headerMap(msg.Payload)

	subject := h["subject"]
	if subject == "" {
		subject = noSubject
	}

	return Summary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Subject:  subject,
		From:     h["from"],
		To:       h["to"],
		Date:     h["date"],
	}
}

func detailFromMessage(msg *gmail.Message) *Detail {
	h := headerMap(msg.Payload)

	subject := h["subject"]
	if subject == "" {
		subject = noSubject
	}

	return &Detail{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Subject:  subject,
		From:     h["from"],
		To:       h["to"],
		Date:     h["date"],
		BodyText: ExtractPlainText(msg.Payload),
		Labels:   msg.LabelIds,
	}
}

// ExtractPlainText finds the text/plain body of a message payload.
// Nested multiparts are searched depth-first before sibling leaves, so a
// multipart/alternative wrapped inside multipart/mixed still yields its
// plain-text variant. Returns "" when no text/plain part carries data.
func ExtractPlainText(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	for _, part := range payload.Parts {
		if len(part.Parts) > 0 {
			if t := ExtractPlainText(part); t != "" {
				return t
			}
		}
		if part.MimeType == "text/plain" {
			if t := decodeBody(part); t != "" {
				return t
			}
		}
	}

	// Single-part message.
	if payload.MimeType == "text/plain" {
		return decodeBody(payload)
	}

	return ""
}

func decodeBody(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		// Some senders pad, some don't.
		decoded, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// encodeRFC2047 encodes a header value per RFC 2047 when it contains
// non-ASCII characters (like German umlauts). ASCII-only values pass
// through unchanged.
func encodeRFC2047(s string) string {
	needsEncoding := false
	for _, r := range s {
		if r > 127 {
			needsEncoding = true
			break
		}
	}
	if !needsEncoding {
		return s
	}
	return mime.BEncoding.Encode("UTF-8", s)
}

// buildDraftMIME assembles a text/plain RFC 2822 message and returns it
// base64url-encoded for the Drafts.Create raw field.
func buildDraftMIME(to, subject, body string) string {
	var b strings.Builder

	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")

	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")

	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}
