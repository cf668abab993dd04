package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	gmail "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func textPart(mimeType, data string) *gmail.MessagePart {
	return &gmail.MessagePart{
		MimeType: mimeType,
		Body:     &gmail.MessagePartBody{Data: b64(data)},
	}
}

func TestExtractPlainText(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
		{
			name:    "single text part",
			payload: textPart("text/plain", "hello world"),
			want:    "hello world",
		},
		{
			name: "multipart alternative prefers text plain",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					textPart("text/plain", "plain body"),
					textPart("text/html", "<p>html body</p>"),
				},
			},
			want: "plain body",
		},
		{
			name: "nested multipart inside mixed",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							textPart("text/plain", "nested plain"),
							textPart("text/html", "<p>nested html</p>"),
						},
					},
					{
						MimeType: "application/pdf",
						Body:     &gmail.MessagePartBody{AttachmentId: "att-1"},
					},
				},
			},
			want: "nested plain",
		},
		{
			name: "html only yields empty",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					textPart("text/html", "<p>only html</p>"),
				},
			},
			want: "",
		},
		{
			name: "text part without data is skipped",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain"},
					textPart("text/plain", "second part"),
				},
			},
			want: "second part",
		},
		{
			name: "unpadded base64 decodes",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body: &gmail.MessagePartBody{
					Data: base64.RawURLEncoding.EncodeToString([]byte("no padding")),
				},
			},
			want: "no padding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPlainText(tt.payload); got != tt.want {
				t.Errorf("ExtractPlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummaryFromMessage(t *testing.T) {
	msg := &gmail.Message{
		Id:       "msg-1",
		ThreadId: "thread-1",
		Snippet:  "snippet text",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Quarterly report"},
				{Name: "From", Value: "alice@example.com"},
				{Name: "To", Value: "bob@example.com"},
				{Name: "Date", Value: "Mon, 2 Feb 2026 10:00:00 +0100"},
			},
		},
	}

	got := summaryFromMessage(msg)

	if got.ID != "msg-1" || got.ThreadID != "thread-1" {
		t.Errorf("identifiers not carried: %+v", got)
	}
	if got.Subject != "Quarterly report" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.From != "alice@example.com" || got.To != "bob@example.com" {
		t.Errorf("addresses not carried: %+v", got)
	}
	if got.BodyText != "" {
		t.Errorf("listing must not carry a body, got %q", got.BodyText)
	}
}

func TestSummaryFromMessageNoSubject(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg-2",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "carol@example.com"},
			},
		},
	}

	if got := summaryFromMessage(msg); got.Subject != "(no subject)" {
		t.Errorf("Subject = %q, want (no subject)", got.Subject)
	}
}

func TestDetailFromMessage(t *testing.T) {
	msg := &gmail.Message{
		Id:       "msg-3",
		ThreadId: "thread-3",
		LabelIds: []string{"UNREAD", "INBOX"},
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Invoice"},
			},
			Body: &gmail.MessagePartBody{Data: b64("please pay by friday")},
		},
	}

	got := detailFromMessage(msg)

	if got.BodyText != "please pay by friday" {
		t.Errorf("BodyText = %q", got.BodyText)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "UNREAD" {
		t.Errorf("Labels = %v", got.Labels)
	}
}

func TestEncodeRFC2047(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ascii passes through", "Hello World", "Hello World"},
		{"empty passes through", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encodeRFC2047(tt.input); got != tt.want {
				t.Errorf("encodeRFC2047(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("umlauts are encoded", func(t *testing.T) {
		got := encodeRFC2047("Rückfrage zum Vertrag")
		if !strings.HasPrefix(got, "=?UTF-8?") {
			t.Errorf("encodeRFC2047() = %q, want RFC 2047 encoded word", got)
		}
	})
}

func TestBuildDraftMIME(t *testing.T) {
	raw := buildDraftMIME("bob@example.com", "Re: Invoice", "On it.")

	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw message is not base64url: %v", err)
	}
	msg := string(decoded)

	for _, want := range []string{
		"To: bob@example.com\r\n",
		"Subject: Re: Invoice\r\n",
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n",
		"MIME-Version: 1.0\r\n",
		"\r\n\r\nOn it.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("MIME message missing %q:\n%s", want, msg)
		}
	}
}
