package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/teemow/inboxdraft/internal/instrumentation"
	"github.com/teemow/inboxdraft/internal/logging"
)

// PlaceholderNoAPIKey is returned for every request when no completions
// API key is configured. The endpoint stays usable without a key so the
// rest of the app can be exercised.
const PlaceholderNoAPIKey = "[completions API key not configured]"

// DefaultModel is used when the configuration does not name one.
const DefaultModel = "gpt-4o-mini"

// Generator produces email summaries and reply drafts through a
// chat-completions API.
//
// Generator methods never fail the request: a provider error comes back
// as a descriptive string so the caller can show it in place of the
// generated text.
type Generator struct {
	client  openai.Client
	model   string
	enabled bool
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewGenerator creates a generator against the given completions
// endpoint. An empty apiKey disables generation: every call returns the
// placeholder.
func NewGenerator(baseURL, apiKey, model string, logger *slog.Logger, metrics *instrumentation.Metrics) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = DefaultModel
	}

	g := &Generator{
		model:   model,
		enabled: apiKey != "",
		logger:  logging.WithService(logger, "reply"),
		metrics: metrics,
	}
	if !g.enabled {
		g.logger.Warn("no completions API key configured, generation disabled")
		return g
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	g.client = openai.NewClient(opts...)
	return g
}

// Summarize condenses an email into a few bullet points, including the
// sender's main request and any deadlines.
func (g *Generator) Summarize(ctx context.Context, emailText string) string {
	prompt := "Summarize the following email in 3-4 concise bullet points, " +
		"include the sender's main request and any deadlines:\n\n" +
		emailText
	return g.complete(ctx, "summarize", prompt, "No summary generated.")
}

// GenerateReply drafts a short professional reply to the email,
// optionally conditioned on a previously produced summary.
func (g *Generator) GenerateReply(ctx context.Context, emailText, summary string) string {
	if summary == "" {
		summary = "N/A"
	}
	prompt := fmt.Sprintf(
		"Write a concise, professional reply to the email below. "+
			"Be helpful, keep it under 150 words, and use plain language. "+
			"If a summary is provided, consider it.\n\n"+
			"Summary (optional): %s\n\n"+
			"Email:\n%s\n\n"+
			"Reply:",
		summary, emailText)
	return g.complete(ctx, "generate_reply", prompt, "No reply generated.")
}

func (g *Generator) complete(ctx context.Context, operation, prompt, emptyFallback string) string {
	if !g.enabled {
		return PlaceholderNoAPIKey
	}

	start := time.Now()
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		g.metrics.RecordReplyGeneration(ctx, instrumentation.StatusError, time.Since(start))
		g.logger.ErrorContext(ctx, "completion failed",
			logging.Operation(operation), logging.Err(err))
		return fmt.Sprintf("[completions error: %v]", err)
	}
	g.metrics.RecordReplyGeneration(ctx, instrumentation.StatusSuccess, time.Since(start))

	if len(completion.Choices) == 0 {
		return emptyFallback
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return emptyFallback
	}
	return text
}
