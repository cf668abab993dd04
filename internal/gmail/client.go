package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxdraft/internal/google"
	"github.com/teemow/inboxdraft/internal/instrumentation"
	"github.com/teemow/inboxdraft/internal/logging"
	"github.com/teemow/inboxdraft/internal/store"
)

// DefaultQuery selects the mail shown on the inbox view.
const DefaultQuery = "is:unread in:inbox"

// maxListResults caps how many messages a single listing fetches from
// the provider.
const maxListResults = 100

// requestInterval paces sequential metadata fetches inside a listing.
const requestInterval = 100 * time.Millisecond

var (
	// ErrNotAuthenticated means no usable credential exists for the owner.
	ErrNotAuthenticated = errors.New("no valid Gmail credential")
	// ErrNotFound means the message does not exist or is no longer
	// accessible.
	ErrNotFound = errors.New("message not found")
	// ErrDraftCreate means the provider rejected the draft.
	ErrDraftCreate = errors.New("failed to create draft")
)

// Service builds authenticated mailbox clients from stored credentials.
// The caches and the request pacer are shared across clients, so
// concurrent requests for the same owner stay within one quota budget.
type Service struct {
	conf    *oauth2.Config
	store   *store.Store
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	cache   *mailboxCache
	limiter *rate.Limiter
}

// NewService creates the mailbox service.
func NewService(conf *oauth2.Config, st *store.Store, logger *slog.Logger, metrics *instrumentation.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conf:    conf,
		store:   st,
		logger:  logging.WithService(logger, "gmail"),
		metrics: metrics,
		cache:   newMailboxCache(),
		limiter: rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// ClientFor returns a mailbox client for the owner's stored credential.
// An expired credential is refreshed and re-persisted before use. A
// missing credential or a failed refresh yields ErrNotAuthenticated.
func (s *Service) ClientFor(ctx context.Context, owner string) (*Client, error) {
	cred, err := s.store.Load(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil || (cred.Token == "" && cred.RefreshToken == "") {
		return nil, ErrNotAuthenticated
	}

	httpClient, err := google.HTTPClient(ctx, s.conf, cred, func(ctx context.Context, refreshed *store.Credential) error {
		if err := s.store.Save(ctx, owner, refreshed); err != nil {
			s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
			return err
		}
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
		s.logger.InfoContext(ctx, "refreshed credential persisted", logging.Owner(owner))
		return nil
	})
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
		s.logger.WarnContext(ctx, "credential unusable",
			logging.Owner(owner), logging.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		owner:   owner,
		cache:   s.cache,
		limiter: s.limiter,
		logger:  s.logger.With(logging.Owner(owner)),
		metrics: s.metrics,
	}, nil
}

// Client performs mailbox operations for one owner.
type Client struct {
	svc     *gmail.UsersService
	owner   string
	cache   *mailboxCache
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Profile returns the email address of the authenticated account.
func (c *Client) Profile(ctx context.Context) (string, error) {
	start := time.Now()
	profile, err := withRetry(ctx, func() (*gmail.Profile, error) {
		return c.svc.GetProfile("me").Context(ctx).Do()
	})
	c.record(ctx, "get_profile", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// ListUnread returns lightweight summaries for messages matching the
// query, newest first, at most limit entries. Results are cached by the
// exact (query, limit) pair; an empty result is cached too, just with a
// shorter TTL. Individual message fetches that fail are skipped.
func (c *Client) ListUnread(ctx context.Context, query string, limit int) ([]Summary, error) {
	if query == "" {
		query = DefaultQuery
	}
	if limit <= 0 || limit > maxListResults {
		limit = maxListResults
	}

	key := listKey(c.owner, query, limit)
	if cached, ok := c.cache.getList(key); ok {
		c.metrics.RecordCacheEvent(ctx, "list", instrumentation.CacheHit)
		return cached, nil
	}
	c.metrics.RecordCacheEvent(ctx, "list", instrumentation.CacheMiss)

	start := time.Now()
	res, err := withRetry(ctx, func() (*gmail.ListMessagesResponse, error) {
		return c.svc.Messages.List("me").
			Q(query).
			MaxResults(int64(limit)).
			Context(ctx).
			Do()
	})
	c.record(ctx, "list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	summaries := make([]Summary, 0, len(res.Messages))
	for _, m := range res.Messages {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		fetchStart := time.Now()
		full, err := withRetry(ctx, func() (*gmail.Message, error) {
			return c.svc.Messages.Get("me", m.Id).
				Format("metadata").
				MetadataHeaders("Subject", "From", "Date", "To").
				Context(ctx).
				Do()
		})
		c.record(ctx, "get_metadata", fetchStart, err)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping message",
				logging.MessageID(m.Id), logging.Err(err))
			continue
		}

		summaries = append(summaries, summaryFromMessage(full))
	}

	c.cache.setList(c.owner, key, summaries)
	return summaries, nil
}

// GetDetail returns the full message including its plain-text body and
// labels. Details are cached per message id.
func (c *Client) GetDetail(ctx context.Context, id string) (*Detail, error) {
	key := detailKey(c.owner, id)
	if cached, ok := c.cache.getDetail(key); ok {
		c.metrics.RecordCacheEvent(ctx, "detail", instrumentation.CacheHit)
		return cached, nil
	}
	c.metrics.RecordCacheEvent(ctx, "detail", instrumentation.CacheMiss)

	start := time.Now()
	msg, err := withRetry(ctx, func() (*gmail.Message, error) {
		return c.svc.Messages.Get("me", id).Format("full").Context(ctx).Do()
	})
	c.record(ctx, "get", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	detail := detailFromMessage(msg)
	c.cache.setDetail(key, detail)
	return detail, nil
}

// Exists reports whether the message is still reachable. Only a
// structured 404 counts as gone; transient failures report true so a
// flaky provider never hides mail.
func (c *Client) Exists(ctx context.Context, id string) bool {
	start := time.Now()
	_, err := withRetry(ctx, func() (*gmail.Message, error) {
		return c.svc.Messages.Get("me", id).
			Format("metadata").
			MetadataHeaders("Subject").
			Context(ctx).
			Do()
	})
	c.record(ctx, "exists", start, err)
	if err == nil {
		return true
	}
	if isNotFound(err) {
		return false
	}
	c.logger.WarnContext(ctx, "existence check inconclusive",
		logging.MessageID(id), logging.Err(err))
	return true
}

// MarkRead removes the UNREAD label and invalidates every cached entry
// referencing the message.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	start := time.Now()
	_, err := withRetry(ctx, func() (*gmail.Message, error) {
		return c.svc.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
	})
	c.record(ctx, "mark_read", start, err)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to mark message %s as read: %w", id, err)
	}

	c.cache.invalidateMessage(c.owner, id)
	c.logger.InfoContext(ctx, "marked message as read", logging.MessageID(id))
	return nil
}

// CreateDraft creates a plain-text draft and returns its id. On failure
// the id is empty and the error is tagged ErrDraftCreate.
func (c *Client) CreateDraft(ctx context.Context, to, subject, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("%w: recipient is required", ErrDraftCreate)
	}

	raw := buildDraftMIME(to, subject, body)

	start := time.Now()
	draft, err := withRetry(ctx, func() (*gmail.Draft, error) {
		return c.svc.Drafts.Create("me", &gmail.Draft{
			Message: &gmail.Message{Raw: raw},
		}).Context(ctx).Do()
	})
	c.record(ctx, "create_draft", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "draft creation failed", logging.Err(err))
		return "", fmt.Errorf("%w: %v", ErrDraftCreate, err)
	}

	c.logger.InfoContext(ctx, "created draft", slog.String("draft_id", draft.Id))
	return draft.Id, nil
}

func (c *Client) record(ctx context.Context, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGmailOperation(ctx, operation, status, time.Since(start))
}
