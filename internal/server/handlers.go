package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxdraft/internal/gmail"
	"github.com/teemow/inboxdraft/internal/instrumentation"
	"github.com/teemow/inboxdraft/internal/logging"
	"github.com/teemow/inboxdraft/internal/reply"
	"github.com/teemow/inboxdraft/internal/store"
)

// Pagination bounds for the unread listing.
const (
	defaultPerPage = 10
	maxPerPage     = 50

	// listFetchLimit is how many summaries one listing pulls from the
	// mailbox before paginating in memory.
	listFetchLimit = 100
)

// Handlers carries the dependencies of the JSON API.
type Handlers struct {
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	sessions  *SessionManager
	oauthConf *oauth2.Config
	store     *store.Store
	mailbox   *gmail.Service
	generator *reply.Generator
}

// NewHandlers wires the JSON API handlers.
func NewHandlers(
	logger *slog.Logger,
	metrics *instrumentation.Metrics,
	sessions *SessionManager,
	oauthConf *oauth2.Config,
	st *store.Store,
	mailbox *gmail.Service,
	generator *reply.Generator,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		logger:    logging.WithService(logger, "server"),
		metrics:   metrics,
		sessions:  sessions,
		oauthConf: oauthConf,
		store:     st,
		mailbox:   mailbox,
		generator: generator,
	}
}

// clientForRequest builds a mailbox client for the anonymous owner
// slot. A missing or unusable credential writes a 401 envelope and
// returns nil.
func (h *Handlers) clientForRequest(w http.ResponseWriter, r *http.Request) *gmail.Client {
	owner := store.AnonymousOwner

	client, err := h.mailbox.ClientFor(r.Context(), owner)
	if err != nil {
		if errors.Is(err, gmail.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "Failed to authenticate")
			return nil
		}
		h.logger.ErrorContext(r.Context(), "mailbox client unavailable",
			logging.Owner(owner), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "mailbox unavailable")
		return nil
	}
	return client
}

// authStatusResponse reports whether a working Gmail credential exists.
type authStatusResponse struct {
	OK            bool   `json:"ok"`
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
}

// handleAuthStatus verifies the stored credential by fetching the Gmail
// profile. Any failure along the way reports unauthenticated rather
// than an error.
func (h *Handlers) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	owner := store.AnonymousOwner

	client, err := h.mailbox.ClientFor(r.Context(), owner)
	if err != nil {
		writeJSON(w, http.StatusOK, authStatusResponse{OK: true})
		return
	}

	email, err := client.Profile(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "profile check failed",
			logging.Owner(owner), logging.Err(err))
		writeJSON(w, http.StatusOK, authStatusResponse{OK: true})
		return
	}

	writeJSON(w, http.StatusOK, authStatusResponse{
		OK:            true,
		Authenticated: true,
		Email:         email,
	})
}

// unreadResponse is the paginated listing envelope.
type unreadResponse struct {
	OK          bool            `json:"ok"`
	Emails      []gmail.Summary `json:"emails"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
	PerPage     int             `json:"per_page,omitempty"`
	TotalEmails int             `json:"total_emails,omitempty"`
	HasNext     bool            `json:"has_next,omitempty"`
	HasPrevious bool            `json:"has_previous,omitempty"`
}

func (h *Handlers) handleUnreadEmails(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	client := h.clientForRequest(w, r)
	if client == nil {
		return
	}

	emails, err := client.ListUnread(r.Context(), gmail.DefaultQuery, listFetchLimit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "listing unread failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch unread emails")
		return
	}

	if len(emails) == 0 {
		writeJSON(w, http.StatusOK, unreadResponse{
			OK:          true,
			Emails:      []gmail.Summary{},
			TotalPages:  0,
			CurrentPage: 1,
		})
		return
	}

	pageEmails, page, totalPages := paginate(emails, page, perPage)

	writeJSON(w, http.StatusOK, unreadResponse{
		OK:          true,
		Emails:      pageEmails,
		TotalPages:  totalPages,
		CurrentPage: page,
		PerPage:     perPage,
		TotalEmails: len(emails),
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	})
}

// parsePagination reads page and per_page, falling back to defaults on
// anything unparseable and clamping per_page to the allowed range.
func parsePagination(r *http.Request) (page, perPage int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v >= 1 {
		page = v
	}

	perPage = defaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v >= 1 {
		perPage = v
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	return page, perPage
}

// paginate slices one page out of the listing. A page past the end
// yields the last page instead of an error.
func paginate(emails []gmail.Summary, page, perPage int) ([]gmail.Summary, int, int) {
	totalPages := (len(emails) + perPage - 1) / perPage
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(emails) {
		end = len(emails)
	}

	return emails[start:end], page, totalPages
}

type emailDetailResponse struct {
	OK    bool          `json:"ok"`
	Email *gmail.Detail `json:"email"`
}

func (h *Handlers) handleEmailDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	client := h.clientForRequest(w, r)
	if client == nil {
		return
	}

	if !client.Exists(r.Context(), id) {
		writeError(w, http.StatusNotFound, "Email not found or may have been deleted")
		return
	}

	detail, err := client.GetDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, gmail.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Email not found or may have been deleted")
			return
		}
		h.logger.ErrorContext(r.Context(), "fetching email detail failed",
			logging.MessageID(id), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch email")
		return
	}

	writeJSON(w, http.StatusOK, emailDetailResponse{OK: true, Email: detail})
}

func (h *Handlers) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	client := h.clientForRequest(w, r)
	if client == nil {
		return
	}

	if err := client.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, gmail.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Email not found or may have been deleted")
			return
		}
		h.logger.ErrorContext(r.Context(), "marking email as read failed",
			logging.MessageID(id), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to mark email as read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type generateRequest struct {
	EmailText string `json:"email_text"`
}

type generateResponse struct {
	OK         bool   `json:"ok"`
	Summary    string `json:"summary"`
	DraftReply string `json:"draft_reply"`
}

// handleGenerate summarizes the email and drafts a reply conditioned on
// that summary. Generation never fails the request; provider problems
// come back inside the generated strings.
func (h *Handlers) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.EmailText == "" {
		writeError(w, http.StatusBadRequest, "email_text is required")
		return
	}

	summary := h.generator.Summarize(r.Context(), req.EmailText)
	draft := h.generator.GenerateReply(r.Context(), req.EmailText, summary)

	writeJSON(w, http.StatusOK, generateResponse{
		OK:         true,
		Summary:    summary,
		DraftReply: draft,
	})
}

type saveDraftRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type saveDraftResponse struct {
	OK      bool   `json:"ok"`
	DraftID string `json:"draft_id"`
}

func (h *Handlers) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	client := h.clientForRequest(w, r)
	if client == nil {
		return
	}

	var req saveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" || req.Subject == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "to, subject, body are required")
		return
	}

	draftID, err := client.CreateDraft(r.Context(), req.To, req.Subject, req.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create draft")
		return
	}

	writeJSON(w, http.StatusOK, saveDraftResponse{OK: true, DraftID: draftID})
}

// handleLogout drops the session. The stored credential is retained, so
// reconnecting does not require a new consent round-trip.
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
