package server

import (
	"errors"
	"net/http"

	"github.com/teemow/inboxdraft/internal/google"
	"github.com/teemow/inboxdraft/internal/instrumentation"
	"github.com/teemow/inboxdraft/internal/logging"
	"github.com/teemow/inboxdraft/internal/store"
)

// handleOAuthStart begins the consent flow: a fresh anti-forgery state
// token goes into the caller's session and the browser is sent to the
// Google consent screen. Starting again overwrites any pending state.
func (h *Handlers) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.Ensure(w, r)

	state, err := google.GenerateState()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "state generation failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "OAuth initialization failed")
		return
	}
	h.sessions.SetState(sessionID, state)

	http.Redirect(w, r, google.AuthCodeURL(h.oauthConf, state), http.StatusFound)
}

// handleOAuthCallback validates the state token before touching the
// code, exchanges the code, and persists the credential in the
// anonymous owner slot. The state is single-use either way.
func (h *Handlers) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := h.sessions.resolve(r)
	if !ok {
		h.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "Invalid OAuth state. Please try again.")
		return
	}

	expected := h.sessions.TakeState(sessionID)
	returned := r.URL.Query().Get("state")
	if expected == "" || expected != returned {
		h.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		h.logger.WarnContext(ctx, "state mismatch on callback",
			logging.Operation("oauth_callback"))
		writeError(w, http.StatusBadRequest, "Invalid OAuth state. Please try again.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "authorization code is missing")
		return
	}

	cred, err := google.Exchange(ctx, h.oauthConf, code)
	if err != nil {
		h.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		h.logger.ErrorContext(ctx, "code exchange failed",
			logging.Operation("oauth_callback"), logging.Err(err))
		writeError(w, http.StatusBadRequest, exchangeErrorMessage(err))
		return
	}

	owner := store.AnonymousOwner
	if err := h.store.Save(ctx, owner, cred); err != nil {
		h.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		h.logger.ErrorContext(ctx, "persisting credential failed",
			logging.Owner(owner), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	h.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	h.logger.InfoContext(ctx, "OAuth flow completed", logging.Owner(owner))

	http.Redirect(w, r, "/", http.StatusFound)
}

// exchangeErrorMessage maps classified exchange failures to operator
// guidance.
func exchangeErrorMessage(err error) string {
	switch {
	case errors.Is(err, google.ErrInvalidGrant):
		return "OAuth authentication failed: the authorization code is expired or invalid. Please try authenticating again."
	case errors.Is(err, google.ErrRedirectMismatch):
		return "OAuth authentication failed: redirect URI mismatch. Check your Google Cloud Console configuration."
	default:
		return "OAuth authentication failed. Please try again."
	}
}
