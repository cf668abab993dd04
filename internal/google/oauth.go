package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/teemow/inboxdraft/internal/store"
)

// Exchange failure categories. They map to different operator remediations:
// an invalid grant means the user has to consent again, a redirect mismatch
// means the Cloud Console configuration disagrees with BaseURL.
var (
	ErrInvalidGrant     = errors.New("authorization code is invalid or expired")
	ErrRedirectMismatch = errors.New("redirect URI does not match the OAuth client configuration")
)

// OAuthConfig returns the OAuth2 configuration for the Gmail consent flow.
// The redirect URL must match the start and callback steps exactly; token
// endpoints validate it on exchange.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

// GenerateState returns a random anti-forgery state token for one flow
// instance.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthCodeURL builds the authorization URL for the consent screen.
// Offline access yields a refresh token; prompt=consent forces Google to
// reissue one even when the user already granted these scopes.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades the authorization code for a token set and converts it to
// a storable credential. Exchange failures are classified so callers can
// tell a stale code from a misconfigured redirect URL.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*store.Credential, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	return CredentialFromToken(conf, tok), nil
}

// classifyExchangeError wraps token-endpoint failures with a sentinel when
// the OAuth error code identifies a known category.
func classifyExchangeError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		switch retrieve.ErrorCode {
		case "invalid_grant":
			return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		case "redirect_uri_mismatch":
			return fmt.Errorf("%w: %v", ErrRedirectMismatch, err)
		}
		// Some deployments report the mismatch only in the description.
		if strings.Contains(retrieve.ErrorDescription, "redirect_uri") {
			return fmt.Errorf("%w: %v", ErrRedirectMismatch, err)
		}
	}
	return fmt.Errorf("failed to exchange auth code: %w", err)
}

// CredentialFromToken converts an exchanged token into the stored
// credential shape, carrying the client identity and scope list alongside
// the tokens so the blob is self-contained.
func CredentialFromToken(conf *oauth2.Config, tok *oauth2.Token) *store.Credential {
	cred := &store.Credential{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     conf.Endpoint.TokenURL,
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		Scopes:       conf.Scopes,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		cred.Expiry = &expiry
	}
	return cred
}

// TokenFromCredential rebuilds the oauth2 token from a stored credential.
func TokenFromCredential(cred *store.Credential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  cred.Token,
		TokenType:    "Bearer",
		RefreshToken: cred.RefreshToken,
	}
	if cred.Expiry != nil {
		tok.Expiry = *cred.Expiry
	} else if cred.RefreshToken != "" {
		// Unknown expiry: force the token source to validate via refresh.
		tok.Expiry = time.Unix(1, 0)
	}
	return tok
}

// HTTPClient returns an authenticated HTTP client for the stored
// credential. An expired access token is refreshed through the token source
// and the rotated credential is handed to persist before any API call uses
// it, so a concurrent request never observes a stale stored token.
func HTTPClient(ctx context.Context, conf *oauth2.Config, cred *store.Credential,
	persist func(context.Context, *store.Credential) error,
) (*http.Client, error) {
	stored := TokenFromCredential(cred)
	ts := conf.TokenSource(ctx, stored)

	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("credential refresh failed: %w", err)
	}

	if tok.AccessToken != stored.AccessToken && persist != nil {
		refreshed := CredentialFromToken(conf, tok)
		if refreshed.RefreshToken == "" {
			// Google omits the refresh token on refresh responses.
			refreshed.RefreshToken = cred.RefreshToken
		}
		if err := persist(ctx, refreshed); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
		}
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}
