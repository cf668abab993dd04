package google

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func testConfig() *oauth2.Config {
	return OAuthConfig("client-id", "client-secret", "http://localhost:8080/oauth/callback")
}

func TestAuthCodeURLParameters(t *testing.T) {
	raw := AuthCodeURL(testConfig(), "state-token-123")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthCodeURL() produced unparseable URL: %v", err)
	}
	q := u.Query()

	tests := []struct {
		param string
		want  string
	}{
		{"state", "state-token-123"},
		{"access_type", "offline"},
		{"prompt", "consent"},
		{"include_granted_scopes", "true"},
		{"client_id", "client-id"},
		{"redirect_uri", "http://localhost:8080/oauth/callback"},
		{"response_type", "code"},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := q.Get(tt.param); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.param, got, tt.want)
			}
		})
	}
}

func TestGenerateStateUnique(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if a == "" || a == b {
		t.Errorf("GenerateState() returned %q and %q, want distinct non-empty tokens", a, b)
	}
}

func TestCredentialTokenRoundTrip(t *testing.T) {
	conf := testConfig()
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok := &oauth2.Token{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		Expiry:       expiry,
	}

	cred := CredentialFromToken(conf, tok)
	if cred.Token != "ya29.access" {
		t.Errorf("Token = %q, want ya29.access", cred.Token)
	}
	if cred.ClientID != "client-id" || cred.ClientSecret != "client-secret" {
		t.Errorf("client identity not carried into credential: %+v", cred)
	}
	if cred.TokenURI == "" {
		t.Error("TokenURI must record the token endpoint")
	}
	if cred.Expiry == nil || !cred.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", cred.Expiry, expiry)
	}

	back := TokenFromCredential(cred)
	if back.AccessToken != tok.AccessToken || back.RefreshToken != tok.RefreshToken {
		t.Errorf("TokenFromCredential() = %+v, want tokens preserved", back)
	}
	if !back.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", back.Expiry, expiry)
	}
}

func TestTokenFromCredentialUnknownExpiry(t *testing.T) {
	cred := CredentialFromToken(testConfig(), &oauth2.Token{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
	})

	tok := TokenFromCredential(cred)
	if tok.Valid() {
		t.Error("a token with unknown expiry and a refresh token must not be treated as valid")
	}
}

func TestClassifyExchangeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "invalid grant",
			err:  &oauth2.RetrieveError{ErrorCode: "invalid_grant"},
			want: ErrInvalidGrant,
		},
		{
			name: "redirect mismatch by code",
			err:  &oauth2.RetrieveError{ErrorCode: "redirect_uri_mismatch"},
			want: ErrRedirectMismatch,
		},
		{
			name: "redirect mismatch by description",
			err:  &oauth2.RetrieveError{ErrorCode: "invalid_request", ErrorDescription: "redirect_uri is not registered"},
			want: ErrRedirectMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyExchangeError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyExchangeError() = %v, want errors.Is %v", got, tt.want)
			}
		})
	}
}

func TestClassifyExchangeErrorGeneric(t *testing.T) {
	got := classifyExchangeError(errors.New("connection refused"))
	if errors.Is(got, ErrInvalidGrant) || errors.Is(got, ErrRedirectMismatch) {
		t.Errorf("generic failure wrongly classified: %v", got)
	}
}
