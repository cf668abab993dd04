package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), nil, filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCredential() *Credential {
	expiry := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	return &Credential{
		Token:        "ya29.access",
		RefreshToken: "1//refresh",
		TokenURI:     "https://oauth2.googleapis.com/token",
		ClientID:     "client-id.apps.googleusercontent.com",
		ClientSecret: "client-secret",
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.compose",
		},
		Expiry: &expiry,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testCredential()
	require.NoError(t, s.Save(ctx, "alice@example.com", want))

	got, err := s.Load(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.TokenURI, got.TokenURI)
	assert.Equal(t, want.ClientID, got.ClientID)
	assert.Equal(t, want.ClientSecret, got.ClientSecret)
	assert.Equal(t, want.Scopes, got.Scopes)
	require.NotNil(t, got.Expiry)
	assert.True(t, want.Expiry.Equal(*got.Expiry))
}

func TestSaveUpsertsByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testCredential()
	require.NoError(t, s.Save(ctx, "alice@example.com", first))

	second := testCredential()
	second.Token = "ya29.rotated"
	require.NoError(t, s.Save(ctx, "alice@example.com", second))

	var count int
	require.NoError(t, s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM gmail_credentials WHERE owner = ?`, "alice@example.com"))
	assert.Equal(t, 1, count, "saving twice must not duplicate the record")

	got, err := s.Load(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ya29.rotated", got.Token, "last writer wins")
}

func TestLoadMissingOwner(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Load(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadAnonymousOwnerSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, AnonymousOwner, testCredential()))

	got, err := s.Load(ctx, AnonymousOwner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ya29.access", got.Token)
}

func TestLoadCorruptJSONTreatedAsAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gmail_credentials (owner, token_json) VALUES (?, ?)`,
		"broken@example.com", "{not json")
	require.NoError(t, err)

	got, err := s.Load(ctx, "broken@example.com")
	require.NoError(t, err, "a corrupt blob is absent, not an error")
	assert.Nil(t, got)
}

func TestCredentialExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{"no expiry recorded", nil, false},
		{"expiry in the past", &past, true},
		{"expiry in the future", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Credential{Token: "t", Expiry: tt.expiry}
			assert.Equal(t, tt.want, c.Expired())
		})
	}
}
