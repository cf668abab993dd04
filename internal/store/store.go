package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/teemow/inboxdraft/internal/logging"
)

// AnonymousOwner is the owner key used when no user identity is attached to
// the session. It occupies a single row like any other owner.
const AnonymousOwner = ""

// expirySkew is subtracted from the stored expiry so a token is treated as
// expired slightly before the provider would reject it.
const expirySkew = 30 * time.Second

// Credential is one stored OAuth token set. The JSON field names match the
// authorized-user format Google tooling emits, so a stored blob stays
// readable by other tools.
type Credential struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenURI     string     `json:"token_uri"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	Scopes       []string   `json:"scopes"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the access token is past its recorded expiry.
// A credential without an expiry is treated as still valid; the provider is
// the final arbiter either way.
func (c *Credential) Expired() bool {
	if c.Expiry == nil || c.Expiry.IsZero() {
		return false
	}
	return time.Now().After(c.Expiry.Add(-expirySkew))
}

// Store persists one credential record per owner in SQLite.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS gmail_credentials (
	owner      TEXT PRIMARY KEY,
	token_json TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// New opens the credential database at path and ensures the schema exists.
func New(ctx context.Context, logger *slog.Logger, path string) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping credential database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create gmail_credentials table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load fetches the credential stored for owner. A missing row or a stored
// blob that no longer parses both report an absent credential (nil, nil);
// the parse failure is logged but not surfaced, since the only remediation
// is to run the consent flow again.
func (s *Store) Load(ctx context.Context, owner string) (*Credential, error) {
	var tokenJSON string
	err := s.db.GetContext(ctx, &tokenJSON,
		`SELECT token_json FROM gmail_credentials WHERE owner = ?`, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(tokenJSON), &cred); err != nil {
		s.logger.Error("stored credential is not parseable, treating as absent",
			logging.Owner(owner), logging.Err(err))
		return nil, nil
	}
	if cred.Token == "" {
		s.logger.Error("stored credential has no access token, treating as absent",
			logging.Owner(owner))
		return nil, nil
	}

	return &cred, nil
}

// Save upserts the credential for owner in a single statement, so two
// requests refreshing the same token concurrently cannot interleave partial
// writes; the last writer wins. Persistence errors propagate to the caller.
func (s *Store) Save(ctx context.Context, owner string, cred *Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to serialize credential: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gmail_credentials (owner, token_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner) DO UPDATE SET
			token_json = excluded.token_json,
			updated_at = CURRENT_TIMESTAMP`,
		owner, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	s.logger.Debug("credential saved", logging.Owner(owner))
	return nil
}
