package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/contact-bot/crypto"
)

// ErrNoToken is returned when no token is stored for a provider.
var ErrNoToken = errors.New("no stored oauth token")

// Token is one oauth_tokens row with its secrets in plaintext.
type Token struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
}

// TokenStore keeps OAuth tokens in oauth_tokens. With a Box, secrets are
// sealed at rest (encryption_version=1); without one they are stored in
// plaintext (encryption_version=0).
type TokenStore struct {
	DB  *sql.DB
	Box *crypto.Box
}

// NewTokenStore returns a store. box may be nil.
func NewTokenStore(db *sql.DB, box *crypto.Box) *TokenStore {
	if box == nil {
		slog.Warn("ENCRYPTION_KEY not set, OAuth tokens will be stored in plaintext (not recommended for production)", slog.String("component", "db_tokens"))
	}
	return &TokenStore{DB: db, Box: box}
}

func label(provider, field string) string { return provider + "/" + field }

// UpsertOAuthToken stores or replaces the token for tok.Provider.
func (s *TokenStore) UpsertOAuthToken(ctx context.Context, tok Token) error {
	access, refresh, version := tok.AccessToken, tok.RefreshToken, 0
	if s.Box != nil {
		var err error
		if access, err = s.Box.Seal(tok.AccessToken, label(tok.Provider, "access")); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		if refresh, err = s.Box.Seal(tok.RefreshToken, label(tok.Provider, "refresh")); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		version = 1
	}
	var expiry sql.NullTime
	if !tok.Expiry.IsZero() {
		expiry = sql.NullTime{Time: tok.Expiry, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, encryption_version, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,NOW())
		 ON CONFLICT(provider) DO UPDATE SET
		   access_token=EXCLUDED.access_token,
		   refresh_token=EXCLUDED.refresh_token,
		   expires_at=EXCLUDED.expires_at,
		   scope=EXCLUDED.scope,
		   encryption_version=EXCLUDED.encryption_version,
		   updated_at=NOW()`,
		tok.Provider, access, refresh, expiry, strings.TrimSpace(tok.Scope), version)
	if err != nil {
		return fmt.Errorf("upsert %s token: %w", tok.Provider, err)
	}
	return nil
}

// GetOAuthToken loads the token for provider, opening sealed secrets.
// Plaintext rows written before a key was configured are still readable.
func (s *TokenStore) GetOAuthToken(ctx context.Context, provider string) (Token, error) {
	tok := Token{Provider: provider}
	var (
		expiry  sql.NullTime
		version int
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, scope, encryption_version FROM oauth_tokens WHERE provider=$1`,
		provider).Scan(&tok.AccessToken, &tok.RefreshToken, &expiry, &tok.Scope, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("get %s token: %w", provider, err)
	}
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	if version == 0 {
		return tok, nil
	}
	if s.Box == nil {
		return Token{}, fmt.Errorf("%s token is encrypted but ENCRYPTION_KEY not configured", provider)
	}
	if tok.AccessToken, err = s.Box.Open(tok.AccessToken, label(provider, "access")); err != nil {
		return Token{}, fmt.Errorf("decrypt access token: %w", err)
	}
	if tok.RefreshToken, err = s.Box.Open(tok.RefreshToken, label(provider, "refresh")); err != nil {
		return Token{}, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return tok, nil
}

// SealPlaintext encrypts every plaintext row (encryption_version=0) with the
// store's Box and returns the providers it sealed. With dryRun nothing is
// written and the providers that would be sealed are returned.
func (s *TokenStore) SealPlaintext(ctx context.Context, dryRun bool) ([]string, error) {
	if s.Box == nil {
		return nil, errors.New("sealing tokens requires ENCRYPTION_KEY")
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT provider, access_token, refresh_token FROM oauth_tokens WHERE encryption_version=0 ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("query plaintext tokens: %w", err)
	}
	type plain struct{ provider, access, refresh string }
	var pending []plain
	for rows.Next() {
		var p plain
		if err := rows.Scan(&p.provider, &p.access, &p.refresh); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	_ = rows.Close()

	sealed := make([]string, 0, len(pending))
	for _, p := range pending {
		if dryRun {
			sealed = append(sealed, p.provider)
			continue
		}
		access, err := s.Box.Seal(p.access, label(p.provider, "access"))
		if err != nil {
			return sealed, fmt.Errorf("encrypt %s access token: %w", p.provider, err)
		}
		refresh, err := s.Box.Seal(p.refresh, label(p.provider, "refresh"))
		if err != nil {
			return sealed, fmt.Errorf("encrypt %s refresh token: %w", p.provider, err)
		}
		res, err := s.DB.ExecContext(ctx,
			`UPDATE oauth_tokens SET access_token=$1, refresh_token=$2, encryption_version=1, updated_at=NOW()
			 WHERE provider=$3 AND encryption_version=0`,
			access, refresh, p.provider)
		if err != nil {
			return sealed, fmt.Errorf("update %s token: %w", p.provider, err)
		}
		// A concurrent writer may have replaced the row already.
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			slog.Warn("token changed while sealing, skipped", slog.String("provider", p.provider))
			continue
		}
		sealed = append(sealed, p.provider)
	}
	return sealed, nil
}

// EncryptionStatus counts stored tokens per encryption_version.
func (s *TokenStore) EncryptionStatus(ctx context.Context) (map[int]int, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT encryption_version, COUNT(*) FROM oauth_tokens GROUP BY encryption_version`)
	if err != nil {
		return nil, fmt.Errorf("query encryption status: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[int]int{}
	for rows.Next() {
		var version, count int
		if err := rows.Scan(&version, &count); err != nil {
			return nil, fmt.Errorf("scan encryption status: %w", err)
		}
		out[version] = count
	}
	return out, rows.Err()
}
