package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teemow/freeslot/internal/logging"
)

const credentialsSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	user_id       TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT '',
	client_id     TEXT NOT NULL DEFAULT '',
	client_secret TEXT NOT NULL DEFAULT '',
	token_uri     TEXT NOT NULL DEFAULT '',
	scopes        TEXT NOT NULL DEFAULT '[]',
	expires_at    INTEGER,
	encrypted     INTEGER NOT NULL DEFAULT 0,
	updated_at    INTEGER NOT NULL
)`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func encodeScopes(scopes []string) (string, error) {
	if len(scopes) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(scopes)
	if err != nil {
		return "", fmt.Errorf("marshal scopes: %w", err)
	}
	return string(encoded), nil
}

func decodeScopes(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "[]" {
		return nil, nil
	}
	var scopes []string
	if err := json.Unmarshal([]byte(value), &scopes); err != nil {
		return nil, fmt.Errorf("unmarshal scopes: %w", err)
	}
	return scopes, nil
}

// SQLiteStore persists credentials in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	enc    *TokenEncryption
	logger logging.Logger
}

// OpenSQLiteStore opens or creates the database at path. enc may be nil.
func OpenSQLiteStore(path string, enc *TokenEncryption, logger logging.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(credentialsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create credentials table: %w", err)
	}

	return &SQLiteStore{db: db, enc: enc, logger: logger}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Fetch loads the credential for userID.
func (s *SQLiteStore) Fetch(ctx context.Context, userID string) (*Credential, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	var (
		rec       record
		scopesRaw string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_type, client_id, client_secret,
		       token_uri, scopes, expires_at, encrypted
		FROM credentials WHERE user_id = ?`, userID,
	).Scan(
		&rec.AccessToken,
		&rec.RefreshToken,
		&rec.TokenType,
		&rec.ClientID,
		&rec.ClientSecret,
		&rec.TokenURI,
		&scopesRaw,
		&expiresAt,
		&rec.Encrypted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no stored credential for %q", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query credential: %w", err)
	}

	if rec.Scopes, err = decodeScopes(scopesRaw); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		expiry := fromMillis(expiresAt.Int64)
		rec.ExpiresAt = &expiry
	}
	return decodeRecord(userID, rec, s.enc)
}

// Save inserts or replaces the credential.
func (s *SQLiteStore) Save(ctx context.Context, cred *Credential) error {
	if err := ValidateUserID(cred.UserID); err != nil {
		return err
	}

	rec, err := encodeRecord(cred, s.enc)
	if err != nil {
		return err
	}
	scopes, err := encodeScopes(rec.Scopes)
	if err != nil {
		return err
	}
	var expiresAt sql.NullInt64
	if rec.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: toMillis(*rec.ExpiresAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (
			user_id, access_token, refresh_token, token_type, client_id, client_secret,
			token_uri, scopes, expires_at, encrypted, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			token_uri = excluded.token_uri,
			scopes = excluded.scopes,
			expires_at = excluded.expires_at,
			encrypted = excluded.encrypted,
			updated_at = excluded.updated_at`,
		cred.UserID, rec.AccessToken, rec.RefreshToken, rec.TokenType, rec.ClientID, rec.ClientSecret,
		rec.TokenURI, scopes, expiresAt, rec.Encrypted, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.logger.Debug("credential saved", logging.UserHash(cred.UserID), "store", "sqlite")
	return nil
}

// Delete removes the credential for userID.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
