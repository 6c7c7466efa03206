package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/teemow/freeslot/internal/logging"
)

// FileStore keeps one JSON file per user in a directory.
type FileStore struct {
	dir    string
	enc    *TokenEncryption
	logger logging.Logger
}

// NewFileStore creates the directory if needed. enc may be nil.
func NewFileStore(dir string, enc *TokenEncryption, logger logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create credential directory: %w", err)
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &FileStore{dir: dir, enc: enc, logger: logger}, nil
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Fetch reads the credential file for userID.
func (s *FileStore) Fetch(_ context.Context, userID string) (*Credential, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no credential file for %q", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse credential file for %q: %w", userID, err)
	}
	return decodeRecord(userID, rec, s.enc)
}

// Save writes the credential atomically with mode 0600.
func (s *FileStore) Save(_ context.Context, cred *Credential) error {
	if err := ValidateUserID(cred.UserID); err != nil {
		return err
	}

	rec, err := encodeRecord(cred, s.enc)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(cred.UserID)); err != nil {
		return fmt.Errorf("rename credential file: %w", err)
	}

	s.logger.Debug("credential saved", logging.UserHash(cred.UserID), "encrypted", rec.Encrypted)
	return nil
}

// Delete removes the credential file. Deleting a missing file is not an error.
func (s *FileStore) Delete(_ context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete credential file: %w", err)
	}
	return nil
}
