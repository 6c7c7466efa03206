package credentials

import (
	"context"
	"fmt"

	"github.com/giantswarm/mcp-oauth/storage"
)

// TokenStoreSource reads and writes credentials through an mcp-oauth token
// store, so tokens obtained by the OAuth layer feed the cache directly.
// The token store only keeps the oauth2 token; client settings come from
// the wrapping ClientDefaults.
type TokenStoreSource struct {
	store storage.TokenStore
}

// NewTokenStoreSource wraps an mcp-oauth token store.
func NewTokenStoreSource(store storage.TokenStore) *TokenStoreSource {
	return &TokenStoreSource{store: store}
}

// Fetch returns the stored token for userID.
func (s *TokenStoreSource) Fetch(ctx context.Context, userID string) (*Credential, error) {
	tok, err := s.store.GetToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: token store: %v", ErrNotFound, err)
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: token store returned no token for %q", ErrNotFound, userID)
	}
	return FromToken(userID, tok), nil
}

// Save stores the credential's token.
func (s *TokenStoreSource) Save(ctx context.Context, cred *Credential) error {
	if err := s.store.SaveToken(ctx, cred.UserID, cred.Token()); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}
