package credentials

import (
	"fmt"
	"regexp"
	"time"
)

// record is the persisted form of a credential. Field names follow the
// token files written by Google's client libraries.
type record struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ClientID     string     `json:"client_id,omitempty"`
	ClientSecret string     `json:"client_secret,omitempty"`
	TokenURI     string     `json:"token_uri,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Encrypted    bool       `json:"encrypted,omitempty"`
}

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9@._+-]{1,254}$`)

// ValidateUserID rejects IDs that are empty, too long or could escape a
// storage directory.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) || userID == "." || userID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}

// encodeRecord converts a credential for storage, encrypting secrets when
// enc is enabled.
func encodeRecord(cred *Credential, enc *TokenEncryption) (record, error) {
	rec := record{
		TokenType: cred.TokenType,
		ClientID:  cred.ClientID,
		TokenURI:  cred.TokenURL,
		Scopes:    cred.Scopes,
		Encrypted: enc.Enabled(),
	}
	if !cred.Expiry.IsZero() {
		expiry := cred.Expiry.UTC()
		rec.ExpiresAt = &expiry
	}

	var err error
	if rec.AccessToken, err = enc.Encrypt(cred.AccessToken); err != nil {
		return record{}, fmt.Errorf("encrypt access token: %w", err)
	}
	if rec.RefreshToken, err = enc.Encrypt(cred.RefreshToken); err != nil {
		return record{}, fmt.Errorf("encrypt refresh token: %w", err)
	}
	if rec.ClientSecret, err = enc.Encrypt(cred.ClientSecret); err != nil {
		return record{}, fmt.Errorf("encrypt client secret: %w", err)
	}
	return rec, nil
}

// decodeRecord reverses encodeRecord. An encrypted record cannot be read
// without a key.
func decodeRecord(userID string, rec record, enc *TokenEncryption) (*Credential, error) {
	if rec.Encrypted && !enc.Enabled() {
		return nil, fmt.Errorf("credential for %q is encrypted but no encryption key is configured", userID)
	}
	if !rec.Encrypted {
		enc = nil
	}

	cred := &Credential{
		UserID:    userID,
		TokenType: rec.TokenType,
		ClientID:  rec.ClientID,
		TokenURL:  rec.TokenURI,
		Scopes:    rec.Scopes,
	}
	if rec.ExpiresAt != nil {
		cred.Expiry = *rec.ExpiresAt
	}

	var err error
	if cred.AccessToken, err = enc.Decrypt(rec.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if cred.RefreshToken, err = enc.Decrypt(rec.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	if cred.ClientSecret, err = enc.Decrypt(rec.ClientSecret); err != nil {
		return nil, fmt.Errorf("decrypt client secret: %w", err)
	}
	return cred, nil
}
