package credentials

import (
	"slices"
	"time"

	"golang.org/x/oauth2"
)

// Credential is a user's OAuth credential for the Google Calendar API.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	ClientID     string
	ClientSecret string
	// TokenURL is the token endpoint used for refresh. Empty means Google's.
	TokenURL string
	Scopes   []string
}

// FromToken builds a credential for userID from an oauth2 token.
func FromToken(userID string, tok *oauth2.Token) *Credential {
	if tok == nil {
		return &Credential{UserID: userID}
	}
	return &Credential{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}

// Token returns the credential as an oauth2 token.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// Expired reports whether the credential has expired at now, or will within
// skew. A credential without an expiry never expires.
func (c *Credential) Expired(now time.Time, skew time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return now.Add(skew).After(c.Expiry)
}

// Valid reports whether the credential carries an access token that has not
// expired.
func (c *Credential) Valid(now time.Time, skew time.Duration) bool {
	return c != nil && c.AccessToken != "" && !c.Expired(now, skew)
}

// Refreshable reports whether a refresh can be attempted.
func (c *Credential) Refreshable() bool {
	return c != nil && c.RefreshToken != ""
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Scopes = slices.Clone(c.Scopes)
	return &cp
}

// Status projects the credential onto a TokenStatus at now.
func (c *Credential) Status(now time.Time) TokenStatus {
	st := TokenStatus{
		HasAccessToken:  c.AccessToken != "",
		HasRefreshToken: c.RefreshToken != "",
	}
	if !c.Expiry.IsZero() {
		expiresAt := c.Expiry
		expiresIn := int64(c.Expiry.Sub(now) / time.Second)
		expired := !now.Before(c.Expiry)
		st.ExpiresAt = &expiresAt
		st.ExpiresInSeconds = &expiresIn
		st.IsExpired = &expired
	}
	return st
}

// TokenStatus is a read-only summary of a credential. Expiry fields are nil
// when the credential has no expiry.
type TokenStatus struct {
	HasAccessToken   bool       `json:"has_access_token"`
	HasRefreshToken  bool       `json:"has_refresh_token"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ExpiresInSeconds *int64     `json:"expires_in_seconds,omitempty"`
	IsExpired        *bool      `json:"is_expired,omitempty"`
}
