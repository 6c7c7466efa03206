package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarScope is the OAuth scope required for free/busy queries and event
// creation.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// OAuthRefresher refreshes credentials against an OAuth2 token endpoint.
type OAuthRefresher struct {
	httpClient *http.Client
	tokenURL   string
}

// NewOAuthRefresher returns a refresher. tokenURL overrides the endpoint for
// credentials that do not name one; empty means Google's. A nil httpClient
// uses http.DefaultClient.
func NewOAuthRefresher(httpClient *http.Client, tokenURL string) *OAuthRefresher {
	return &OAuthRefresher{httpClient: httpClient, tokenURL: tokenURL}
}

// Refresh performs exactly one refresh-token grant for cred.
func (r *OAuthRefresher) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if cred.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	endpoint := google.Endpoint
	switch {
	case cred.TokenURL != "":
		endpoint.TokenURL = cred.TokenURL
	case r.tokenURL != "":
		endpoint.TokenURL = r.tokenURL
	}

	config := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       cred.Scopes,
	}

	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	// Without an access token the token source always goes to the endpoint.
	stale := &oauth2.Token{RefreshToken: cred.RefreshToken}
	tok, err := config.TokenSource(ctx, stale).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return nil, fmt.Errorf("token endpoint rejected refresh (%s): %w", retrieveErr.ErrorCode, err)
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	out := FromToken(cred.UserID, tok)
	out.ClientID = cred.ClientID
	out.ClientSecret = cred.ClientSecret
	out.TokenURL = cred.TokenURL
	out.Scopes = cred.Scopes
	return out, nil
}
