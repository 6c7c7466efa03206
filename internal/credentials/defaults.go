package credentials

import (
	"context"
)

// ClientDefaults wraps a Source and fills in OAuth client settings that a
// stored credential lacks, typically GOOGLE_CLIENT_ID and
// GOOGLE_CLIENT_SECRET from the environment.
type ClientDefaults struct {
	Source       Source
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Fetch delegates to the wrapped source and applies the defaults.
func (d *ClientDefaults) Fetch(ctx context.Context, userID string) (*Credential, error) {
	cred, err := d.Source.Fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	cred = cred.Clone()
	if cred.ClientID == "" {
		cred.ClientID = d.ClientID
	}
	if cred.ClientSecret == "" {
		cred.ClientSecret = d.ClientSecret
	}
	if cred.TokenURL == "" {
		cred.TokenURL = d.TokenURL
	}
	if len(cred.Scopes) == 0 && len(d.Scopes) > 0 {
		cred.Scopes = append([]string(nil), d.Scopes...)
	}
	return cred, nil
}

// Save forwards to the wrapped source when it can persist.
func (d *ClientDefaults) Save(ctx context.Context, cred *Credential) error {
	if saver, ok := d.Source.(Saver); ok {
		return saver.Save(ctx, cred)
	}
	return nil
}
