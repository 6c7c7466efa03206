package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/server"
)

// Resource URIs.
const (
	SettingsURI   = "freeslot://settings"
	CredentialURI = "user://credential"
)

// RegisterResources registers the read-only settings and credential resources.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	settings := mcp.NewResource(
		SettingsURI,
		"Scheduling Settings",
		mcp.WithResourceDescription("Defaults applied to slot searches and created events"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(settings, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSettings(ctx, request, sc)
	})

	credential := mcp.NewResource(
		CredentialURI,
		"Current User Credential",
		mcp.WithResourceDescription("Status of the cached Google credential for the current user. Token values are never included."),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(credential, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCredential(ctx, request, sc)
	})

	return nil
}

type settingsData struct {
	DefaultUser          string `json:"default_user"`
	OrganizerCalendar    string `json:"organizer_calendar"`
	CredentialStore      string `json:"credential_store"`
	ProviderTimeout      string `json:"provider_timeout"`
	FailOnProviderErrors bool   `json:"fail_on_provider_errors"`
	Encrypted            bool   `json:"tokens_encrypted"`
}

func handleSettings(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	cfg := sc.Config()
	return jsonContents(request.Params.URI, settingsData{
		DefaultUser:          cfg.DefaultUser,
		OrganizerCalendar:    cfg.OrganizerCalendar,
		CredentialStore:      cfg.CredentialStore,
		ProviderTimeout:      cfg.ProviderTimeout.String(),
		FailOnProviderErrors: cfg.FailOnProviderErrors,
		Encrypted:            cfg.EncryptionKey != "",
	})
}

type credentialData struct {
	UserID string `json:"user_id"`
	Cached bool   `json:"cached"`
	credentials.TokenStatus
}

// handleCredential reports on the user named by the transport, falling back
// to the default user.
func handleCredential(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	userID, ok := credentials.UserFromContext(ctx)
	if !ok {
		userID = sc.DefaultUser()
	}

	data := credentialData{UserID: userID}
	data.TokenStatus, data.Cached = sc.Credentials().Status(userID)
	return jsonContents(request.Params.URI, data)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
