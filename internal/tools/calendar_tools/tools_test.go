package calendar_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/freeslot/internal/config"
	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/server"
)

// fakeGoogle serves freeBusy and events.insert.
type fakeGoogle struct {
	mu       sync.Mutex
	freeBusy string
	inserted []calendar.Event
	paths    []string
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/freeBusy"):
		_, _ = w.Write([]byte(f.freeBusy))
	case strings.HasSuffix(r.URL.Path, "/events"):
		var ev calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.inserted = append(f.inserted, ev)
		ev.Id = "evt1"
		ev.HtmlLink = "https://calendar.google.com/event?eid=evt1"
		_ = json.NewEncoder(w).Encode(ev)
	default:
		http.NotFound(w, r)
	}
}

// staticSource hands out a valid credential for any user.
type staticSource struct {
	mu    sync.Mutex
	users []string
}

func (s *staticSource) Fetch(_ context.Context, userID string) (*credentials.Credential, error) {
	s.mu.Lock()
	s.users = append(s.users, userID)
	s.mu.Unlock()
	return &credentials.Credential{
		UserID:      userID,
		AccessToken: "token-" + userID,
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

func newTestServer(t *testing.T, freeBusy string) (*server.ServerContext, *fakeGoogle, *staticSource) {
	t.Helper()
	api := &fakeGoogle{freeBusy: freeBusy}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	source := &staticSource{}
	sc, err := server.NewServerContext(context.Background(), server.Options{
		Config: config.Config{
			CredentialStore:   config.StoreMemory,
			ProviderTimeout:   5 * time.Second,
			RefreshTimeout:    5 * time.Second,
			DefaultUser:       "default",
			OrganizerCalendar: "primary",
		},
		Source:          source,
		CalendarOptions: []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, api, source
}

func call(t *testing.T, sc *server.ServerContext, handler func(context.Context, mcp.CallToolRequest, *server.ServerContext) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req, sc)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

const busyMorning = `{"calendars": {
	"a@example.com": {"busy": [{"start": "2025-03-10T09:00:00Z", "end": "2025-03-10T10:00:00Z"}]},
	"b@example.com": {"busy": [{"start": "2025-03-10T09:30:00Z", "end": "2025-03-10T11:00:00Z"}]},
	"gone@example.com": {"busy": [], "errors": [{"domain": "global", "reason": "notFound"}]}
}}`

func TestRegisterCalendarTools(t *testing.T) {
	sc, _, _ := newTestServer(t, `{}`)
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))

	require.NoError(t, RegisterCalendarTools(s, sc))

	tools := s.ListTools()
	for _, name := range []string{ToolQueryFreeBusy, ToolFindAvailableTime, ToolScheduleMutual, ToolTokenStatus} {
		assert.Contains(t, tools, name)
	}

	assert.Error(t, RegisterCalendarTools(s, nil))
}

func TestQueryFreeBusy(t *testing.T) {
	sc, _, _ := newTestServer(t, busyMorning)

	text, isErr := call(t, sc, handleQueryFreeBusy, map[string]any{
		"calendars": "a@example.com, gone@example.com",
		"timeMin":   "2025-03-10T08:00:00Z",
		"timeMax":   "2025-03-10T18:00:00Z",
	})
	assert.False(t, isErr)
	assert.Contains(t, text, "Free/Busy information for 2 calendar(s)")
	assert.Contains(t, text, "2025-03-10 09:00 to 2025-03-10 10:00 UTC")
	assert.Contains(t, text, "Errors: notFound")
}

func TestFindAvailableTime(t *testing.T) {
	sc, api, _ := newTestServer(t, busyMorning)

	text, isErr := call(t, sc, handleFindAvailableTime, map[string]any{
		"calendars":         "a@example.com,b@example.com,gone@example.com",
		"durationMinutes":   60.0,
		"timeMin":           "2025-03-10T09:00:00Z",
		"timeMax":           "2025-03-10T18:00:00Z",
		"workingHoursStart": "09:00",
		"workingHoursEnd":   "17:00",
	})
	assert.False(t, isErr, text)
	assert.Contains(t, text, "2025-03-10T11:00:00Z to 2025-03-10T12:00:00Z")
	assert.Contains(t, text, "gone@example.com: notFound")
	assert.Empty(t, api.inserted, "finding a slot does not create events")
}

func TestFindAvailableTime_TimeZone(t *testing.T) {
	sc, _, _ := newTestServer(t, `{"calendars": {"a@example.com": {"busy": []}}}`)

	// 09:00 Berlin is 08:00 UTC in March.
	text, isErr := call(t, sc, handleFindAvailableTime, map[string]any{
		"calendars":         "a@example.com",
		"durationMinutes":   30.0,
		"timeMin":           "2025-03-10T06:00:00Z",
		"timeMax":           "2025-03-10T18:00:00Z",
		"timeZone":          "Europe/Berlin",
		"workingHoursStart": "09:00",
		"workingHoursEnd":   "17:00",
	})
	assert.False(t, isErr, text)
	assert.Contains(t, text, "at 09:00")
	assert.Contains(t, text, "2025-03-10T09:00:00+01:00")
}

func TestFindAvailableTime_InvalidArguments(t *testing.T) {
	sc, api, source := newTestServer(t, busyMorning)

	base := func() map[string]any {
		return map[string]any{
			"calendars":       "a@example.com",
			"durationMinutes": 30.0,
			"timeMin":         "2025-03-10T09:00:00Z",
			"timeMax":         "2025-03-10T18:00:00Z",
		}
	}

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr string
	}{
		{name: "missing calendars", mutate: func(a map[string]any) { delete(a, "calendars") }, wantErr: "calendars is required"},
		{name: "zero duration", mutate: func(a map[string]any) { a["durationMinutes"] = 0.0 }, wantErr: "durationMinutes"},
		{name: "bad time", mutate: func(a map[string]any) { a["timeMin"] = "monday" }, wantErr: "invalid timeMin format"},
		{name: "empty range", mutate: func(a map[string]any) { a["timeMax"] = a["timeMin"] }, wantErr: "Invalid request"},
		{name: "half working hours", mutate: func(a map[string]any) { a["workingHoursStart"] = "09:00" }, wantErr: "must be given together"},
		{name: "bad working hours", mutate: func(a map[string]any) {
			a["workingHoursStart"] = "17:00"
			a["workingHoursEnd"] = "09:00"
		}, wantErr: "invalid working hours"},
		{name: "bad zone", mutate: func(a map[string]any) { a["timeZone"] = "Mars/Olympus" }, wantErr: "invalid timeZone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := base()
			tt.mutate(args)
			text, isErr := call(t, sc, handleFindAvailableTime, args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.wantErr)
		})
	}

	assert.Empty(t, api.paths, "invalid requests never reach the provider")
	assert.Empty(t, source.users)
}

func TestScheduleMutual(t *testing.T) {
	sc, api, _ := newTestServer(t, busyMorning)

	text, isErr := call(t, sc, handleScheduleMutual, map[string]any{
		"summary":         "Planning",
		"calendars":       "a@example.com,b@example.com",
		"attendees":       "guest@example.com",
		"durationMinutes": 30.0,
		"timeMin":         "2025-03-10T09:00:00Z",
		"timeMax":         "2025-03-10T18:00:00Z",
		"sendUpdates":     true,
	})
	assert.False(t, isErr, text)
	assert.Contains(t, text, "Meeting scheduled: Planning")
	assert.Contains(t, text, "Event ID: evt1")

	require.Len(t, api.inserted, 1)
	ev := api.inserted[0]
	assert.Equal(t, "2025-03-10T11:00:00Z", ev.Start.DateTime)
	assert.Equal(t, "2025-03-10T11:30:00Z", ev.End.DateTime)
	emails := make([]string, len(ev.Attendees))
	for i, a := range ev.Attendees {
		emails[i] = a.Email
	}
	assert.Equal(t, []string{"guest@example.com", "a@example.com", "b@example.com"}, emails)
	assert.Contains(t, api.paths[len(api.paths)-1], "/calendars/primary/events")
}

func TestScheduleMutual_NoSlot(t *testing.T) {
	sc, api, _ := newTestServer(t, `{"calendars": {
		"a@example.com": {"busy": [{"start": "2025-03-10T08:00:00Z", "end": "2025-03-10T18:00:00Z"}]}
	}}`)

	text, isErr := call(t, sc, handleScheduleMutual, map[string]any{
		"summary":         "Planning",
		"calendars":       "a@example.com",
		"durationMinutes": 30.0,
		"timeMin":         "2025-03-10T09:00:00Z",
		"timeMax":         "2025-03-10T17:00:00Z",
	})
	assert.False(t, isErr, "no slot is a normal outcome")
	assert.Contains(t, text, "No slot")
	assert.Empty(t, api.inserted)
}

func TestScheduleMutual_MandatoryCalendarFails(t *testing.T) {
	sc, api, _ := newTestServer(t, busyMorning)

	text, isErr := call(t, sc, handleScheduleMutual, map[string]any{
		"summary":         "Planning",
		"calendars":       "a@example.com",
		"mandatory":       "gone@example.com",
		"durationMinutes": 30.0,
		"timeMin":         "2025-03-10T09:00:00Z",
		"timeMax":         "2025-03-10T17:00:00Z",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "mandatory calendar unavailable")
	assert.Empty(t, api.inserted)
}

func TestScheduleMutual_RequiresSummary(t *testing.T) {
	sc, _, _ := newTestServer(t, busyMorning)

	text, isErr := call(t, sc, handleScheduleMutual, map[string]any{"calendars": "a@example.com"})
	assert.True(t, isErr)
	assert.Equal(t, "summary is required", text)
}

func TestTokenStatus(t *testing.T) {
	sc, _, source := newTestServer(t, `{}`)
	ctx := credentials.ContextWithUser(context.Background(), "jane@example.com")

	req := mcp.CallToolRequest{}
	result, err := handleTokenStatus(ctx, req, sc)
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &status))
	assert.Equal(t, "jane@example.com", status["user_id"])
	assert.Equal(t, false, status["cached"])
	assert.Empty(t, source.users, "status alone does not fetch")

	req.Params.Arguments = map[string]any{"refresh": true}
	result, err = handleTokenStatus(ctx, req, sc)
	require.NoError(t, err)
	text := result.Content[0].(mcp.TextContent).Text
	require.NoError(t, json.Unmarshal([]byte(text), &status))
	assert.Equal(t, true, status["cached"])
	assert.Equal(t, true, status["has_access_token"])
	assert.NotContains(t, text, "token-jane@example.com")
}
