package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCategoryFromToolName(t *testing.T) {
	assert.Equal(t, "Calendar Tools", getCategoryFromToolName("calendar_schedule_mutual"))
	assert.Equal(t, "Credential Tools", getCategoryFromToolName("credentials_token_status"))
	assert.Equal(t, "Other", getCategoryFromToolName("misc"))
}

func TestGenerateToolMarkdown(t *testing.T) {
	tool := mcp.NewTool("calendar_find_available_time",
		mcp.WithDescription("Find a slot"),
		mcp.WithString("calendars", mcp.Required(), mcp.Description("Calendars to check")),
		mcp.WithNumber("durationMinutes"),
	)

	md := generateToolMarkdown(tool)
	assert.Contains(t, md, "### calendar_find_available_time\n\nFind a slot")
	assert.Contains(t, md, "- `calendars` (required): Calendars to check")
	assert.Contains(t, md, "- `durationMinutes` (optional): number parameter")
	assert.Less(t, strings.Index(md, "calendars"), strings.Index(md, "durationMinutes"))
}

func TestRunGenerateDocs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tools.md")
	require.NoError(t, runGenerateDocs(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	md := string(data)

	assert.Contains(t, md, "# MCP Tools Reference")
	assert.Contains(t, md, "## Calendar Tools")
	assert.Contains(t, md, "## Credential Tools")
	for _, name := range []string{
		"calendar_query_freebusy",
		"calendar_find_available_time",
		"calendar_schedule_mutual",
		"credentials_token_status",
	} {
		assert.Contains(t, md, "### "+name)
	}
	assert.Contains(t, md, "`user_id`")
}
