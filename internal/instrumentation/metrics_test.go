package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	ctx := context.Background()
	metrics := newTestProvider(t).Metrics()

	// None of these should panic against live instruments.
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp", 200, 100*time.Millisecond)
	metrics.RecordProviderCall(ctx, OperationFreeBusy, StatusSuccess, 3, 200*time.Millisecond)
	metrics.RecordProviderCall(ctx, OperationInsertEvent, StatusError, 1, 50*time.Millisecond)
	metrics.RecordCalendarError(ctx, "notFound")
	metrics.RecordCredentialFetch(ctx, CredentialResultSuccess)
	metrics.RecordCredentialRefresh(ctx, CredentialResultFailure)
	metrics.RecordCredentialEviction(ctx, CredentialResultNoRefresh)
	metrics.AddCachedCredentials(ctx, 1)
	metrics.AddCachedCredentials(ctx, -1)
	metrics.RecordSchedulingOutcome(ctx, OutcomeScheduled, 2)
	metrics.RecordToolInvocation(ctx, "calendar_schedule_mutual", StatusSuccess, time.Second)
	metrics.RecordToolInvocationWithUser(ctx, "calendar_schedule_mutual", StatusError, "jane@example.com", time.Second)
}

func TestMetrics_NilAndZeroAreNoOps(t *testing.T) {
	ctx := context.Background()

	for _, metrics := range []*Metrics{nil, {}} {
		metrics.RecordHTTPRequest(ctx, "GET", "/mcp", 200, time.Millisecond)
		metrics.RecordProviderCall(ctx, OperationFreeBusy, StatusTimeout, 2, time.Millisecond)
		metrics.RecordCalendarError(ctx, "timeout")
		metrics.RecordCredentialFetch(ctx, CredentialResultNotFound)
		metrics.RecordCredentialRefresh(ctx, CredentialResultSuccess)
		metrics.RecordCredentialEviction(ctx, CredentialResultFailure)
		metrics.AddCachedCredentials(ctx, 1)
		metrics.RecordSchedulingOutcome(ctx, OutcomeNoSlot, 1)
		metrics.RecordToolInvocation(ctx, "tool", StatusSuccess, time.Millisecond)
	}
}

func TestCalendarCountBucket(t *testing.T) {
	tests := map[int]string{
		-1:  "0",
		0:   "0",
		1:   "1",
		2:   "2-5",
		5:   "2-5",
		6:   "6-20",
		20:  "6-20",
		21:  "21+",
		500: "21+",
	}
	for n, want := range tests {
		assert.Equal(t, want, CalendarCountBucket(n), "n=%d", n)
	}
}

func TestExtractUserDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractUserDomain("jane@example.com"))
	assert.Equal(t, "unknown", ExtractUserDomain("default"))
	assert.Equal(t, "unknown", ExtractUserDomain("jane@"))
	assert.Equal(t, "unknown", ExtractUserDomain(""))
}
