package availability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/interval"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func iv(sh, sm, eh, em int) interval.Interval {
	return interval.Interval{Start: at(sh, sm), End: at(eh, em)}
}

type providerFunc func(ctx context.Context, calendars []CalendarRef, start, end time.Time) (map[CalendarRef]CalendarBusy, error)

func (f providerFunc) QueryBusy(ctx context.Context, calendars []CalendarRef, start, end time.Time) (map[CalendarRef]CalendarBusy, error) {
	return f(ctx, calendars, start, end)
}

func staticProvider(results map[CalendarRef]CalendarBusy) providerFunc {
	return func(context.Context, []CalendarRef, time.Time, time.Time) (map[CalendarRef]CalendarBusy, error) {
		return results, nil
	}
}

func TestAggregator_Availability(t *testing.T) {
	var gotCalendars []CalendarRef
	calls := 0
	provider := providerFunc(func(_ context.Context, calendars []CalendarRef, start, end time.Time) (map[CalendarRef]CalendarBusy, error) {
		calls++
		gotCalendars = calendars
		assert.Equal(t, at(8, 0), start)
		assert.Equal(t, at(18, 0), end)
		return map[CalendarRef]CalendarBusy{
			"a@example.com": {Busy: []interval.Interval{iv(9, 30, 10, 0), iv(9, 0, 9, 45)}},
			"b@example.com": {Busy: []interval.Interval{iv(7, 0, 8, 30)}},
		}, nil
	})

	agg := NewAggregator(provider)
	report, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com", "b@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "one batched call")
	assert.Equal(t, []CalendarRef{"a@example.com", "b@example.com"}, gotCalendars)
	assert.Equal(t, []interval.Interval{iv(9, 0, 10, 0)}, report.Calendars["a@example.com"].Busy)
	assert.Equal(t, []interval.Interval{iv(8, 0, 8, 30)}, report.Calendars["b@example.com"].Busy, "clipped to the range")
	assert.False(t, report.HasErrors())

	assert.Equal(t, []interval.Interval{iv(8, 0, 8, 30), iv(9, 0, 10, 0)}, agg.MutualBusy(report))
}

func TestAggregator_PartialFailure(t *testing.T) {
	provider := staticProvider(map[CalendarRef]CalendarBusy{
		"a@example.com": {Busy: []interval.Interval{iv(9, 0, 10, 0)}},
		"b@example.com": {Busy: []interval.Interval{iv(9, 30, 11, 0), iv(14, 0, 15, 0)}},
		"c@example.com": {Errors: []ProviderError{{Domain: "global", Reason: ReasonBackendError}}},
	})

	agg := NewAggregator(provider)
	report, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com", "b@example.com", "c@example.com", "d@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})
	require.NoError(t, err)

	require.Len(t, report.Calendars, 4, "every requested calendar has an entry")
	assert.Equal(t, []interval.Interval{iv(9, 0, 10, 0)}, report.Calendars["a@example.com"].Busy)
	assert.Equal(t, []interval.Interval{iv(9, 30, 11, 0), iv(14, 0, 15, 0)}, report.Calendars["b@example.com"].Busy)
	assert.Equal(t, ReasonBackendError, report.Calendars["c@example.com"].Errors[0].Reason)
	assert.Empty(t, report.Calendars["c@example.com"].Busy)
	assert.Equal(t, ReasonNotFound, report.Calendars["d@example.com"].Errors[0].Reason)
	assert.Equal(t, []CalendarRef{"c@example.com", "d@example.com"}, report.Failed())
	assert.Len(t, report.Errors(), 2)

	assert.Equal(t, []interval.Interval{iv(9, 0, 11, 0), iv(14, 0, 15, 0)}, agg.MutualBusy(report),
		"busy time of both readable calendars is merged")
}

// refresherFunc adapts a function to credentials.Refresher.
type refresherFunc func(ctx context.Context, cred *credentials.Credential) (*credentials.Credential, error)

func (f refresherFunc) Refresh(ctx context.Context, cred *credentials.Credential) (*credentials.Credential, error) {
	return f(ctx, cred)
}

// credentialedProvider waits for a valid credential before answering, the
// way calendar.ClientFactory does.
func credentialedProvider(cache *credentials.Cache, userID string) providerFunc {
	return func(ctx context.Context, calendars []CalendarRef, _, _ time.Time) (map[CalendarRef]CalendarBusy, error) {
		if _, err := cache.GetValid(ctx, userID); err != nil {
			return nil, err
		}
		out := make(map[CalendarRef]CalendarBusy, len(calendars))
		for _, ref := range calendars {
			out[ref] = CalendarBusy{}
		}
		return out, nil
	}
}

func TestAggregator_SlowRefreshIsPerCalendarTimeout(t *testing.T) {
	release := make(chan struct{})
	refresher := refresherFunc(func(_ context.Context, cred *credentials.Credential) (*credentials.Credential, error) {
		<-release
		out := cred.Clone()
		out.AccessToken = "fresh"
		out.Expiry = time.Now().Add(time.Hour)
		return out, nil
	})
	cache := credentials.NewCache(nil, refresher)
	require.NoError(t, cache.Put(&credentials.Credential{
		UserID:       "u",
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	agg := NewAggregator(credentialedProvider(cache, "u"), WithTimeout(50*time.Millisecond))
	report, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com", "b@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})
	require.NoError(t, err, "a timeout while waiting for a credential is not fatal")
	require.Len(t, report.Calendars, 2)
	for ref, cb := range report.Calendars {
		require.Len(t, cb.Errors, 1, ref)
		assert.Equal(t, ReasonTimeout, cb.Errors[0].Reason, ref)
	}

	close(release)
	cred, err := cache.GetValid(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.AccessToken)
}

func TestAggregator_MandatoryCalendarFailsClosed(t *testing.T) {
	provider := staticProvider(map[CalendarRef]CalendarBusy{
		"a@example.com": {Busy: []interval.Interval{iv(9, 0, 10, 0)}},
		"b@example.com": {Errors: []ProviderError{{Reason: ReasonNotFound}}},
	})

	agg := NewAggregator(provider)
	report, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com"},
		Mandatory: []CalendarRef{"b@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMandatoryCalendar)
	var merr *MandatoryCalendarError
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Failures, 1)
	assert.Equal(t, CalendarRef("b@example.com"), merr.Failures[0].Calendar)
	assert.Contains(t, err.Error(), "b@example.com (notFound)")

	assert.Len(t, report.Calendars, 2, "mandatory calendars are queried and reported")
}

func TestAggregator_MandatoryCalendarReadable(t *testing.T) {
	provider := staticProvider(map[CalendarRef]CalendarBusy{
		"a@example.com": {Busy: []interval.Interval{iv(9, 0, 10, 0)}},
		"b@example.com": {Errors: []ProviderError{{Reason: ReasonBackendError}}},
	})

	agg := NewAggregator(provider)
	_, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com", "b@example.com"},
		Mandatory: []CalendarRef{"a@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})

	assert.NoError(t, err, "only optional calendars failed")
}

func TestAggregator_BatchedCallFailure(t *testing.T) {
	provider := providerFunc(func(context.Context, []CalendarRef, time.Time, time.Time) (map[CalendarRef]CalendarBusy, error) {
		return nil, errors.New("503 service unavailable")
	})

	agg := NewAggregator(provider)
	report, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com", "b@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})
	require.NoError(t, err, "transport failures are per-calendar")

	for _, ref := range []CalendarRef{"a@example.com", "b@example.com"} {
		require.Len(t, report.Calendars[ref].Errors, 1)
		assert.Equal(t, ReasonBackendError, report.Calendars[ref].Errors[0].Reason)
		assert.Contains(t, report.Calendars[ref].Errors[0].Message, "503")
	}
	assert.Empty(t, report.MutualBusy())
}

func TestAggregator_Timeout(t *testing.T) {
	provider := providerFunc(func(ctx context.Context, _ []CalendarRef, _, _ time.Time) (map[CalendarRef]CalendarBusy, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("freebusy: %w", ctx.Err())
	})

	agg := NewAggregator(provider, WithTimeout(20*time.Millisecond))
	report, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com"},
		Mandatory: []CalendarRef{"b@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})

	require.ErrorIs(t, err, ErrMandatoryCalendar, "a timed out mandatory calendar fails the query")
	assert.Equal(t, ReasonTimeout, report.Calendars["a@example.com"].Errors[0].Reason)
	assert.Equal(t, ReasonTimeout, report.Calendars["b@example.com"].Errors[0].Reason)
}

func TestAggregator_CallerCancellationIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := providerFunc(func(ctx context.Context, _ []CalendarRef, _, _ time.Time) (map[CalendarRef]CalendarBusy, error) {
		cancel()
		return nil, ctx.Err()
	})

	agg := NewAggregator(provider)
	_, err := agg.Availability(ctx, Query{
		Calendars: []CalendarRef{"a@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregator_CredentialFailureIsFatal(t *testing.T) {
	provider := providerFunc(func(context.Context, []CalendarRef, time.Time, time.Time) (map[CalendarRef]CalendarBusy, error) {
		return nil, &credentials.UnavailableError{UserID: "jane@example.com", Op: "refresh", Err: errors.New("invalid_grant")}
	})

	agg := NewAggregator(provider)
	_, err := agg.Availability(context.Background(), Query{
		Calendars: []CalendarRef{"a@example.com"},
		Start:     at(8, 0),
		End:       at(18, 0),
	})

	assert.ErrorIs(t, err, credentials.ErrCredentialUnavailable)
}

func TestAggregator_Validation(t *testing.T) {
	called := false
	provider := providerFunc(func(context.Context, []CalendarRef, time.Time, time.Time) (map[CalendarRef]CalendarBusy, error) {
		called = true
		return nil, nil
	})
	agg := NewAggregator(provider)

	tests := []struct {
		name  string
		query Query
	}{
		{name: "inverted range", query: Query{Calendars: []CalendarRef{"a"}, Start: at(10, 0), End: at(9, 0)}},
		{name: "empty range", query: Query{Calendars: []CalendarRef{"a"}, Start: at(9, 0), End: at(9, 0)}},
		{name: "no calendars", query: Query{Start: at(8, 0), End: at(9, 0)}},
		{name: "blank calendar", query: Query{Calendars: []CalendarRef{" "}, Start: at(8, 0), End: at(9, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agg.Availability(context.Background(), tt.query)
			assert.ErrorIs(t, err, interval.ErrInvalidRange)
		})
	}
	assert.False(t, called, "validation happens before any provider call")
}

func TestQuery_DeduplicatesCalendars(t *testing.T) {
	q := Query{
		Calendars: []CalendarRef{"a", "b", "a"},
		Mandatory: []CalendarRef{"c", "b"},
	}
	assert.Equal(t, []CalendarRef{"a", "b", "c"}, q.all())
}
