package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/interval"
	"github.com/teemow/freeslot/internal/logging"
)

// DefaultTimeout bounds one batched provider call.
const DefaultTimeout = 10 * time.Second

// Aggregator queries a BusyTimeProvider and assembles a Report.
type Aggregator struct {
	provider BusyTimeProvider
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout sets the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an aggregator over provider.
func NewAggregator(provider BusyTimeProvider, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider: provider,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.WithOperation(a.logger, "availability")
	return a
}

// Availability fetches busy time for every calendar in q with one provider
// call. The returned Report has an entry for each queried calendar.
//
// A failure of the batched call is recorded against every calendar rather
// than returned, except when the caller's context ended or credentials could
// not be obtained; both abort the query. When a mandatory calendar failed the
// Report is returned together with a *MandatoryCalendarError.
func (a *Aggregator) Availability(ctx context.Context, q Query) (Report, error) {
	if err := q.Validate(); err != nil {
		return Report{}, err
	}
	calendars := q.all()

	ctx, span := instrumentation.StartSpan(ctx, "availability.query",
		instrumentation.NewSpanAttributeBuilder().WithCalendarCount(len(calendars)).Build()...)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	results, err := a.provider.QueryBusy(callCtx, calendars, q.Start, q.End)
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			a.metrics.RecordProviderCall(ctx, instrumentation.OperationFreeBusy, instrumentation.StatusError, len(calendars), elapsed)
			instrumentation.SetSpanError(span, ctxErr)
			return Report{}, fmt.Errorf("free/busy query cancelled: %w", ctxErr)
		}
		// A deadline hit while waiting for a credential is this call's
		// timeout, not a missing credential.
		if callCtx.Err() == nil && errors.Is(err, credentials.ErrCredentialUnavailable) {
			a.metrics.RecordProviderCall(ctx, instrumentation.OperationFreeBusy, instrumentation.StatusError, len(calendars), elapsed)
			instrumentation.SetSpanError(span, err)
			return Report{}, err
		}
	}

	report := Report{
		Start:     q.Start,
		End:       q.End,
		Calendars: make(map[CalendarRef]CalendarBusy, len(calendars)),
	}

	if err != nil {
		reason, status := ReasonBackendError, instrumentation.StatusError
		if errors.Is(err, context.DeadlineExceeded) {
			reason, status = ReasonTimeout, instrumentation.StatusTimeout
		}
		a.metrics.RecordProviderCall(ctx, instrumentation.OperationFreeBusy, status, len(calendars), elapsed)
		a.logger.Warn("free/busy query failed, marking all calendars",
			slog.String("reason", reason),
			slog.Int("calendars", len(calendars)),
			logging.Err(err))
		for _, ref := range calendars {
			report.Calendars[ref] = CalendarBusy{
				Errors: []ProviderError{{Reason: reason, Message: err.Error()}},
			}
			a.metrics.RecordCalendarError(ctx, reason)
		}
	} else {
		a.metrics.RecordProviderCall(ctx, instrumentation.OperationFreeBusy, instrumentation.StatusSuccess, len(calendars), elapsed)
		for _, ref := range calendars {
			cb, ok := results[ref]
			if !ok {
				cb = CalendarBusy{Errors: []ProviderError{{
					Reason:  ReasonNotFound,
					Message: "calendar missing from provider response",
				}}}
			}
			cb.Busy = interval.Merge(interval.Clip(cb.Busy, q.Start, q.End))
			for _, pe := range cb.Errors {
				a.metrics.RecordCalendarError(ctx, pe.Reason)
				a.logger.Debug("calendar reported an error",
					logging.Calendar(string(ref)),
					slog.String("reason", pe.Reason))
			}
			report.Calendars[ref] = cb
		}
	}

	if merr := mandatoryFailures(report, q.Mandatory); merr != nil {
		instrumentation.SetSpanError(span, merr)
		return report, merr
	}
	instrumentation.SetSpanSuccess(span)
	return report, nil
}

// MutualBusy returns the merged busy intervals across all calendars of
// report.
func (a *Aggregator) MutualBusy(report Report) []interval.Interval {
	return report.MutualBusy()
}

func mandatoryFailures(report Report, mandatory []CalendarRef) error {
	var failures []CalendarFailure
	seen := make(map[CalendarRef]bool, len(mandatory))
	for _, ref := range mandatory {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if cb := report.Calendars[ref]; cb.Failed() {
			failures = append(failures, CalendarFailure{Calendar: ref, Errors: cb.Errors})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &MandatoryCalendarError{Failures: failures}
}
