package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/calendar"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/logging"
)

// EventCreator creates calendar events. *calendar.ClientFactory and
// *calendar.Client implement it.
type EventCreator interface {
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.Event, error)
}

// Service finds and books mutually free slots.
type Service struct {
	aggregator *availability.Aggregator
	creator    EventCreator

	organizerCalendar    string
	failOnProviderErrors bool
	createTimeout        time.Duration

	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithOrganizerCalendar sets the default calendar events are created on.
func WithOrganizerCalendar(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.organizerCalendar = id
		}
	}
}

// WithFailOnProviderErrors treats every calendar as mandatory, so any
// unreadable calendar fails the request.
func WithFailOnProviderErrors(enabled bool) Option {
	return func(s *Service) { s.failOnProviderErrors = enabled }
}

// WithTimeout bounds each event creation call. Non-positive values are
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.createTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a scheduling service. creator may be nil for a service
// that only searches.
func NewService(aggregator *availability.Aggregator, creator EventCreator, opts ...Option) *Service {
	s := &Service{
		aggregator:        aggregator,
		creator:           creator,
		organizerCalendar: DefaultOrganizerCalendar,
		createTimeout:     availability.DefaultTimeout,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithOperation(s.logger, "scheduling")
	return s
}

// FindSlot validates req, aggregates busy time and searches for the first
// free window. It never creates an event.
func (s *Service) FindSlot(ctx context.Context, req Request) (Proposal, error) {
	if err := req.Validate(); err != nil {
		return Proposal{}, err
	}

	q := req.query()
	if s.failOnProviderErrors {
		q.Mandatory = append(append([]availability.CalendarRef(nil), q.Mandatory...), q.Calendars...)
	}

	report, err := s.aggregator.Availability(ctx, q)
	if err != nil {
		if report.Calendars != nil {
			return Proposal{ProviderErrors: report.Errors()}, err
		}
		return Proposal{}, err
	}

	busy := s.aggregator.MutualBusy(report)
	proposal := Proposal{
		Result: req.search().Find(busy),
		Busy:   busy,
	}
	if report.HasErrors() {
		proposal.ProviderErrors = report.Errors()
		s.logger.Warn("searching with unreadable calendars treated as free",
			slog.Any("calendars", report.Failed()))
	}
	return proposal, nil
}

// ScheduleMutual finds the first slot free on every calendar and creates the
// event there. It returns NoSlot when nothing fits; that is not an error.
//
// Errors wrap interval.ErrInvalidRange, availability.ErrMandatoryCalendar,
// credentials.ErrCredentialUnavailable or ErrCreationFailed.
func (s *Service) ScheduleMutual(ctx context.Context, req Request) (Outcome, error) {
	calendars := len(req.Calendars)
	ctx, span := instrumentation.StartSpan(ctx, "scheduling.schedule_mutual",
		instrumentation.NewSpanAttributeBuilder().WithCalendarCount(calendars).Build()...)
	defer span.End()

	proposal, err := s.FindSlot(ctx, req)
	if err != nil {
		s.metrics.RecordSchedulingOutcome(ctx, instrumentation.OutcomeRejected, calendars)
		instrumentation.SetSpanError(span, err)
		return Outcome{}, err
	}

	found, ok := proposal.Result.Slot()
	if !ok {
		s.metrics.RecordSchedulingOutcome(ctx, instrumentation.OutcomeNoSlot, calendars)
		span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithOutcome(instrumentation.OutcomeNoSlot).Build()...)
		instrumentation.SetSpanSuccess(span)
		s.logger.Info("no mutual slot found",
			slog.Int("calendars", calendars),
			slog.Duration(logging.KeyDuration, req.Duration))
		return NoSlot(proposal.ProviderErrors), nil
	}

	organizer := req.OrganizerCalendar
	if organizer == "" {
		organizer = s.organizerCalendar
	}

	input := calendar.EventInput{
		EventTemplate: req.Event,
		Start:         found.Start,
		End:           found.End,
	}
	input.Attendees = req.attendees()

	if s.creator == nil {
		err := &CreationError{Calendar: organizer, Slot: found, Err: errNoCreator}
		s.metrics.RecordSchedulingOutcome(ctx, instrumentation.OutcomeCreationFailed, calendars)
		instrumentation.SetSpanError(span, err)
		return Outcome{}, err
	}

	event, err := s.createEvent(ctx, organizer, input)
	if err != nil {
		s.metrics.RecordSchedulingOutcome(ctx, instrumentation.OutcomeCreationFailed, calendars)
		cerr := &CreationError{Calendar: organizer, Slot: found, Err: err}
		instrumentation.SetSpanError(span, cerr)
		s.logger.Error("event creation failed",
			logging.Calendar(organizer),
			slog.String("slot", found.String()),
			logging.Err(err))
		return Outcome{}, cerr
	}
	s.metrics.RecordSchedulingOutcome(ctx, instrumentation.OutcomeScheduled, calendars)

	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
		WithEventID(event.ID).
		WithOutcome(instrumentation.OutcomeScheduled).
		Build()...)
	instrumentation.SetSpanSuccess(span)

	s.logger.Info("meeting scheduled",
		logging.Calendar(organizer),
		slog.String("event_id", event.ID),
		slog.String("slot", found.String()),
		slog.Int("attendees", len(input.Attendees)))

	return Scheduled(event, found, proposal.ProviderErrors), nil
}

// createEvent runs one bounded creation call. A nil event without an error
// counts as a failure.
func (s *Service) createEvent(ctx context.Context, organizer string, input calendar.EventInput) (*calendar.Event, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.createTimeout)
	defer cancel()

	start := time.Now()
	event, err := s.creator.CreateEvent(callCtx, organizer, input)
	elapsed := time.Since(start)

	switch {
	case err == nil && event == nil:
		err = errNoEvent
	case err != nil && callCtx.Err() != nil && ctx.Err() == nil:
		err = fmt.Errorf("timed out after %s: %w", s.createTimeout, err)
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		if errors.Is(err, context.DeadlineExceeded) {
			status = instrumentation.StatusTimeout
		}
	}
	s.metrics.RecordProviderCall(ctx, instrumentation.OperationInsertEvent, status, len(input.Attendees), elapsed)
	return event, err
}
