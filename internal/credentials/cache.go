package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/logging"
)

// Source yields the stored credential for a user. Implementations return an
// error wrapping ErrNotFound when nothing is stored.
type Source interface {
	Fetch(ctx context.Context, userID string) (*Credential, error)
}

// Saver persists a credential. Sources that also implement Saver receive
// every refreshed credential.
type Saver interface {
	Save(ctx context.Context, cred *Credential) error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, cred *Credential) (*Credential, error)
}

// Default timings for a Cache.
const (
	DefaultExpirySkew     = time.Minute
	DefaultRefreshTimeout = 15 * time.Second
)

// entry is one cached credential generation. Entries are immutable; a refresh
// replaces the entry, so pointer identity distinguishes generations.
type entry struct {
	cred *Credential
}

// Cache is a concurrent per-user credential cache.
//
// Reads of a valid credential take no lock. Fetches and refreshes for one
// user are single-flighted so concurrent callers share one provider call;
// other users are never blocked.
type Cache struct {
	source    Source
	refresher Refresher

	entries sync.Map // userID -> *entry
	flights singleflight.Group

	skew           time.Duration
	refreshTimeout time.Duration
	now            func() time.Time

	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithExpirySkew treats credentials as expired this long before their expiry.
func WithExpirySkew(d time.Duration) Option {
	return func(c *Cache) { c.skew = d }
}

// WithRefreshTimeout bounds each fetch-and-refresh flight. Non-positive
// values keep the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache that fetches from source and refreshes through
// refresher.
func NewCache(source Source, refresher Refresher, opts ...Option) *Cache {
	c := &Cache{
		source:         source,
		refresher:      refresher,
		skew:           DefaultExpirySkew,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithOperation(c.logger, "credentials")
	return c
}

// GetValid returns a valid credential for userID, fetching or refreshing it
// as needed. The returned credential is a copy owned by the caller.
//
// Errors wrap ErrCredentialUnavailable. If ctx ends while a shared fetch or
// refresh is in flight, GetValid returns ctx.Err() wrapped and not
// ErrCredentialUnavailable; the flight itself continues for the other waiters.
//
// Flights are keyed by userID alone. A flight started from a stale
// generation re-checks the cache first, so a caller that joins late never
// triggers a second refresh of a generation that was already replaced.
func (c *Cache) GetValid(ctx context.Context, userID string) (*Credential, error) {
	if userID == "" {
		return nil, &UnavailableError{UserID: userID, Op: "fetch", Err: ErrInvalidUserID}
	}

	if e, ok := c.load(userID); ok && e.cred.Valid(c.now(), c.skew) {
		return e.cred.Clone(), nil
	}

	ch := c.flights.DoChan(userID, func() (any, error) {
		// Detached from any single caller so one cancellation does not fail
		// every waiter sharing this flight.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.resolve(flightCtx, userID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential).Clone(), nil
	case <-ctx.Done():
		// The credential may still arrive for other waiters, so this is not
		// an ErrCredentialUnavailable.
		return nil, fmt.Errorf("wait for credential of %q: %w", userID, ctx.Err())
	}
}

// resolve runs inside a flight. It re-checks the cache first: a caller that
// observed a stale entry may start a flight after another flight already
// replaced that entry.
func (c *Cache) resolve(ctx context.Context, userID string) (*Credential, error) {
	logger := logging.WithUser(c.logger, userID)

	refreshAttempted := false
	if e, ok := c.load(userID); ok {
		if e.cred.Valid(c.now(), c.skew) {
			return e.cred, nil
		}
		refreshed, err := c.refresh(ctx, userID, e.cred)
		if err == nil {
			c.store(ctx, userID, refreshed)
			return refreshed, nil
		}
		c.evict(ctx, userID, e, refreshResult(err))
		logger.Warn("credential refresh failed, evicted", logging.Err(err))
		refreshAttempted = true
	}

	cred, err := c.source.Fetch(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.metrics.RecordCredentialFetch(ctx, instrumentation.CredentialResultNotFound)
		} else {
			c.metrics.RecordCredentialFetch(ctx, instrumentation.CredentialResultFailure)
		}
		return nil, &UnavailableError{UserID: userID, Op: "fetch", Err: err}
	}
	c.metrics.RecordCredentialFetch(ctx, instrumentation.CredentialResultSuccess)
	cred = cred.Clone()
	cred.UserID = userID

	if cred.Valid(c.now(), c.skew) {
		c.store(ctx, userID, cred)
		logger.Debug("credential fetched")
		return cred, nil
	}

	// One refresh per GetValid: if the cached generation just failed to
	// refresh, a stale fetched credential is not retried.
	if refreshAttempted {
		return nil, &UnavailableError{UserID: userID, Op: "fetch", Err: errors.New("stored credential is expired")}
	}

	refreshed, err := c.refresh(ctx, userID, cred)
	if err != nil {
		logger.Warn("fetched credential could not be refreshed", logging.Err(err))
		return nil, &UnavailableError{UserID: userID, Op: "refresh", Err: err}
	}
	c.store(ctx, userID, refreshed)
	return refreshed, nil
}

// refresh exchanges cred's refresh token and persists the result when the
// source can save.
func (c *Cache) refresh(ctx context.Context, userID string, cred *Credential) (*Credential, error) {
	if !cred.Refreshable() {
		c.metrics.RecordCredentialRefresh(ctx, instrumentation.CredentialResultNoRefresh)
		return nil, ErrNoRefreshToken
	}
	if c.refresher == nil {
		return nil, fmt.Errorf("no refresher configured")
	}

	ctx, span := instrumentation.StartSpan(ctx, "credentials.refresh",
		instrumentation.NewSpanAttributeBuilder().WithUser(logging.AnonymizeUser(userID)).Build()...)
	defer span.End()

	refreshed, err := c.refresher.Refresh(ctx, cred.Clone())
	if err != nil {
		c.metrics.RecordCredentialRefresh(ctx, instrumentation.CredentialResultFailure)
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("refresh: %w", err)
	}
	c.metrics.RecordCredentialRefresh(ctx, instrumentation.CredentialResultSuccess)
	instrumentation.SetSpanSuccess(span)

	refreshed = mergeRefreshed(userID, cred, refreshed)

	if saver, ok := c.source.(Saver); ok {
		if err := saver.Save(ctx, refreshed); err != nil {
			// The refreshed credential is still usable from memory.
			logging.WithUser(c.logger, userID).Warn("failed to persist refreshed credential", logging.Err(err))
		}
	}

	logging.WithUser(c.logger, userID).Info("credential refreshed",
		slog.Time("expiry", refreshed.Expiry),
		slog.String("access_token", logging.SanitizeToken(refreshed.AccessToken)))
	return refreshed, nil
}

// mergeRefreshed carries identity and client fields over from the previous
// generation. Token endpoints usually omit the refresh token on refresh.
func mergeRefreshed(userID string, prev, next *Credential) *Credential {
	out := next.Clone()
	out.UserID = userID
	if out.RefreshToken == "" {
		out.RefreshToken = prev.RefreshToken
	}
	if out.ClientID == "" {
		out.ClientID = prev.ClientID
	}
	if out.ClientSecret == "" {
		out.ClientSecret = prev.ClientSecret
	}
	if out.TokenURL == "" {
		out.TokenURL = prev.TokenURL
	}
	if len(out.Scopes) == 0 {
		out.Scopes = prev.Scopes
	}
	return out
}

func refreshResult(err error) string {
	if errors.Is(err, ErrNoRefreshToken) {
		return instrumentation.CredentialResultNoRefresh
	}
	return instrumentation.CredentialResultFailure
}

func (c *Cache) load(userID string) (*entry, bool) {
	v, ok := c.entries.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (c *Cache) store(ctx context.Context, userID string, cred *Credential) {
	if _, loaded := c.entries.Swap(userID, &entry{cred: cred}); !loaded {
		c.metrics.AddCachedCredentials(ctx, 1)
	}
}

// evict removes e only if it is still the current generation.
func (c *Cache) evict(ctx context.Context, userID string, e *entry, reason string) {
	if c.entries.CompareAndDelete(userID, e) {
		c.metrics.AddCachedCredentials(ctx, -1)
		c.metrics.RecordCredentialEviction(ctx, reason)
	}
}

// Put seeds the cache with a credential obtained elsewhere, for example from
// an OAuth callback. It replaces any cached generation.
func (c *Cache) Put(cred *Credential) error {
	if cred == nil || cred.UserID == "" {
		return ErrInvalidUserID
	}
	c.store(context.Background(), cred.UserID, cred.Clone())
	return nil
}

// Invalidate drops the cached credential for userID, if any.
func (c *Cache) Invalidate(userID string) {
	if _, ok := c.entries.LoadAndDelete(userID); ok {
		ctx := context.Background()
		c.metrics.AddCachedCredentials(ctx, -1)
		c.metrics.RecordCredentialEviction(ctx, "invalidated")
	}
}

// Status returns the token status of the cached credential for userID.
// It does not fetch or refresh.
func (c *Cache) Status(userID string) (TokenStatus, bool) {
	e, ok := c.load(userID)
	if !ok {
		return TokenStatus{}, false
	}
	return e.cred.Status(c.now()), true
}

// Len returns the number of cached credentials.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
