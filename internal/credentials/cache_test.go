package credentials

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

type fakeSource struct {
	mu      sync.Mutex
	creds   map[string]*Credential
	saved   map[string]*Credential
	fetches atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{creds: map[string]*Credential{}, saved: map[string]*Credential{}}
}

func (s *fakeSource) set(cred *Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.UserID] = cred.Clone()
}

func (s *fakeSource) Fetch(_ context.Context, userID string) (*Credential, error) {
	s.fetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cred.Clone(), nil
}

func (s *fakeSource) Save(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[cred.UserID] = cred.Clone()
	return nil
}

type fakeRefresher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (r *fakeRefresher) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	n := r.calls.Add(1)
	if r.started != nil && n == 1 {
		close(r.started)
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &Credential{
		AccessToken: "refreshed-token",
		Expiry:      now.Add(time.Hour),
	}, nil
}

func expiredCred(userID string) *Credential {
	return &Credential{
		UserID:       userID,
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Expiry:       now.Add(-time.Minute),
	}
}

func validCred(userID string) *Credential {
	return &Credential{
		UserID:       userID,
		AccessToken:  "valid-token",
		RefreshToken: "refresh-token",
		Expiry:       now.Add(time.Hour),
	}
}

func TestCache_ReturnsCachedValidCredential(t *testing.T) {
	src := newFakeSource()
	ref := &fakeRefresher{}
	cache := NewCache(src, ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(validCred("jane@example.com")))

	got, err := cache.GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)

	assert.Equal(t, "valid-token", got.AccessToken)
	assert.Zero(t, src.fetches.Load())
	assert.Zero(t, ref.calls.Load())
}

func TestCache_FetchesWhenAbsent(t *testing.T) {
	src := newFakeSource()
	src.set(validCred("jane@example.com"))
	cache := NewCache(src, &fakeRefresher{}, WithClock(fixedClock))

	for i := 0; i < 3; i++ {
		got, err := cache.GetValid(context.Background(), "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, "valid-token", got.AccessToken)
	}

	assert.Equal(t, int32(1), src.fetches.Load(), "only the first call fetches")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_FetchFailureIsUnavailable(t *testing.T) {
	cache := NewCache(newFakeSource(), &fakeRefresher{}, WithClock(fixedClock))

	_, err := cache.GetValid(context.Background(), "nobody@example.com")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.ErrorIs(t, err, ErrNotFound)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "nobody@example.com", unavailable.UserID)
	assert.Contains(t, err.Error(), `"nobody@example.com"`)
	assert.Zero(t, cache.Len())
}

func TestCache_RefreshesExpiredCredential(t *testing.T) {
	src := newFakeSource()
	ref := &fakeRefresher{}
	cache := NewCache(src, ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(expiredCred("jane@example.com")))

	got, err := cache.GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)

	assert.Equal(t, "refreshed-token", got.AccessToken)
	assert.Equal(t, "refresh-token", got.RefreshToken, "refresh token carried over")
	assert.Equal(t, "client-id", got.ClientID)
	assert.Equal(t, "jane@example.com", got.UserID)
	assert.Equal(t, int32(1), ref.calls.Load())
	assert.Zero(t, src.fetches.Load())

	saved := src.saved["jane@example.com"]
	require.NotNil(t, saved, "refreshed credential is persisted")
	assert.Equal(t, "refreshed-token", saved.AccessToken)
}

func TestCache_ExpirySkew(t *testing.T) {
	ref := &fakeRefresher{}
	cache := NewCache(newFakeSource(), ref, WithClock(fixedClock), WithExpirySkew(5*time.Minute))

	cred := validCred("jane@example.com")
	cred.Expiry = now.Add(2 * time.Minute)
	require.NoError(t, cache.Put(cred))

	got, err := cache.GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", got.AccessToken)
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestCache_RefreshesExpiredFetchedCredential(t *testing.T) {
	src := newFakeSource()
	src.set(expiredCred("jane@example.com"))
	ref := &fakeRefresher{}
	cache := NewCache(src, ref, WithClock(fixedClock))

	got, err := cache.GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)

	assert.Equal(t, "refreshed-token", got.AccessToken)
	assert.Equal(t, int32(1), src.fetches.Load())
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestCache_SingleFlightRefresh(t *testing.T) {
	src := newFakeSource()
	ref := &fakeRefresher{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(src, ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(expiredCred("jane@example.com")))

	const callers = 50
	var wg sync.WaitGroup
	results := make([]*Credential, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetValid(context.Background(), "jane@example.com")
		}(i)
	}

	<-ref.started
	time.Sleep(50 * time.Millisecond)
	close(ref.release)
	wg.Wait()

	assert.Equal(t, int32(1), ref.calls.Load(), "exactly one refresh for the stale generation")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed-token", results[i].AccessToken)
	}
}

func TestCache_SingleFlightRefreshFailure(t *testing.T) {
	src := newFakeSource()
	ref := &fakeRefresher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		err:     errors.New("invalid_grant"),
	}
	cache := NewCache(src, ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(expiredCred("jane@example.com")))

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.GetValid(context.Background(), "jane@example.com")
		}(i)
	}

	<-ref.started
	time.Sleep(50 * time.Millisecond)
	close(ref.release)
	wg.Wait()

	assert.Equal(t, int32(1), ref.calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrCredentialUnavailable)
	}
}

func TestCache_EvictsAfterFailedRefresh(t *testing.T) {
	src := newFakeSource()
	ref := &fakeRefresher{err: errors.New("invalid_grant")}
	cache := NewCache(src, ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(expiredCred("jane@example.com")))

	_, err := cache.GetValid(context.Background(), "jane@example.com")
	require.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.Zero(t, cache.Len(), "failed refresh evicts the entry")
	assert.Equal(t, int32(1), src.fetches.Load(), "eviction is followed by a fresh fetch")
	assert.Equal(t, int32(1), ref.calls.Load())

	// The user re-authorizes; the next call fetches instead of retrying the refresh.
	src.set(validCred("jane@example.com"))

	got, err := cache.GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "valid-token", got.AccessToken)
	assert.Equal(t, int32(2), src.fetches.Load())
	assert.Equal(t, int32(1), ref.calls.Load(), "the failed refresh is not retried")
}

func TestCache_StaleFetchAfterFailedRefreshIsNotRefreshedAgain(t *testing.T) {
	src := newFakeSource()
	src.set(expiredCred("jane@example.com"))
	ref := &fakeRefresher{err: errors.New("invalid_grant")}
	cache := NewCache(src, ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(expiredCred("jane@example.com")))

	_, err := cache.GetValid(context.Background(), "jane@example.com")

	require.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestCache_NoRefreshTokenEvicts(t *testing.T) {
	src := newFakeSource()
	ref := &fakeRefresher{}
	cache := NewCache(src, ref, WithClock(fixedClock))

	cred := expiredCred("jane@example.com")
	cred.RefreshToken = ""
	require.NoError(t, cache.Put(cred))

	_, err := cache.GetValid(context.Background(), "jane@example.com")

	require.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.Zero(t, ref.calls.Load(), "nothing to refresh with")
	assert.Zero(t, cache.Len())
}

func TestCache_CallerCancellationDoesNotFailOthers(t *testing.T) {
	src := newFakeSource()
	ref := &fakeRefresher{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(src, ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(expiredCred("jane@example.com")))

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := cache.GetValid(ctx, "jane@example.com")
		cancelled <- err
	}()
	<-ref.started

	waiter := make(chan error, 1)
	go func() {
		_, err := cache.GetValid(context.Background(), "jane@example.com")
		waiter <- err
	}()

	cancel()
	err := <-cancelled
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCredentialUnavailable, "the credential is still on its way")

	close(ref.release)
	assert.NoError(t, <-waiter)
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestCache_OtherUsersAreNotBlocked(t *testing.T) {
	ref := &fakeRefresher{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(newFakeSource(), ref, WithClock(fixedClock))
	require.NoError(t, cache.Put(expiredCred("jane@example.com")))
	require.NoError(t, cache.Put(validCred("john@example.com")))

	done := make(chan struct{})
	go func() {
		_, _ = cache.GetValid(context.Background(), "jane@example.com")
		close(done)
	}()
	<-ref.started

	got, err := cache.GetValid(context.Background(), "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "valid-token", got.AccessToken)

	close(ref.release)
	<-done
}

func TestCache_ReturnsCopies(t *testing.T) {
	cache := NewCache(newFakeSource(), &fakeRefresher{}, WithClock(fixedClock))
	require.NoError(t, cache.Put(validCred("jane@example.com")))

	first, err := cache.GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)
	first.AccessToken = "mutated"

	second, err := cache.GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "valid-token", second.AccessToken)
}

func TestCache_EmptyUserID(t *testing.T) {
	cache := NewCache(newFakeSource(), &fakeRefresher{})

	_, err := cache.GetValid(context.Background(), "")

	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestCache_PutInvalidateStatus(t *testing.T) {
	cache := NewCache(newFakeSource(), &fakeRefresher{}, WithClock(fixedClock))

	assert.Error(t, cache.Put(&Credential{}))

	_, ok := cache.Status("jane@example.com")
	assert.False(t, ok)

	require.NoError(t, cache.Put(validCred("jane@example.com")))
	status, ok := cache.Status("jane@example.com")
	require.True(t, ok)
	assert.True(t, status.HasAccessToken)
	assert.True(t, status.HasRefreshToken)
	require.NotNil(t, status.IsExpired)
	assert.False(t, *status.IsExpired)
	require.NotNil(t, status.ExpiresInSeconds)
	assert.Equal(t, int64(3600), *status.ExpiresInSeconds)

	cache.Invalidate("jane@example.com")
	assert.Zero(t, cache.Len())
	cache.Invalidate("jane@example.com")
}
