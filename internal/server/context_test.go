package server

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/freeslot/internal/config"
	"github.com/teemow/freeslot/internal/credentials"
)

func testConfig(t *testing.T, store string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		CredentialStore:    store,
		CredentialDir:      filepath.Join(dir, "creds"),
		CredentialDB:       filepath.Join(dir, "creds.db"),
		ProviderTimeout:    time.Second,
		RefreshTimeout:     time.Second,
		ExpirySkew:         time.Minute,
		DefaultUser:        "default",
		OrganizerCalendar:  "primary",
	}
}

func validToken(userID string) *credentials.Credential {
	return &credentials.Credential{
		UserID:       userID,
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestNewServerContext_Components(t *testing.T) {
	sc, err := NewServerContext(context.Background(), Options{Config: testConfig(t, config.StoreMemory)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	assert.NotNil(t, sc.Credentials())
	assert.NotNil(t, sc.Calendars())
	assert.NotNil(t, sc.Aggregator())
	assert.NotNil(t, sc.Scheduler())
	assert.NotNil(t, sc.Logger())
	assert.Equal(t, "default", sc.DefaultUser())
	assert.Equal(t, config.StoreMemory, sc.Config().CredentialStore)
	assert.Nil(t, sc.Metrics())
}

func TestNewServerContext_FileStore(t *testing.T) {
	cfg := testConfig(t, config.StoreFile)

	store, err := credentials.NewFileStore(cfg.CredentialDir, nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), validToken("jane@example.com")))

	sc, err := NewServerContext(context.Background(), Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	cred, err := sc.Credentials().GetValid(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "access-jane@example.com", cred.AccessToken)
	assert.Equal(t, "client-id", cred.ClientID, "client defaults apply to stored credentials")
	assert.Equal(t, []string{credentials.CalendarScope}, cred.Scopes)
}

func TestNewServerContext_EncryptedSQLiteStore(t *testing.T) {
	cfg := testConfig(t, config.StoreSQLite)
	key, err := credentials.GenerateEncryptionKey()
	require.NoError(t, err)
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString(key)

	enc, err := credentials.NewTokenEncryption(key)
	require.NoError(t, err)
	store, err := credentials.OpenSQLiteStore(cfg.CredentialDB, enc, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), validToken("bob@example.com")))
	require.NoError(t, store.Close())

	sc, err := NewServerContext(context.Background(), Options{Config: cfg})
	require.NoError(t, err)

	cred, err := sc.Credentials().GetValid(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "access-bob@example.com", cred.AccessToken)
	assert.Equal(t, 1, sc.Credentials().Len())

	require.NoError(t, sc.Shutdown())
}

func TestNewServerContext_SourceOverride(t *testing.T) {
	source := credentials.NewTokenStoreSource(nil)
	sc, err := NewServerContext(context.Background(), Options{
		Config: testConfig(t, "unused"),
		Source: source,
	})
	require.NoError(t, err, "an explicit source skips opening the configured store")
	require.NoError(t, sc.Shutdown())
}

func TestNewServerContext_Errors(t *testing.T) {
	t.Run("unknown store", func(t *testing.T) {
		_, err := NewServerContext(context.Background(), Options{Config: testConfig(t, "redis")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported credential store")
	})

	t.Run("bad encryption key", func(t *testing.T) {
		cfg := testConfig(t, config.StoreFile)
		cfg.EncryptionKey = "not base64!"
		_, err := NewServerContext(context.Background(), Options{Config: cfg})
		require.Error(t, err)
	})

	t.Run("sqlite without path", func(t *testing.T) {
		cfg := testConfig(t, config.StoreSQLite)
		cfg.CredentialDB = ""
		_, err := NewServerContext(context.Background(), Options{Config: cfg})
		require.Error(t, err)
	})
}

func TestServerContext_Shutdown(t *testing.T) {
	sc, err := NewServerContext(context.Background(), Options{Config: testConfig(t, config.StoreMemory)})
	require.NoError(t, err)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())

	assert.NoError(t, sc.Shutdown(), "second shutdown is a no-op")
}
