package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"google.golang.org/api/option"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/calendar"
	"github.com/teemow/freeslot/internal/config"
	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/logging"
	"github.com/teemow/freeslot/internal/scheduling"
)

// Options configures a ServerContext.
type Options struct {
	Config config.Config
	Logger *slog.Logger

	// Metrics and AuditLogger may be nil when instrumentation is disabled.
	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger

	// Source and Refresher replace the configured credential store and the
	// OAuth token endpoint. Tests use them.
	Source    credentials.Source
	Refresher credentials.Refresher

	// CalendarOptions are passed to every Calendar service.
	CalendarOptions []option.ClientOption
}

// ServerContext owns the long-lived components shared by the MCP tools and
// the CLI: the credential cache, the calendar client factory, the
// availability aggregator and the scheduling service.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	config config.Config
	logger *slog.Logger

	cache      *credentials.Cache
	calendars  *calendar.ClientFactory
	aggregator *availability.Aggregator
	scheduler  *scheduling.Service

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	closers  []func() error
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext wires the components from opts.Config.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sc := &ServerContext{
		config:      cfg,
		logger:      logger,
		metrics:     opts.Metrics,
		auditLogger: opts.AuditLogger,
	}

	source := opts.Source
	if source == nil {
		var err error
		source, err = sc.openCredentialStore()
		if err != nil {
			return nil, err
		}
	}
	source = &credentials.ClientDefaults{
		Source:       source,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenURL:     cfg.GoogleTokenURL,
		Scopes:       []string{credentials.CalendarScope},
	}

	refresher := opts.Refresher
	if refresher == nil {
		refresher = credentials.NewOAuthRefresher(nil, cfg.GoogleTokenURL)
	}

	sc.cache = credentials.NewCache(source, refresher,
		credentials.WithExpirySkew(cfg.ExpirySkew),
		credentials.WithRefreshTimeout(cfg.RefreshTimeout),
		credentials.WithLogger(logger),
		credentials.WithMetrics(opts.Metrics),
	)
	sc.calendars = calendar.NewClientFactory(sc.cache, cfg.DefaultUser, opts.CalendarOptions...)
	sc.aggregator = availability.NewAggregator(sc.calendars,
		availability.WithTimeout(cfg.ProviderTimeout),
		availability.WithLogger(logger),
		availability.WithMetrics(opts.Metrics),
	)
	sc.scheduler = scheduling.NewService(sc.aggregator, sc.calendars,
		scheduling.WithOrganizerCalendar(cfg.OrganizerCalendar),
		scheduling.WithFailOnProviderErrors(cfg.FailOnProviderErrors),
		scheduling.WithTimeout(cfg.ProviderTimeout),
		scheduling.WithLogger(logger),
		scheduling.WithMetrics(opts.Metrics),
	)

	sc.ctx, sc.cancel = context.WithCancel(ctx)
	return sc, nil
}

// openCredentialStore opens the backend named by CREDENTIAL_STORE.
func (sc *ServerContext) openCredentialStore() (credentials.Source, error) {
	cfg := sc.config

	key, err := credentials.EncryptionKeyFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	enc, err := credentials.NewTokenEncryption(key)
	if err != nil {
		return nil, err
	}
	storeLogger := logging.NewSlogAdapter(sc.logger).With("store", cfg.CredentialStore)

	switch cfg.CredentialStore {
	case config.StoreFile, "":
		store, err := credentials.NewFileStore(cfg.CredentialDir, enc, storeLogger)
		if err != nil {
			return nil, err
		}
		sc.logger.Info("using file credential store",
			slog.String("dir", cfg.CredentialDir),
			slog.Bool("encrypted", enc.Enabled()))
		return store, nil

	case config.StoreSQLite:
		store, err := credentials.OpenSQLiteStore(cfg.CredentialDB, enc, storeLogger)
		if err != nil {
			return nil, err
		}
		sc.closers = append(sc.closers, store.Close)
		sc.logger.Info("using sqlite credential store",
			slog.String("path", cfg.CredentialDB),
			slog.Bool("encrypted", enc.Enabled()))
		return store, nil

	case config.StoreMemory:
		store := memory.New()
		sc.closers = append(sc.closers, func() error {
			store.Stop()
			return nil
		})
		sc.logger.Warn("using in-memory credential store, tokens are lost on restart")
		return credentials.NewTokenStoreSource(store), nil

	default:
		return nil, fmt.Errorf("unsupported credential store: %s", cfg.CredentialStore)
	}
}

// Context returns the server context. It is cancelled by Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the runtime configuration.
func (sc *ServerContext) Config() config.Config {
	return sc.config
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Credentials returns the per-user credential cache.
func (sc *ServerContext) Credentials() *credentials.Cache {
	return sc.cache
}

// Calendars returns the calendar client factory.
func (sc *ServerContext) Calendars() *calendar.ClientFactory {
	return sc.calendars
}

// Aggregator returns the availability aggregator.
func (sc *ServerContext) Aggregator() *availability.Aggregator {
	return sc.aggregator
}

// Scheduler returns the scheduling service.
func (sc *ServerContext) Scheduler() *scheduling.Service {
	return sc.scheduler
}

// DefaultUser returns the user requests act for when none is given.
func (sc *ServerContext) DefaultUser() string {
	return sc.config.DefaultUser
}

// Metrics returns the metrics recorder, or nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and closes the credential store.
// It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()

	var errs []error
	for _, closeFn := range sc.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
