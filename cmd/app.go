package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/teemow/freeslot/internal/config"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/server"
)

// newLogger builds the process logger. Text output goes to w so the stdio
// transport can keep stdout for protocol messages.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newServerContext loads the configuration from the environment and wires
// the server components. provider may be nil.
func newServerContext(ctx context.Context, logger *slog.Logger, provider *instrumentation.Provider, auditCfg instrumentation.AuditLoggingConfig) (*server.ServerContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := server.Options{
		Config: cfg,
		Logger: logger,
	}
	if provider != nil && provider.Enabled() {
		opts.Metrics = provider.Metrics()
		opts.AuditLogger = instrumentation.NewAuditLogger(logger, auditCfg)
	}

	sc, err := server.NewServerContext(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return sc, nil
}
