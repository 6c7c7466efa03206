package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/logging"
	"github.com/teemow/freeslot/internal/server"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

type invocationKey struct{}

// Annotate attaches the number of calendars and the scheduling outcome to
// the invocation being recorded for ctx. It is a no-op outside an
// instrumented handler.
func Annotate(ctx context.Context, calendars int, outcome string) {
	ti, ok := ctx.Value(invocationKey{}).(*instrumentation.ToolInvocation)
	if !ok {
		return
	}
	ti.WithCalendars(calendars)
	if outcome != "" {
		ti.WithOutcome(outcome)
	}
}

// InstrumentedToolHandler resolves the user for the call, stores it on the
// context for the calendar clients and records metrics, a span and an audit
// log entry for the invocation.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID := ResolveUser(ctx, request.GetArguments(), sc.DefaultUser())
		ctx = credentials.ContextWithUser(ctx, userID)

		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			instrumentation.NewSpanAttributeBuilder().WithUser(logging.AnonymizeUser(userID)).Build()...)
		defer span.End()

		invocation := instrumentation.NewToolInvocation(toolName).
			WithUser(userID).
			WithSpanContext(ctx)
		ctx = context.WithValue(ctx, invocationKey{}, invocation)

		start := time.Now()
		result, err := handler(ctx, request)

		success := err == nil && (result == nil || !result.IsError)
		invocation.Complete(success, err)
		if success {
			instrumentation.SetSpanSuccess(span)
		} else if err != nil {
			instrumentation.SetSpanError(span, err)
		}

		sc.Metrics().RecordToolInvocationWithUser(ctx, toolName, invocation.Status(), userID, time.Since(start))
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}
