package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext identifies one API request in logs, audit records and
// outbox events. TraceID follows the otel span when there is one.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceKey struct{}

func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// GetTrace returns nil outside a request (seed, worker, tests).
func GetTrace(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceKey{}).(*TraceContext)
	return tc
}

func GetTraceID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.TraceID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.RequestID
	}
	return ""
}

// NewTraceContext fills a missing request id with a fresh UUID and a
// missing trace id with the request id.
func NewTraceContext(traceID, requestID string) *TraceContext {
	tc := &TraceContext{TraceID: traceID, RequestID: requestID}
	if tc.RequestID == "" {
		tc.RequestID = uuid.NewString()
	}
	if tc.TraceID == "" {
		tc.TraceID = tc.RequestID
	}
	return tc
}
