package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerFromContext_DefaultsToNop(t *testing.T) {
	if l := LoggerFromContext(context.Background()); l == nil {
		t.Fatal("LoggerFromContext() = nil, want no-op logger")
	}
}

func TestLoggerFromContext_RoundTrip(t *testing.T) {
	logger := zap.NewExample()
	ctx := WithLogger(context.Background(), logger)
	if got := LoggerFromContext(ctx); got != logger {
		t.Errorf("LoggerFromContext() = %p, want %p", got, logger)
	}
}

func TestCorrelationIDFromContext(t *testing.T) {
	if id := CorrelationIDFromContext(context.Background()); id != "" {
		t.Errorf("CorrelationIDFromContext(empty) = %q, want empty", id)
	}
	ctx := WithCorrelationID(context.Background(), "abc-123")
	if id := CorrelationIDFromContext(ctx); id != "abc-123" {
		t.Errorf("CorrelationIDFromContext() = %q, want abc-123", id)
	}
}
