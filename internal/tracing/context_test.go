package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = WithTraceID(ctx, "trace-123")
	assert.Equal(t, "trace-123", GetTraceID(ctx))
}

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetSessionID(ctx))

	ctx = WithSessionID(ctx, "session-abc")
	assert.Equal(t, "session-abc", GetSessionID(ctx))
}

func TestNewRequestContextAssignsTraceID(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	assert.NotEmpty(t, GetTraceID(ctx))

	other := NewRequestContext(context.Background())
	assert.NotEqual(t, GetTraceID(ctx), GetTraceID(other))
}

func TestNewTraceIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewTraceID(), NewTraceID())
}
