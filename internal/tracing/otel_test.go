package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderLifecycle(t *testing.T) {
	p, err := NewProvider("test-service")
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "test-tracer", "test-op")
	assert.NotEmpty(t, GetTraceID(ctx))
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProviderShutdownIsNoOp(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
