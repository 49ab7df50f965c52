package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestIDAttachesField(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "rid-1")

	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "rid-1", logs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, "rid-1", RequestID(ctx))
}

func TestFromContextFallsBackToBase(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestNewParsesLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "bogus"} {
		l, err := New(lvl, false)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}
